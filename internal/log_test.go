package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" DEBUG "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("bogus"))
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelWarn)

	logger.Info("hidden %d", 1)
	logger.Debug("hidden too")
	assert.Empty(t, buf.String())

	logger.Warn("metric %s skipped", "adc_peak")
	assert.Contains(t, buf.String(), "metric adc_peak skipped")
	assert.Contains(t, buf.String(), "level=warning")
}

func TestLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelInfo).WithComponent("outlier")

	logger.Info("scored")
	assert.Contains(t, buf.String(), "component=outlier")
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}
