package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := MissingInput("out/metrics_x_perrun.csv", fs.ErrNotExist)
	wrapped := Wrapf(base, "loading metric %s", "x")

	assert.Equal(t, CodeMissingInput, GetCode(wrapped))
	assert.True(t, stderrors.Is(wrapped, fs.ErrNotExist))
	assert.Contains(t, wrapped.Error(), "loading metric x")
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "writing table")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.True(t, IsAppError(wrapped))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeStoreError, fmt.Errorf("db locked"))
	assert.Equal(t, CodeStoreError, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}
