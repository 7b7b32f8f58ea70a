package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeInputHashOrderIndependent(t *testing.T) {
	a := ComputeInputHash(map[string][]byte{"a.csv": []byte("1"), "b.csv": []byte("2")})
	b := ComputeInputHash(map[string][]byte{"b.csv": []byte("2"), "a.csv": []byte("1")})
	assert.Equal(t, a, b)

	c := ComputeInputHash(map[string][]byte{"a.csv": []byte("1"), "b.csv": []byte("3")})
	assert.NotEqual(t, a, c)
}

func TestComputeConfigHash(t *testing.T) {
	a := ComputeConfigHash(map[string]interface{}{"w": 5, "k": 0.5})
	b := ComputeConfigHash(map[string]interface{}{"k": 0.5, "w": 5})
	assert.Equal(t, a, b)
	assert.Len(t, a.String(), 64)
	assert.Len(t, Hash(a).Short(), 12)
}

func TestSoftFailureClassification(t *testing.T) {
	assert.True(t, IsSoftFailure(NewInsufficientDataError("pca rows", 2, 3)))
	assert.True(t, IsSoftFailure(NewDegenerateError("pc covariance")))
	assert.False(t, IsSoftFailure(NewMissingInputError("adc_peak", "x.csv")))
	assert.True(t, IsMissingInput(fmt.Errorf("wrap: %w", NewMissingInputError("a", "b"))))
	assert.True(t, IsMalformedRow(NewMalformedRowError("x.csv", 3, "bad float")))
}
