package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := Constant(2 * time.Second)
	for attempts := uint(1); attempts < 5; attempts++ {
		assert.Equal(t, 2*time.Second, s(attempts))
	}
}

func TestLinear(t *testing.T) {
	s := Linear(2 * time.Second)
	for attempts := uint(1); attempts < 5; attempts++ {
		assert.Equal(t, time.Duration(attempts)*2*time.Second, s(attempts))
	}
}

func TestExponential(t *testing.T) {
	s := Exponential(2*time.Second, 3)

	expected := []time.Duration{
		2 * time.Second,
		6 * time.Second,
		18 * time.Second,
		54 * time.Second,
	}
	for i, d := range expected {
		assert.Equal(t, d, s(uint(i+1)))
	}
}

func TestBinaryExponential(t *testing.T) {
	s := BinaryExponential(time.Second)

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for i, d := range expected {
		assert.Equal(t, d, s(uint(i+1)))
	}
}
