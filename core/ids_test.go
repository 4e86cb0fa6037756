package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInvocationID_IsUniqueAndNonEmpty(t *testing.T) {
	a := NewInvocationID()
	b := NewInvocationID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestNewTraceID_IsUniqueAndNonEmpty(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
