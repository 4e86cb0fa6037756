package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ErrorString_WithOp(t *testing.T) {
	err := NewError("Execute", "entry_unavailable", "entry is disabled", ErrPolicy, nil)
	assert.Equal(t, "Execute: entry is disabled (entry_unavailable)", err.Error())
}

func TestError_ErrorString_WithoutOp(t *testing.T) {
	err := NewError("", "entry_unavailable", "entry is disabled", ErrPolicy, nil)
	assert.Equal(t, "entry is disabled (entry_unavailable)", err.Error())
}

func TestError_UnwrapMatchesSentinelFamily(t *testing.T) {
	err := NewError("Execute", "policy_denied", "denied", ErrPolicy, nil)
	assert.True(t, errors.Is(err, ErrPolicy))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestError_MetaIsPreserved(t *testing.T) {
	meta := map[string]interface{}{"reasons": []string{"review_required"}}
	err := NewError("Execute", "policy_denied", "denied", ErrPolicy, meta)
	assert.Equal(t, meta, err.Meta)
}

type failureModeSet []FailureMode

func (f failureModeSet) FailureModeList() []FailureMode { return f }

func TestIsRetryable_FoundAndRetryable(t *testing.T) {
	modes := failureModeSet{
		{Code: "insufficient_funds", Retryable: false},
		{Code: "ledger_unavailable", Retryable: true},
	}
	assert.True(t, IsRetryable(modes, "ledger_unavailable"))
	assert.False(t, IsRetryable(modes, "insufficient_funds"))
}

func TestIsRetryable_UnknownCodeIsNotRetryable(t *testing.T) {
	modes := failureModeSet{{Code: "insufficient_funds", Retryable: true}}
	assert.False(t, IsRetryable(modes, "unknown_code"))
}

func TestError_ImplementsStandardErrorInterface(t *testing.T) {
	var err error = NewError("Op", "code", "message", ErrAdapter, nil)
	require.Error(t, err)
}
