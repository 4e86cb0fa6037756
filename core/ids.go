package core

import "github.com/google/uuid"

// NewInvocationID mints a fresh, collision-free invocation identifier.
func NewInvocationID() string { return uuid.New().String() }

// NewTraceID mints a fresh trace identifier for a new top-level request.
func NewTraceID() string { return uuid.New().String() }
