package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	r := NewRateLimiter()
	for i := 0; i < 3; i++ {
		assert.True(t, r.Allow("key", 3))
	}
	assert.False(t, r.Allow("key", 3))
}

func TestRateLimiter_IndependentKeys(t *testing.T) {
	r := NewRateLimiter()
	assert.True(t, r.Allow("a", 1))
	assert.True(t, r.Allow("b", 1))
	assert.False(t, r.Allow("a", 1))
}

func TestRateLimiter_WindowExpiresOldCalls(t *testing.T) {
	r := NewRateLimiter()
	current := time.Now()
	r.now = func() time.Time { return current }

	assert.True(t, r.Allow("key", 1))
	assert.False(t, r.Allow("key", 1))

	current = current.Add(61 * time.Second)
	assert.True(t, r.Allow("key", 1))
}
