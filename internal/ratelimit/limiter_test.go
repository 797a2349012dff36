package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBurstThenRefused(t *testing.T) {
	limiter := NewLimiter(100, 2)

	assert.True(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"), "burst exhausted")
}

func TestAccountsAreIndependent(t *testing.T) {
	limiter := NewLimiter(100, 1)

	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("bob"))
}

func TestTokensDecrease(t *testing.T) {
	limiter := NewLimiter(100, 5)

	before := limiter.Tokens("alice")
	limiter.Allow("alice")
	after := limiter.Tokens("alice")

	assert.Less(t, after, before)
}
