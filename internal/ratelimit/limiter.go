package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter bounds how often each account may be (re)activated. An activation
// costs a browser launch plus a login pass, so a misbehaving caller hammering
// the deep-link endpoint must not burn proxy bandwidth.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter allows requestsPerHour activations per account with the given
// burst.
func NewLimiter(requestsPerHour, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerHour) / 3600.0),
		burst:    burst,
	}
}

// Allow reports whether a request for the account may proceed now.
func (l *Limiter) Allow(account string) bool {
	return l.limiter(account).Allow()
}

// Tokens returns the remaining burst capacity for an account.
func (l *Limiter) Tokens(account string) float64 {
	return l.limiter(account).Tokens()
}

func (l *Limiter) limiter(account string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[account]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[account] = limiter
	}
	return limiter
}
