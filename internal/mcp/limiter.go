package mcp

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

var errRateLimited = errors.New("rate limit exceeded")

// sessionLimiter hands out one token bucket per session id.
type sessionLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newSessionLimiter creates a limiter allowing perSecond calls per session
// with the given burst. perSecond <= 0 disables limiting.
func newSessionLimiter(perSecond float64, burst int) *sessionLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &sessionLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a call for id may proceed now.
func (l *sessionLimiter) Allow(id string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[id]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[id] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
