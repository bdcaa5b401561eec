package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionLimiter(t *testing.T) {
	l := newSessionLimiter(0.001, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst exhausted")
	assert.True(t, l.Allow("b"), "sessions have separate buckets")
}

func TestSessionLimiter_Disabled(t *testing.T) {
	l := newSessionLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a"))
	}
	assert.Empty(t, l.limiters)
}
