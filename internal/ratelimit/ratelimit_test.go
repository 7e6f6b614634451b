package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"freeway/config"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(Config{})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("p1", 3), "request %d", i)
	}
	assert.False(t, l.Allow("p1", 3))
	assert.Greater(t, l.RetryAfter("p1", 3), time.Duration(0))

	assert.True(t, l.Allow("p2", 3), "projects have independent buckets")
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_DefaultAndOverride(t *testing.T) {
	l := New(Config{DefaultRPM: 2})
	assert.True(t, l.Allow("p", 0))
	assert.True(t, l.Allow("p", 0))
	assert.False(t, l.Allow("p", 0))

	l.Allow("p", 120)
	v, ok := l.limiters.Get("p")
	assert.True(t, ok)
	assert.Equal(t, 120, v.(*rate.Limiter).Burst(), "a changed project limit is applied in place")
}

func TestLimiter_FixedBurst(t *testing.T) {
	l := New(Config{Burst: 1})
	assert.True(t, l.Allow("p", 600))
	assert.False(t, l.Allow("p", 600))
}

func TestLimiter_IdleExpiry(t *testing.T) {
	l := New(Config{IdleTTL: 20 * time.Millisecond})
	l.Allow("p", 1)
	assert.Equal(t, 1, l.Len())

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 10*time.Millisecond)
	assert.True(t, l.Allow("p", 1), "an expired bucket starts full")
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RateLimitConfig{Enabled: true, DefaultPerMinute: 30, Burst: 5})
	assert.Equal(t, Config{DefaultRPM: 30, Burst: 5}, cfg)
}
