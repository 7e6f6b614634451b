// Package ratelimit enforces per-project request limits with token buckets.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"freeway/config"
)

// DefaultIdleTTL is how long an unused project limiter is kept.
const DefaultIdleTTL = 10 * time.Minute

// Config controls the limiter.
type Config struct {
	// DefaultRPM applies when a project has no limit of its own
	DefaultRPM int
	// Burst overrides the bucket size. Zero means one minute's worth of requests.
	Burst   int
	IdleTTL time.Duration
}

// ConfigFrom converts the application rate limit settings.
func ConfigFrom(cfg config.RateLimitConfig) Config {
	return Config{DefaultRPM: cfg.DefaultPerMinute, Burst: cfg.Burst}
}

// Limiter holds one token bucket per project. Idle buckets expire.
type Limiter struct {
	defaultRPM int
	burst      int
	ttl        time.Duration

	mu       sync.Mutex
	limiters *cache.Cache
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.DefaultRPM <= 0 {
		cfg.DefaultRPM = 60
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Limiter{
		defaultRPM: cfg.DefaultRPM,
		burst:      cfg.Burst,
		ttl:        cfg.IdleTTL,
		limiters:   cache.New(cfg.IdleTTL, cfg.IdleTTL/2),
	}
}

// Allow reports whether the project may make a request now. rpm is the
// project's requests-per-minute; zero or less means the default.
// A changed rpm is applied to the existing bucket.
func (l *Limiter) Allow(projectID string, rpm int) bool {
	return l.limiterFor(projectID, rpm).Allow()
}

// RetryAfter estimates how long until the project's next request would be allowed.
func (l *Limiter) RetryAfter(projectID string, rpm int) time.Duration {
	lim := l.limiterFor(projectID, rpm)
	r := lim.Reserve()
	defer r.Cancel()
	return r.Delay()
}

// Len returns the number of tracked projects.
func (l *Limiter) Len() int {
	return l.limiters.ItemCount()
}

func (l *Limiter) limiterFor(projectID string, rpm int) *rate.Limiter {
	if rpm <= 0 {
		rpm = l.defaultRPM
	}
	limit := rate.Limit(float64(rpm) / 60.0)
	burst := l.burst
	if burst <= 0 {
		burst = rpm
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(projectID); ok {
		lim := v.(*rate.Limiter)
		if lim.Limit() != limit || lim.Burst() != burst {
			lim.SetLimit(limit)
			lim.SetBurst(burst)
		}
		// Refresh the idle expiry.
		l.limiters.Set(projectID, lim, l.ttl)
		return lim
	}

	lim := rate.NewLimiter(limit, burst)
	l.limiters.Set(projectID, lim, l.ttl)
	return lim
}
