// Package ratelimit limits requests per client and endpoint with token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is a token bucket plus the settings needed to report on it.
type bucket struct {
	limiter  *rate.Limiter
	capacity int
}

func newBucket(limit int, window time.Duration, burst int) *bucket {
	capacity := burst
	if capacity <= 0 {
		capacity = limit
	}
	// Refill rate = limit / window
	every := window / time.Duration(limit)
	return &bucket{
		limiter:  rate.NewLimiter(rate.Every(every), capacity),
		capacity: capacity,
	}
}

// allow consumes a token if one is available at now.
func (b *bucket) allow(now time.Time) bool {
	return b.limiter.AllowN(now, 1)
}

// status reports the whole tokens left and when the bucket will be full again.
func (b *bucket) status(now time.Time) (remaining int, resetTime time.Time) {
	tokens := b.limiter.TokensAt(now)
	remaining = int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	missing := float64(b.capacity) - tokens
	if missing <= 0 {
		return remaining, now
	}
	seconds := missing / float64(b.limiter.Limit())
	return remaining, now.Add(time.Duration(seconds * float64(time.Second)))
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	buckets       map[string]*bucket // client:endpoint:method -> bucket
	lastAccess    map[string]time.Time
	mu            sync.Mutex
	config        *Config
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTimeout is how long an unused bucket is kept.
	IdleTimeout     time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
			Whitelist:       make(map[string]bool),
			Blacklist:       make(map[string]bool),
		}
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = time.Hour
	}

	limiter := &Limiter{
		buckets:    make(map[string]*bucket),
		lastAccess: make(map[string]time.Time),
		config:     config,
		now:        time.Now,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		limiter.cleanupTicker = time.NewTicker(config.CleanupInterval)
		limiter.cleanupStop = make(chan struct{})
		go limiter.cleanup()
	}

	return limiter
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
// Returns true if allowed, false if rate limited, along with rate limit information.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	endpointConfig := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	key := clientID + ":" + endpoint + ":" + method
	if endpointConfig == nil {
		endpointConfig = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultLimit,
		}
	} else if endpointConfig.Path != "" {
		// Every path under a prefix shares one bucket, e.g. all /score/{profile} calls.
		key = clientID + ":" + endpointConfig.Path + ":" + method
	}

	// Unlimited endpoint (e.g., health check)
	if endpointConfig.Limit <= 0 || endpointConfig.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	b := l.getBucket(key, endpointConfig, now)

	allowed := b.allow(now)
	remaining, resetTime := b.status(now)

	var retryAfter time.Duration
	if !allowed {
		r := b.limiter.ReserveN(now, 1)
		retryAfter = r.DelayFrom(now)
		// Only the delay was wanted; hand the token back.
		r.CancelAt(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
	}

	return allowed, Info{
		Allowed:    allowed,
		Limit:      endpointConfig.Limit,
		Remaining:  remaining,
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
	}
}

// getBucket gets or creates the bucket for key and records the access.
func (l *Limiter) getBucket(key string, cfg *EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastAccess[key] = now
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b := newBucket(cfg.Limit, cfg.Window, cfg.Burst)
	l.buckets[key] = b
	return b
}

// cleanup removes old unused buckets to prevent memory leaks.
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanupBuckets()
		case <-l.cleanupStop:
			return
		}
	}
}

// cleanupBuckets removes buckets that have been idle longer than IdleTimeout.
func (l *Limiter) cleanupBuckets() {
	cutoff := l.now().Add(-l.config.IdleTimeout)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.buckets, key)
			delete(l.lastAccess, key)
		}
	}
}

// size returns the number of live buckets.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
		}
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
