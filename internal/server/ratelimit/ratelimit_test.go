package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(config *Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(config)
	l.now = clock.Now
	return l, clock
}

func TestBucket_AllowAndRefill(t *testing.T) {
	now := time.Now()
	b := newBucket(10, 10*time.Second, 0) // 10 tokens, 1 token per second

	for i := 0; i < 10; i++ {
		if !b.allow(now) {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if b.allow(now) {
		t.Error("Expected 11th request to be denied")
	}

	later := now.Add(1100 * time.Millisecond)
	if !b.allow(later) {
		t.Error("Expected request to be allowed after refill")
	}
	if b.allow(later) {
		t.Error("Expected request to be denied after consuming refilled token")
	}
}

func TestBucket_Status(t *testing.T) {
	now := time.Now()
	b := newBucket(10, 10*time.Second, 0)

	for i := 0; i < 5; i++ {
		b.allow(now)
	}

	remaining, resetTime := b.status(now)
	if remaining != 5 {
		t.Errorf("Expected 5 remaining tokens, got %d", remaining)
	}
	if want := now.Add(5 * time.Second); !resetTime.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, resetTime)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/traits", "GET")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/traits", "GET")
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if info.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", info.Remaining)
	}
	if info.RetryAfter <= 0 {
		t.Error("Expected retry after to be positive")
	}
}

func TestLimiter_DeniedRequestDoesNotConsume(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	limiter.Allow("c", "/x", "GET")
	for i := 0; i < 5; i++ {
		limiter.Allow("c", "/x", "GET")
	}

	// One window later exactly one token is back, despite the denied calls.
	clock.Advance(time.Minute)
	if allowed, _ := limiter.Allow("c", "/x", "GET"); !allowed {
		t.Error("Expected request to be allowed after a full window")
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/traits", "GET"); !allowed {
			t.Errorf("Expected whitelisted request %d to be allowed", i+1)
		}
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"10.0.0.1": true},
	})
	defer limiter.Stop()

	if allowed, _ := limiter.Allow("10.0.0.1", "/traits", "GET"); allowed {
		t.Error("Expected blacklisted IP to be denied")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/traits", "GET"); !allowed {
			t.Errorf("Expected request %d to be allowed when disabled", i+1)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer limiter.Stop()

	// /score/ allows a burst of 5, shared across profiles
	paths := []string{"/score/face", "/score/full-body", "/score/face", "/score/face", "/score/full-body"}
	for i, path := range paths {
		allowed, info := limiter.Allow("127.0.0.1", path, "POST")
		if !allowed {
			t.Errorf("Expected burst request %d to be allowed", i+1)
		}
		if info.Limit != 30 {
			t.Errorf("Expected limit 30, got %d", info.Limit)
		}
	}
	if allowed, _ := limiter.Allow("127.0.0.1", "/score/face", "POST"); allowed {
		t.Error("Expected request beyond burst to be denied")
	}

	// Other endpoints keep their own buckets
	if allowed, _ := limiter.Allow("127.0.0.1", "/classify", "POST"); !allowed {
		t.Error("Expected /classify to be allowed")
	}
	if allowed, info := limiter.Allow("127.0.0.1", "/profiles", "GET"); !allowed || info.Limit != 1000 {
		t.Errorf("Expected default limit for reads, got allowed=%v limit=%d", allowed, info.Limit)
	}

	// Health is unlimited
	for i := 0; i < 50; i++ {
		if allowed, _ := limiter.Allow("127.0.0.1", "/health", "GET"); !allowed {
			t.Fatal("Expected /health to be unlimited")
		}
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("127.0.0.1", "/traits", "GET"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("Expected exactly 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		IdleTimeout:   time.Hour,
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/traits", "GET")
	}
	if got := limiter.size(); got != 5 {
		t.Fatalf("Expected 5 buckets, got %d", got)
	}

	clock.Advance(30 * time.Minute)
	limiter.Allow("client-0", "/traits", "GET")

	clock.Advance(45 * time.Minute)
	limiter.cleanupBuckets()

	if got := limiter.size(); got != 1 {
		t.Errorf("Expected only the recently used bucket to remain, got %d", got)
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Minute})
	limiter.Stop()
	limiter.Stop()
}

func TestNewLimiter_NilConfig(t *testing.T) {
	defer goleak.VerifyNone(t)
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	if !limiter.config.Enabled {
		t.Error("Expected default config to be enabled")
	}
	if limiter.config.DefaultLimit != 1000 {
		t.Errorf("Expected default limit 1000, got %d", limiter.config.DefaultLimit)
	}
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantPath     string
		wantNil      bool
	}{
		{path: "/score/face", method: "POST", wantPath: "/score/"},
		{path: "/classify", method: "POST", wantPath: "/classify"},
		{path: "/validate/full-body", method: "POST", wantPath: "/validate/"},
		{path: "/score/face", method: "GET", wantNil: true},
		{path: "/profiles", method: "GET", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil || got.Path != tt.wantPath {
				t.Errorf("Expected match on %s, got %+v", tt.wantPath, got)
			}
		})
	}
}

func TestMatchEndpoint_LongestPrefixAndHealth(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/score/", Method: "POST", Limit: 30, Window: time.Hour},
		{Path: "/score/face/", Method: "POST", Limit: 5, Window: time.Hour},
		{Path: "/score/face/preview", Method: "POST", Limit: 1, Window: time.Hour},
	}

	if got := MatchEndpoint("/score/face/extra", "POST", configs); got == nil || got.Path != "/score/face/" {
		t.Errorf("Expected longest prefix /score/face/, got %+v", got)
	}
	if got := MatchEndpoint("/score/face/preview", "POST", configs); got == nil || got.Limit != 1 {
		t.Errorf("Expected exact match with limit 1, got %+v", got)
	}
	if got := MatchEndpoint("/health", "GET", configs); got == nil || got.Limit != 0 {
		t.Errorf("Expected unlimited health check, got %+v", got)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_WHITELIST", "1.1.1.1, 2.2.2.2")

	cfg := LoadConfig()
	if cfg.DefaultLimit != 42 {
		t.Errorf("Expected default limit 42, got %d", cfg.DefaultLimit)
	}
	if !cfg.Whitelist["2.2.2.2"] {
		t.Error("Expected 2.2.2.2 to be whitelisted")
	}

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	if LoadConfig().Enabled {
		t.Error("Expected rate limiting to be disabled")
	}
}
