package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/telekom/exception-subscriptions/pkg/apiresponses"
	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate is the number of requests allowed per second
	Rate float64
	// Burst is the maximum number of requests allowed in a burst
	Burst int
	// CleanupInterval is how often to clean up stale entries
	CleanupInterval time.Duration
	// MaxAge is how long to keep an entry after last access
	MaxAge time.Duration
}

// AuthenticatedConfig holds separate limits for callers with and without a
// verified identity.
type AuthenticatedConfig struct {
	// Unauthenticated applies per IP.
	Unauthenticated Config
	// Authenticated applies per identity.
	Authenticated Config
	// UserIdentityKey is the gin context key holding the caller identity.
	UserIdentityKey string
}

// DefaultEventsConfig is used for the event hook when no limit is configured:
// 50 req/s per IP, burst of 100.
func DefaultEventsConfig() Config {
	return Config{
		Rate:            50,
		Burst:           100,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

// DefaultAdminConfig returns limits for the admin endpoints.
// Unauthenticated: 5 req/s per IP, burst of 10.
// Authenticated: 20 req/s per subject, burst of 40.
func DefaultAdminConfig() AuthenticatedConfig {
	return AuthenticatedConfig{
		Unauthenticated: Config{
			Rate:            5,
			Burst:           10,
			CleanupInterval: time.Minute,
			MaxAge:          5 * time.Minute,
		},
		Authenticated: Config{
			Rate:            20,
			Burst:           40,
			CleanupInterval: time.Minute,
			MaxAge:          10 * time.Minute,
		},
		UserIdentityKey: "subject",
	}
}

// FromConfig converts the rateLimit config section. A zero rate falls back to
// DefaultEventsConfig; a missing burst is derived from the rate.
func FromConfig(cfg config.RateLimit) Config {
	out := DefaultEventsConfig()
	if cfg.Rate <= 0 {
		return out
	}
	out.Rate = cfg.Rate
	out.Burst = cfg.Burst
	if out.Burst <= 0 {
		out.Burst = int(math.Ceil(cfg.Rate))
	}
	return out
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter keeps one token bucket per key (normally the client IP).
type IPRateLimiter struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	config   Config
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new per-IP rate limiter with the given configuration
func New(cfg Config) *IPRateLimiter {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 5 * time.Minute
	}

	rl := &IPRateLimiter{
		entries: make(map[string]*entry),
		config:  cfg,
		done:    make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request for key should be allowed
func (rl *IPRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, exists := rl.entries[key]
	if !exists {
		e = &entry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst),
		}
		rl.entries[key] = e
	}
	e.lastAccess = time.Now()

	return e.limiter.Allow()
}

// Middleware returns a Gin middleware that applies per-IP rate limiting.
// Rejections are counted under route.
func (rl *IPRateLimiter) Middleware(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			metrics.RateLimited.WithLabelValues(route).Inc()
			apiresponses.RespondTooManyRequests(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *IPRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanupStaleEntries()
		}
	}
}

func (rl *IPRateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, e := range rl.entries {
		if now.Sub(e.lastAccess) > rl.config.MaxAge {
			delete(rl.entries, key)
		}
	}
}

// Len returns the current number of tracked keys
func (rl *IPRateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.entries)
}

// Config returns a copy of the current configuration
func (rl *IPRateLimiter) Config() Config {
	return rl.config
}

// AuthenticatedRateLimiter limits authenticated callers per identity and
// everybody else per IP.
type AuthenticatedRateLimiter struct {
	ipLimiter   *IPRateLimiter
	userLimiter *IPRateLimiter
	userKey     string
}

func NewAuthenticated(cfg AuthenticatedConfig) *AuthenticatedRateLimiter {
	if cfg.UserIdentityKey == "" {
		cfg.UserIdentityKey = "subject"
	}

	return &AuthenticatedRateLimiter{
		ipLimiter:   New(cfg.Unauthenticated),
		userLimiter: New(cfg.Authenticated),
		userKey:     cfg.UserIdentityKey,
	}
}

// Allow returns (allowed, isAuthenticated).
func (arl *AuthenticatedRateLimiter) Allow(c *gin.Context) (bool, bool) {
	if userID, exists := c.Get(arl.userKey); exists {
		if userStr, ok := userID.(string); ok && userStr != "" {
			return arl.userLimiter.Allow(userStr), true
		}
	}
	return arl.ipLimiter.Allow(c.ClientIP()), false
}

// Middleware applies differentiated rate limiting. It must run after the
// authentication middleware.
func (arl *AuthenticatedRateLimiter) Middleware(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, isAuthenticated := arl.Allow(c)
		if !allowed {
			metrics.RateLimited.WithLabelValues(route).Inc()
			msg := "Rate limit exceeded, please try again later"
			if !isAuthenticated {
				msg = "Rate limit exceeded. Please authenticate for higher limits."
			}
			apiresponses.RespondTooManyRequests(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop stops both cleanup goroutines
func (arl *AuthenticatedRateLimiter) Stop() {
	arl.ipLimiter.Stop()
	arl.userLimiter.Stop()
}

func (arl *AuthenticatedRateLimiter) IPLen() int {
	return arl.ipLimiter.Len()
}

func (arl *AuthenticatedRateLimiter) UserLen() int {
	return arl.userLimiter.Len()
}
