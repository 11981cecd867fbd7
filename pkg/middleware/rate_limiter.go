package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterOptions configures the per-client token bucket.
type RateLimiterOptions struct {
	// Limit is the sustained request rate per second.
	Limit rate.Limit
	// Burst is the bucket size.
	Burst int
	// ExpiryDuration bounds how long idle client state is kept.
	ExpiryDuration time.Duration
}

// DefaultRateLimiterOptions allows 5 req/s with bursts of 10.
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          5,
		Burst:          10,
		ExpiryDuration: time.Hour,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP. It runs ahead of auth, so
// the IP is the only identity available at this point in the chain.
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	buckets map[string]*bucket
	logger  *logger.Logger
}

// NewRateLimiter builds a limiter with the given or default options.
func NewRateLimiter(logger *logger.Logger, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	return &RateLimiter{
		options: opts,
		buckets: make(map[string]*bucket),
		logger:  logger,
	}
}

// Middleware returns the gin handler. The reaper goroutine starts on first
// use and runs for the process lifetime.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	go r.reap()

	return func(c *gin.Context) {
		key := c.ClientIP()

		if !r.bucketFor(key).Allow() {
			r.logger.Warn("Rate limit exceeded",
				"client", key,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.Header("Retry-After", "1")
			c.Error(errors.NewError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later."))
			c.Abort()
			return
		}

		c.Next()
	}
}

func (r *RateLimiter) bucketFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.options.Limit, r.options.Burst)}
		r.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (r *RateLimiter) reap() {
	for {
		time.Sleep(time.Minute)

		r.mu.Lock()
		for k, b := range r.buckets {
			if time.Since(b.lastSeen) > r.options.ExpiryDuration {
				delete(r.buckets, k)
			}
		}
		r.mu.Unlock()
	}
}
