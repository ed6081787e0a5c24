package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/httputil"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

// MessageTooManyRequests is the body of every 429
const MessageTooManyRequests = "Too many requests, please try again later"

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// Max is the number of requests admitted per key within Window
	Max int
	// Window is the sliding window length
	Window time.Duration
}

// SearchRateLimitConfig is the per-identity limit on user search
func SearchRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Max: 10, Window: time.Minute}
}

// IPRateLimitConfig is the per-address limit on the whole API
func IPRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Max: 100, Window: 15 * time.Minute}
}

// Validate checks the limit is usable
func (c RateLimitConfig) Validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("rate limit max must be positive, got %d", c.Max)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.Window)
	}
	return nil
}

// Decision is the outcome of one limiter check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time     // when the oldest counted request leaves the window
	RetryAfter time.Duration // zero when allowed
}

// Limiter admits or rejects a request for key
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// SlidingWindowLimiter keeps the timestamps of admitted requests per key and
// admits a request when fewer than Max of them fall inside the window.
// Rejected requests are not counted.
type SlidingWindowLimiter struct {
	config  RateLimitConfig
	invalid error
	now     func() time.Time
	windows map[string]*window
	mu      sync.Mutex
}

type window struct {
	hits    []time.Time
	removed bool
	mu      sync.Mutex
}

// LimiterOption configures a limiter
type LimiterOption func(*limiterOptions)

type limiterOptions struct {
	now    func() time.Time
	prefix string
}

// WithLimiterClock injects the time source
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(o *limiterOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKeyPrefix namespaces keys in shared backends
func WithKeyPrefix(prefix string) LimiterOption {
	return func(o *limiterOptions) {
		o.prefix = prefix
	}
}

func buildLimiterOptions(opts []LimiterOption) limiterOptions {
	o := limiterOptions{now: time.Now, prefix: "ratelimit"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSlidingWindowLimiter creates an in-process limiter. An invalid config is
// reported by every Allow call.
func NewSlidingWindowLimiter(config RateLimitConfig, opts ...LimiterOption) *SlidingWindowLimiter {
	o := buildLimiterOptions(opts)
	return &SlidingWindowLimiter{
		config:  config,
		invalid: config.Validate(),
		now:     o.now,
		windows: make(map[string]*window),
	}
}

// Config returns the configured limit
func (rl *SlidingWindowLimiter) Config() RateLimitConfig {
	return rl.config
}

func (rl *SlidingWindowLimiter) window(key string) *window {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, exists := rl.windows[key]
	if !exists {
		w = &window{}
		rl.windows[key] = w
	}
	return w
}

// Allow checks if a request for key is admitted
func (rl *SlidingWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if rl.invalid != nil {
		return Decision{}, rl.invalid
	}

	for {
		w := rl.window(key)

		w.mu.Lock()
		if w.removed {
			// Cleanup dropped this window between lookup and lock
			w.mu.Unlock()
			continue
		}

		now := rl.now()
		w.prune(now.Add(-rl.config.Window))

		d := Decision{Limit: rl.config.Max}
		if len(w.hits) >= rl.config.Max {
			d.ResetAt = w.hits[0].Add(rl.config.Window)
			d.RetryAfter = d.ResetAt.Sub(now)
		} else {
			w.hits = append(w.hits, now)
			d.Allowed = true
			d.Remaining = rl.config.Max - len(w.hits)
			d.ResetAt = w.hits[0].Add(rl.config.Window)
		}
		w.mu.Unlock()

		return d, nil
	}
}

// prune drops hits at or before cutoff; hits are in admission order
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// Remaining returns the number of requests key may still make now
func (rl *SlidingWindowLimiter) Remaining(key string) int {
	rl.mu.Lock()
	w, exists := rl.windows[key]
	rl.mu.Unlock()
	if !exists {
		return rl.config.Max
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(rl.now().Add(-rl.config.Window))
	if remaining := rl.config.Max - len(w.hits); remaining > 0 {
		return remaining
	}
	return 0
}

// Cleanup removes keys with no requests inside the window and returns how
// many were removed
func (rl *SlidingWindowLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.Window)
	removed := 0
	for key, w := range rl.windows {
		w.mu.Lock()
		w.prune(cutoff)
		if len(w.hits) == 0 {
			w.removed = true
			delete(rl.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys
func (rl *SlidingWindowLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// KeyFunc derives the limiter key from a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// UserKey keys by authenticated identity; anonymous requests are not limited
func UserKey(r *http.Request) string {
	if user := CurrentUser(r); user != nil {
		return "user:" + user.ID
	}
	return ""
}

// IPKey keys by client address. Forwarding headers count only when the
// audit middleware was configured with trusted proxies.
func IPKey(r *http.Request) string {
	return "ip:" + audit.RequestClientIP(r)
}

// RateLimitMiddleware provides HTTP rate limiting over any Limiter
type RateLimitMiddleware struct {
	name     string
	limiter  Limiter
	key      KeyFunc
	failOpen bool
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// RateLimitOption configures RateLimitMiddleware
type RateLimitOption func(*RateLimitMiddleware)

// WithRateLimitLogger sets the logger for limiter failures
func WithRateLimitLogger(logger *observability.Logger) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRateLimitMetrics sets the metrics sink for decisions
func WithRateLimitMetrics(metrics *observability.Metrics) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.metrics = metrics
	}
}

// WithFailOpen controls whether to fail open (true) or closed with 503
// (false) when the limiter errors
func WithFailOpen(enabled bool) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.failOpen = enabled
	}
}

// NewRateLimitMiddleware creates a rate limit middleware. name labels metrics.
func NewRateLimitMiddleware(name string, limiter Limiter, key KeyFunc, opts ...RateLimitOption) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		name:     name,
		limiter:  limiter,
		key:      key,
		failOpen: true,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UserRateLimit limits authenticated identities; it must run after the auth
// middleware
func UserRateLimit(name string, limiter Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	return NewRateLimitMiddleware(name, limiter, UserKey, opts...).Handler
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		d, err := m.limiter.Allow(ctx, key)
		if err != nil {
			m.logger.WithError(err).WithField("limiter", m.name).Warn("Rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceUnavailable(w, "Service temporarily unavailable")
			return
		}

		m.metrics.RecordRateLimit(m.name, d.Allowed)
		setRateLimitHeaders(w, d)

		if !d.Allowed {
			m.rateLimitExceeded(ctx, w, d, key)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) rateLimitExceeded(ctx context.Context, w http.ResponseWriter, d Decision, key string) {
	retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	if err := audit.FromContext(ctx).LogAuthorization(ctx, audit.EventTypeAuthzRateLimited,
		UserIDFromKey(key), audit.ResourceTypeRoute, m.name, audit.EventStatusDenied,
		fmt.Sprintf("limit %d exceeded", d.Limit)); err != nil {
		m.logger.WithError(err).Warn("Failed to write audit event")
	}

	httputil.WriteTooManyRequests(w, MessageTooManyRequests)
}

// UserIDFromKey returns the identity id of a UserKey, or ""
func UserIDFromKey(key string) string {
	const prefix = "user:"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return ""
}

func setRateLimitHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}
