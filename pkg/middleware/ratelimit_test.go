package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/contextkeys"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Helper function to set auth context in request for testing
func setAuthContextForTest(r *http.Request, user *auth.User) *http.Request {
	ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: user})
	return r.WithContext(ctx)
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 10, Window: time.Minute}, WithLimiterClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := limiter.Allow(ctx, "user:1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 9-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, d.Remaining, 9-i)
		}
		clock.Advance(time.Second)
	}

	d, _ := limiter.Allow(ctx, "user:1")
	if d.Allowed {
		t.Fatal("11th request should be rejected")
	}
	// first hit at t0, now t0+10s, window 60s
	if d.RetryAfter != 50*time.Second {
		t.Errorf("RetryAfter = %s, want 50s", d.RetryAfter)
	}

	// other identities are unaffected
	if d, _ := limiter.Allow(ctx, "user:2"); !d.Allowed {
		t.Error("a different key should be allowed")
	}

	clock.Advance(50 * time.Second)
	if d, _ := limiter.Allow(ctx, "user:1"); !d.Allowed {
		t.Error("request should be allowed once the oldest hit leaves the window")
	}
}

func TestSlidingWindowLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	clock := newFakeClock()
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 2, Window: time.Minute}, WithLimiterClock(clock.Now))
	ctx := context.Background()

	limiter.Allow(ctx, "k")
	limiter.Allow(ctx, "k")
	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		limiter.Allow(ctx, "k")
	}

	// t0+60s: both initial hits have left the window
	clock.Advance(10 * time.Second)
	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Error("rejections should not extend the window")
	}
}

func TestSlidingWindowLimiter_Remaining(t *testing.T) {
	clock := newFakeClock()
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 3, Window: time.Minute}, WithLimiterClock(clock.Now))

	if got := limiter.Remaining("k"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
	limiter.Allow(context.Background(), "k")
	if got := limiter.Remaining("k"); got != 2 {
		t.Errorf("Remaining = %d, want 2", got)
	}
	clock.Advance(time.Minute)
	if got := limiter.Remaining("k"); got != 3 {
		t.Errorf("Remaining after window = %d, want 3", got)
	}
}

func TestSlidingWindowLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 5, Window: time.Minute}, WithLimiterClock(clock.Now))
	ctx := context.Background()

	limiter.Allow(ctx, "old")
	clock.Advance(45 * time.Second)
	limiter.Allow(ctx, "recent")

	clock.Advance(30 * time.Second)
	if removed := limiter.Cleanup(); removed != 1 {
		t.Errorf("Cleanup removed %d keys, want 1", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("Len = %d, want 1", limiter.Len())
	}
}

func TestSlidingWindowLimiter_Concurrent(t *testing.T) {
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 50, Window: time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := limiter.Allow(ctx, "shared")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
			if i%10 == 0 {
				limiter.Cleanup()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed %d requests, want 50", allowed)
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	if err := SearchRateLimitConfig().Validate(); err != nil {
		t.Errorf("search config should be valid: %v", err)
	}
	if err := (RateLimitConfig{Max: 0, Window: time.Minute}).Validate(); err == nil {
		t.Error("expected error for zero max")
	}
	if err := (RateLimitConfig{Max: 1}).Validate(); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestSlidingWindowLimiter_InvalidConfig(t *testing.T) {
	for _, cfg := range []RateLimitConfig{{Max: 0, Window: time.Minute}, {Max: 5}} {
		limiter := NewSlidingWindowLimiter(cfg)
		if _, err := limiter.Allow(context.Background(), "user:1"); err == nil {
			t.Errorf("Allow with %+v: expected error", cfg)
		}
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := setAuthContextForTest(httptest.NewRequest("GET", "/", nil), &auth.User{ID: "u-1"})
	w := httptest.NewRecorder()
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 0, Window: time.Minute})
	UserRateLimit("search", limiter, WithFailOpen(false))(ok).ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestUserRateLimit(t *testing.T) {
	clock := newFakeClock()
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 10, Window: time.Minute}, WithLimiterClock(clock.Now))
	auditLog := audit.NewMemoryLogger()
	handler := UserRateLimit("search", limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	user := &auth.User{ID: "u-1", Role: auth.RoleAthlete, IsActive: true}
	send := func() *httptest.ResponseRecorder {
		req := setAuthContextForTest(httptest.NewRequest("GET", "/api/users/search", nil), user)
		req = req.WithContext(audit.WithLogger(req.Context(), auditLog))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 10; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, w.Code)
		}
	}

	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Error != MessageTooManyRequests {
		t.Errorf("unexpected message: %q", body.Error)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", got)
	}
	wantReset := strconv.FormatInt(clock.Now().Add(time.Minute).Unix(), 10)
	if got := w.Header().Get("X-RateLimit-Reset"); got != wantReset {
		t.Errorf("X-RateLimit-Reset = %q, want %s", got, wantReset)
	}

	events := auditLog.EventsOfType(audit.EventTypeAuthzRateLimited)
	if len(events) != 1 || events[0].UserID != "u-1" {
		t.Errorf("expected one rate limited audit event for u-1, got %+v", events)
	}

	clock.Advance(time.Minute)
	if w := send(); w.Code != http.StatusOK {
		t.Errorf("expected status 200 after the window, got %d", w.Code)
	}
}

func TestUserRateLimit_AnonymousPassesThrough(t *testing.T) {
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	handler := UserRateLimit("search", limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Errorf("anonymous request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	if limiter.Len() != 0 {
		t.Error("anonymous requests should not create limiter state")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return Decision{}, errors.New("redis: connection refused")
}

func TestRateLimitMiddleware_LimiterFailure(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := setAuthContextForTest(httptest.NewRequest("GET", "/", nil), &auth.User{ID: "u-1"})

	t.Run("fail open", func(t *testing.T) {
		w := httptest.NewRecorder()
		UserRateLimit("search", failingLimiter{})(ok).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
	})

	t.Run("fail closed", func(t *testing.T) {
		w := httptest.NewRecorder()
		UserRateLimit("search", failingLimiter{}, WithFailOpen(false))(ok).ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", w.Code)
		}
	})
}

func TestIPKey_IgnoresForwardedHeaderWithoutTrustedProxy(t *testing.T) {
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	handler := audit.NewMiddleware(audit.NoOp(), false).Handler(
		NewRateLimitMiddleware("api", limiter, IPKey).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	blocked := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	if blocked != 8 {
		t.Errorf("blocked %d requests, want 8", blocked)
	}
}

func TestIPKey(t *testing.T) {
	limiter := NewSlidingWindowLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	handler := NewRateLimitMiddleware("api", limiter, IPKey).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("10.0.0.1:5000"); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	// same address, different port
	if code := send("10.0.0.1:6000"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2:5000"); code != http.StatusOK {
		t.Errorf("expected 200 for another address, got %d", code)
	}
}

func TestUserIDFromKey(t *testing.T) {
	if got := UserIDFromKey("user:abc"); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := UserIDFromKey("ip:1.2.3.4"); got != "" {
		t.Errorf("got %q", got)
	}
}
