package audit

import (
	"net/http"
	"time"
)

// Middleware installs the audit logger and request metadata in each request
// context, and optionally records every request as an http.request event
type Middleware struct {
	logger         Logger
	logAllRequests bool
	proxies        *TrustedProxies
}

// MiddlewareOption configures Middleware
type MiddlewareOption func(*Middleware)

// WithTrustedProxies resolves client addresses through forwarding headers
// sent by the given proxies
func WithTrustedProxies(proxies *TrustedProxies) MiddlewareOption {
	return func(m *Middleware) {
		m.proxies = proxies
	}
}

// NewMiddleware creates a new audit middleware
func NewMiddleware(logger Logger, logAllRequests bool, opts ...MiddlewareOption) *Middleware {
	if logger == nil {
		logger = NoOp()
	}
	m := &Middleware{
		logger:         logger,
		logAllRequests: logAllRequests,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Handler wraps an HTTP handler with audit context
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := WithLogger(r.Context(), m.logger)
		ctx = withRequestInfo(ctx, r, m.proxies.ClientIP(r))

		if !m.logAllRequests {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := EventStatusSuccess
		switch {
		case rec.statusCode == http.StatusForbidden || rec.statusCode == http.StatusUnauthorized:
			status = EventStatusDenied
		case rec.statusCode >= 400:
			status = EventStatusFailure
		}

		event := buildBaseEvent(ctx, EventTypeHTTPRequest, status)
		event.StatusCode = rec.statusCode
		event.Metadata["duration_ms"] = time.Since(start).Milliseconds()
		_ = m.logger.Log(ctx, event)
	})
}
