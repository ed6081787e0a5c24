package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/httputil"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/middleware"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

// Options configures the API server
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Audit receives authentication and authorization events; nil disables it
	Audit         audit.Logger
	AuditRequests bool

	AllowedOrigins []string
	MaxBodyBytes   int64
	SecureCookies  bool

	// TrustedProxies may set the client address through forwarding headers
	TrustedProxies *audit.TrustedProxies

	// SearchLimiter bounds user search per identity; nil disables the limit
	SearchLimiter middleware.Limiter
	// APILimiter bounds every /api request per client address; nil disables it
	APILimiter      middleware.Limiter
	LimiterFailOpen bool

	// Tracing wraps the handler in OpenTelemetry instrumentation
	Tracing bool

	Now func() time.Time
}

// Server represents our API server
type Server struct {
	service  *auth.Service
	router   *mux.Router
	handler  http.Handler
	opts     Options
	logger   *observability.Logger
	metrics  *observability.Metrics
	protect  func(http.Handler) http.Handler
	optional func(http.Handler) http.Handler
}

// NewServer creates a new API server
func NewServer(service *auth.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOp()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	authOpts := []middleware.AuthOption{
		middleware.WithAuthLogger(opts.Logger),
		middleware.WithAuthMetrics(opts.Metrics),
	}
	s.protect = middleware.NewAuthMiddleware(service, false, authOpts...).Handler
	s.optional = middleware.NewAuthMiddleware(service, true, authOpts...).Handler

	s.setupRoutes()

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware(opts.Logger),
		httputil.SecurityHeadersMiddleware,
		httputil.CORSMiddleware(httputil.CORSConfig{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowCredentials: true,
		}),
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
		audit.NewMiddleware(opts.Audit, opts.AuditRequests, audit.WithTrustedProxies(opts.TrustedProxies)).Handler,
	)(s.router)

	if opts.Tracing {
		handler = otelhttp.NewHandler(handler, "sports-api")
	}
	s.handler = handler

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	api := s.router.PathPrefix("/api").Subrouter()
	if s.opts.APILimiter != nil {
		api.Use(middleware.NewRateLimitMiddleware("api", s.opts.APILimiter, middleware.IPKey, s.rateLimitOptions()...).Handler)
	}

	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	// Auth routes
	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", s.register).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", s.login).Methods(http.MethodPost)
	authRoutes.Handle("/me", s.protect(http.HandlerFunc(s.getMe))).Methods(http.MethodGet)
	authRoutes.Handle("/me", s.protect(http.HandlerFunc(s.updateDetails))).Methods(http.MethodPut)
	authRoutes.Handle("/updatepassword", s.protect(http.HandlerFunc(s.updatePassword))).Methods(http.MethodPut)
	authRoutes.Handle("/logout", s.protect(http.HandlerFunc(s.logout))).Methods(http.MethodGet, http.MethodPost)
	authRoutes.Handle("/verify", s.protect(http.HandlerFunc(s.verify))).Methods(http.MethodGet)

	// User routes
	search := http.Handler(http.HandlerFunc(s.searchUsers))
	if s.opts.SearchLimiter != nil {
		search = middleware.UserRateLimit("search", s.opts.SearchLimiter, s.rateLimitOptions()...)(search)
	}
	userRoutes := api.PathPrefix("/users").Subrouter()
	userRoutes.Handle("/search", s.protect(search)).Methods(http.MethodGet)
	userRoutes.Handle("/whoami", s.optional(http.HandlerFunc(s.whoAmI))).Methods(http.MethodGet)

	// Admin routes
	adminOnly := middleware.RequireRole(s.metrics, auth.RoleAdmin)
	api.Handle("/admin/users/{id}/status", s.protect(adminOnly(http.HandlerFunc(s.setUserStatus)))).Methods(http.MethodPut)

	// A subrouter answers its own misses; they never reach the parent
	setFallbacks(s.router, api, authRoutes, userRoutes)
}

func setFallbacks(routers ...*mux.Router) {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, MessageRouteNotFound)
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, MessageMethodNotAllowed)
	})
	for _, router := range routers {
		router.NotFoundHandler = notFound
		router.MethodNotAllowedHandler = notAllowed
	}
}

func (s *Server) rateLimitOptions() []middleware.RateLimitOption {
	return []middleware.RateLimitOption{
		middleware.WithRateLimitLogger(s.logger),
		middleware.WithRateLimitMetrics(s.metrics),
		middleware.WithFailOpen(s.opts.LimiterFailOpen),
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// health handles GET /api/health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: s.opts.Now().UTC(),
	})
}
