// Package api serves the authentication and user HTTP API.
//
// Routes are mounted on a gorilla/mux router under /api:
//
//	POST /api/auth/register             public, 201 + token
//	POST /api/auth/login                public, 200 + token
//	GET  /api/auth/me                   protected
//	PUT  /api/auth/me                   protected, name and email only
//	PUT  /api/auth/updatepassword       protected, 200 + new token
//	GET  /api/auth/logout               protected, clears the cookie
//	GET  /api/auth/verify               protected
//	GET  /api/users/search              protected, per-identity rate limit
//	GET  /api/users/whoami              optional auth
//	PUT  /api/admin/users/{id}/status   admin only
//	GET  /api/health                    public
//
// Every token response sets the httpOnly "token" cookie as well as returning
// the token in the body, so both browser and header clients work:
//
//	srv := api.NewServer(svc, api.Options{
//		Logger:        logger,
//		Metrics:       metrics,
//		Audit:         auditLogger,
//		SecureCookies: cfg.SecureCookies(),
//		SearchLimiter: limiter,
//	})
//	http.ListenAndServe(":5000", srv)
//
// Error bodies are always {"success": false, "error": "..."}; a 500 never
// carries the underlying error.
package api
