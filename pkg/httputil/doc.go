// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Responses
//
// Every error response has the same shape:
//
//	{"success": false, "error": "Not authorized to access this route"}
//
// Helpers write it for the common statuses:
//
//	httputil.WriteBadRequest(w, "Please add a name")
//	httputil.WriteUnauthorized(w, "Invalid credentials")
//	httputil.WriteInternalError(w) // always "Server Error"
//
// Successful payloads use WriteData, or WriteJSON for custom envelopes.
//
// # Requests
//
//	var in registerRequest
//	if !httputil.ParseJSONOrError(w, r, &in) {
//		return
//	}
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.SecurityHeadersMiddleware,
//		httputil.CORSMiddleware(httputil.CORSConfig{AllowedOrigins: origins, AllowCredentials: true}),
//		httputil.MaxBytesMiddleware(10 << 20),
//	)(router)
package httputil
