// Package middleware provides the HTTP middleware of the runtime API.
//
// Order used by the server:
//   - Recovery: panics become a 500 and an error log
//   - RequestID: X-Request-ID, generated when the caller sent none
//   - CORS: browser access, any origin unless CORS_ALLOW_ORIGINS is set
//   - RateLimit: token bucket per API key, or per IP for anonymous callers
//   - APIKey: X-Session-API-Key, compared in constant time
//
// Example Usage:
//
//	router.Use(middleware.Recovery(logger), middleware.RequestID())
//	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
//	router.Use(middleware.APIKey(key, "/", "/alive"))
package middleware
