// Package middleware provides HTTP middleware for token authentication.
//
// # Overview
//
// AuthMiddleware extracts the Bearer token from the Authorization header,
// validates it against the auth service, and places the resolved identity in
// the request context for downstream handlers.
//
//	authMW := middleware.NewAuthMiddleware(authService, false)
//	protected.Use(authMW.Handler)
//
// Handlers read the identity back with auth.IdentityFromContext.
//
// # Related Packages
//
//   - pkg/auth: Token validation and identity resolution
//   - pkg/contextkeys: Context key definitions
package middleware
