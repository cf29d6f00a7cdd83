// Package server exposes the catalog proxy, reviews, watch-list and profile endpoints over HTTP.
//
// # Routing
//
// [NewRouter] builds a chi router from [Deps]. Each endpoint group implements [Handler] and
// registers its own routes through Mount, so route definitions live next to their handlers.
//
// [Middleware] wraps handlers in the usual Go manner. The stack is request id, real ip, panic
// recovery, [RequestLogger], [Metrics.Instrument] and finally [Authenticator.Middleware].
//
// # Authentication
//
// [Authenticator] reads a bearer token from the Authorization header or the sb-access-token
// cookie. HS256 tokens are verified locally when a JWT secret is configured; otherwise the
// hosted backend's /auth/v1/user endpoint is asked. Requests without a valid token continue
// anonymously and [RequireAuth] turns them away with 401.
//
// # Errors
//
// Every response body is JSON. Failures are written as {"error": "..."} with the status taken
// from the shared error taxonomy: invalid input 400, unauthenticated 401, not the owner 403,
// not found 404, duplicate 409, upstream catalog failure 502 and anything else 500. Details of
// 500s are logged, not returned.
//
// # Reviews
//
// [ReviewsHandler] keeps the ordering of checks clients rely on: DELETE validates the id before
// identifying the caller, and a second review of the same anime answers 409 with the existing
// review's id under "reviewId".
//
// # Lifecycle
//
// [Server.Run] serves until its context is cancelled, then shuts down gracefully within the
// configured shutdown timeout.
package server
