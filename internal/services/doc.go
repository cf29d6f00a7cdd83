// Package services defines the [Catalog] interface for anime metadata and the clients built on it.
//
// # Catalog Interface
//
// [Catalog] covers the read-only catalog calls: search, lookup by id, top lists, seasonal
// lists, recommendations, genres and a random pick. Page-shaped results use [Page] with
// Jikan's pagination block.
//
// # Jikan Implementation
//
// [JikanService] talks to the Jikan v4 REST API (an unofficial MyAnimeList API).
//
// Every request waits on a token-bucket limiter, runs under a per-request timeout, and is
// retried on transport errors, 429 and 5xx with exponential backoff. A Retry-After header
// overrides the computed delay.
//
// # Caching
//
// [CachedCatalog] wraps any Catalog. Responses are stored under their request signature
// (path plus sorted query) for a TTL in a [cache.Store], and concurrent identical misses
// share one upstream call via singleflight. Errors and random picks are never cached.
//
// # Reviews Client
//
// [ReviewsClient] uses [APIService] to list, submit, update and delete reviews against the
// anilistx HTTP API, authenticating with a static oauth2 bearer token.
//
// # Error Handling
//
// Failed responses become [APIError], which unwraps to the shared taxonomy:
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrConflict] : 409
//   - [shared.ErrServiceUnavailable] : 5xx and transport failures
//   - [shared.ErrAPIRequest] : anything else
//
// # Instrumentation
//
// [Recorder] receives upstream request, retry and cache outcomes. The server implements it
// with Prometheus collectors; the default discards everything.
package services
