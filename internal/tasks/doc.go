// Package tasks runs long-running catalog operations with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines two operations:
//
//  1. [Engine.Enrich] : Attach catalog metadata to watch-list entries
//     - Looks up stored snapshots for every distinct anime id
//     - Fetches missing or outdated ones with a rate-limited worker pool
//     - Persists new snapshots through the optional [SnapshotCacher]
//     - Falls back to a stale snapshot when the catalog call fails
//
//  2. [Engine.Warm] : Pre-fetch popular catalog pages
//     - Top lists (optionally several filters and pages)
//     - The current season and the genre list
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Queries
//
// [Query] keeps a loading/error/data triple for one view and discards responses to
// superseded fetches. [NewPageQuery] adds an empty-page fallback for paginated catalog
// calls and [CollectPages] walks pages until the catalog reports no next page.
//
// # Implementation
//
// [CatalogEngine] implements [Engine] with dependencies on:
//   - [services.Catalog] : usually a [services.CachedCatalog] over Jikan
//   - [SnapshotCacher] : Optional persistence layer (repositories.SnapshotCacheAdapter)
package tasks
