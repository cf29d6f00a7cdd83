// Package repositories implements SQL persistence for all domain entities.
//
// Queries are written with "?" placeholders and passed through [sqlx.DB.Rebind], so the same
// repository works against SQLite during development and Postgres in production.
//
// Key Implementations:
//   - [ProfileRepository] : public profiles keyed by auth user id, unique usernames
//   - [ListEntryRepository] : watch-list entries, always scoped to the owning user, plus [ListEntryRepository.Stats]
//   - [ReviewRepository] : reviews joined with their author's profile; one per user and anime
//   - [SnapshotRepository] : cached catalog metadata used to render watch-lists
//
// Unique constraint violations from either driver surface as [shared.ErrConflict], and missing
// rows as [shared.ErrNotFound].
package repositories
