// Package models defines domain entities and persistence interfaces for the anilistx watch-list and reviews service.
//
// Persistent entities mirror the hosted backend's tables:
//   - [Profile] : user_profiles, public profile data keyed by the auth user id
//   - [ListEntry] : anime_lists, one watch-list entry per user and anime
//   - [Review] : user_reviews, at most one review per user and anime
//   - [AnimeSnapshot] : anime_snapshots, catalog metadata cached for list rendering
//
// [ListStats] is a derived summary of a user's watch-list.
//
// All persistent entities implement the [Model] interface. The [Repository] interface
// defines the standard CRUD operations for entities addressed by id alone.
package models
