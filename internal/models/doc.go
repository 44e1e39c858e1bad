// Package models defines domain entities and persistence interfaces for the musix download service.
//
// The package contains two categories of types:
//
// 1. Runtime values: plain structs passed between the pipeline stages and encoded as JSON
//   - [Job] : Snapshot of a download/import job (status, percent, message, failures)
//   - [TrackDescriptor] : A remote audio source identified by video id
//   - [PlaylistLocation] : The profile/playlist directory a download lands in
//   - [DownloadedTrack] : A track derived from an MP3 on disk
//   - [Profile], [PlaylistSummary], [SearchResult] : API payloads
//
// 2. Persistent entities: Database-backed models with full lifecycle management
//   - [DownloadRecord] : One settled track (success or failure) in the download history
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
//
// Nothing here is the source of truth for what is downloaded: that is always the set of
// MP3 files present in a playlist directory.
package models
