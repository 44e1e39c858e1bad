// Package repositories implements SQLite persistence for the download history.
//
// Repositories handle CRUD operations with atomic sequence generation for stable ordering.
// Deletes are soft via deleted_at timestamps, and deleted rows are excluded from queries.
//
// Key Implementations:
//   - [DownloadRepository] : One row per settled track, filterable by profile, playlist, status and video
//   - [HistoryRecorder] : Adapts [DownloadRepository] to the task engine's recorder interface
//
// The [NextSequence] function atomically increments per-table counters kept in <table>_sequence tables.
package repositories
