// Package tasks runs download and import jobs with real-time progress reporting.
//
// # Core Operations
//
// [Engine] exposes three job starters. Each registers a job in the [jobs.Registry], returns its id
// immediately and runs the work on its own goroutine:
//
//  1. [Engine.StartDownload] : one track
//     - Fetches metadata for the canonical watch URL
//     - Spawns yt-dlp in extract-audio mode and streams its progress into the job
//     - Verifies an MP3 containing the video id landed in the playlist directory
//     - Renames it to "<title> [<id>].mp3" (best effort)
//
//  2. [Engine.StartImport] : an ordered batch of tracks
//     - Optionally prefetches titles from a source playlist URL
//     - Downloads items one at a time; a failed item is appended to the job's failures
//     - Settles as done once every item was attempted
//
//  3. [Engine.StartSpotifyImport] : a Spotify playlist
//     - Lists the playlist through a [TrackSource]
//     - Matches each track with a single YouTube search
//     - Runs the matches as a batch within the same job
//
// [Engine.DownloadTrack] is the synchronous single-track state machine the three share.
//
// # Progress Reporting
//
// The registry is the source of truth for pollers. An optional [ProgressUpdate] channel mirrors
// each step for the CLI; sends use select with default so a slow reader never stalls a download.
//
// # History
//
// The optional [HistoryRecorder] receives one models.DownloadRecord per settled track.
// Recording errors are logged and ignored.
//
// # Cancellation
//
// Every job owns a context. Cancelling it through [jobs.Registry.Cancel] kills the running yt-dlp
// process and stops a batch before its next item; the job settles as an error with [CancelledMessage].
package tasks
