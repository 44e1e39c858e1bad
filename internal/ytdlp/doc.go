// Package ytdlp wraps the yt-dlp binary.
//
// # Discovery
//
// [Locate] resolves the binary once at startup: configured candidate paths first, then $PATH.
// The result is an [Availability] value that is injected into the [Client]. A missing binary is
// not a startup error; every call made through an unavailable client fails with
// [shared.ErrToolNotFound].
//
// # Metadata
//
// [Client.FetchMetadata] runs yt-dlp with --dump-single-json (and --flat-playlist for searches and
// playlist previews), waits for exit and decodes stdout into [Metadata]. Calls are throttled by a
// [rate.Limiter] so a burst of searches cannot fan out into dozens of concurrent processes.
//
// # Downloads
//
// [Client.BeginDownload] spawns an extract-audio run targeting MP3 and returns a [ProcessHandle].
// Output from both streams is split on "\n" and "\r" (yt-dlp redraws its progress line with carriage
// returns) and delivered through [ProcessHandle.Lines]. [ParseProgress] turns a "[download]  NN.N%"
// line into a percentage.
//
// Failures are typed: [*SpawnError] when the process cannot start and [*ProcessError] carrying the
// exit code and a stderr tail when it exits non-zero.
package ytdlp
