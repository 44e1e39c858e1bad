package tasks

import (
	"fmt"

	"github.com/desertthunder/musix/internal/jobs"
)

// ProgressUpdate represents a progress event during a download or import.
//
// The job registry holds the authoritative state. Updates are a side channel for the CLI and TUI.
type ProgressUpdate struct {
	Job     jobs.ID // Job the update belongs to
	Phase   Phase   // Operation phase
	Step    int     // Current item number within the job
	Total   int     // Total items in the job
	Percent int     // Job percentage after this update
	Message string  // Human-readable message for display
	Data    any     // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchMetadata Phase = iota
	Download
	Verify
	MatchTracks
	Settled
)

func (p Phase) String() string {
	switch p {
	case FetchMetadata:
		return "fetch_metadata"
	case Download:
		return "download"
	case Verify:
		return "verify"
	case MatchTracks:
		return "match_tracks"
	case Settled:
		return "settled"
	default:
		return ""
	}
}

func fetchMetadataUpdate(id jobs.ID, step, total int, videoID string) ProgressUpdate {
	return ProgressUpdate{
		Job:     id,
		Phase:   FetchMetadata,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching metadata for %s...", videoID),
	}
}

func downloadUpdate(id jobs.ID, step, total, percent int, title string) ProgressUpdate {
	return ProgressUpdate{
		Job:     id,
		Phase:   Download,
		Step:    step,
		Total:   total,
		Percent: percent,
		Message: downloadingMessage(title),
	}
}

func verifyUpdate(id jobs.ID, step, total int, filename string) ProgressUpdate {
	return ProgressUpdate{
		Job:     id,
		Phase:   Verify,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, filename),
		Data:    filename,
	}
}

func trackFailedUpdate(id jobs.ID, step, total int, videoID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Job:     id,
		Phase:   Verify,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, videoID, err),
		Data:    err,
	}
}

func matchUpdate(id jobs.ID, step, total int, query string) ProgressUpdate {
	return ProgressUpdate{
		Job:     id,
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Matching %s", step, total, query),
	}
}

func settledUpdate(id jobs.ID, total, failed int, err error) ProgressUpdate {
	u := ProgressUpdate{Job: id, Phase: Settled, Step: total, Total: total}
	switch {
	case err != nil:
		u.Message = fmt.Sprintf("Failed: %v", err)
		u.Data = err
	case failed > 0:
		u.Percent = 100
		u.Message = fmt.Sprintf("Completed with %d of %d failed", failed, total)
	default:
		u.Percent = 100
		u.Message = jobs.CompletedMessage
	}
	return u
}

func downloadingMessage(title string) string {
	return "Downloading " + title
}

func batchMessage(n, total int) string {
	return fmt.Sprintf("Downloading %d/%d", n, total)
}

func matchingMessage(n, total int) string {
	return fmt.Sprintf("Matching %d/%d", n, total)
}
