// package tasks runs download and import jobs.
//
// Engine drives yt-dlp through a Tool, writes into a library.Store and reports every state change to a jobs.Registry.
// Operations also emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/ytdlp"
)

// CancelledMessage is the message of a job stopped by its context.
const CancelledMessage = "Cancelled"

// Tool is the subset of [ytdlp.Client] the engine needs.
type Tool interface {
	FetchMetadata(ctx context.Context, target string, flat bool) (*ytdlp.Metadata, error)
	Search(ctx context.Context, query string, limit int) ([]ytdlp.Entry, error)
	BeginDownload(ctx context.Context, req ytdlp.DownloadRequest) (ytdlp.ProcessHandle, error)
}

// HistoryRecorder persists the outcome of every settled track.
//
// Implemented by repositories.HistoryRecorder. Errors are logged and never change a job's outcome.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *models.DownloadRecord) error
}

// TrackSource lists the tracks of an external playlist.
//
// Implemented by services.SpotifyService.
type TrackSource interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.SourceTrack, error)
}

// EngineOpts contains the engine's collaborators. Tool, Registry and Library are required.
type EngineOpts struct {
	Tool     Tool
	Registry *jobs.Registry
	Library  *library.Store
	History  HistoryRecorder       // optional
	Logger   *log.Logger           // optional
	Progress chan<- ProgressUpdate // optional, never blocks
}

// Engine orchestrates single-track downloads, batch imports and Spotify imports.
type Engine struct {
	tool     Tool
	registry *jobs.Registry
	library  *library.Store
	history  HistoryRecorder
	logger   *log.Logger
	progress chan<- ProgressUpdate
	running  sync.WaitGroup
}

// NewEngine creates a new Engine.
func NewEngine(opts EngineOpts) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		tool:     opts.Tool,
		registry: opts.Registry,
		library:  opts.Library,
		history:  opts.History,
		logger:   shared.WithLogger(logger, "component", "tasks"),
		progress: opts.Progress,
	}
}

// Registry returns the job registry the engine reports into.
func (e *Engine) Registry() *jobs.Registry { return e.registry }

// Library returns the store downloads are written to.
func (e *Engine) Library() *library.Store { return e.library }

// Wait blocks until every job started by the engine has settled and written its history, or ctx is done.
//
// Callers close the history store only after Wait returns nil.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn in a goroutine tracked by [Engine.Wait].
func (e *Engine) spawn(fn func()) {
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		fn()
	}()
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- update:
	default:
	}
}

// record writes a history entry, logging instead of failing.
func (e *Engine) record(ctx context.Context, id jobs.ID, loc models.PlaylistLocation, track models.TrackDescriptor, filename string, err error) {
	if e.history == nil {
		return
	}
	rec := models.NewDownloadRecord(id.String(), loc, track, filename, err)
	if herr := e.history.Record(context.WithoutCancel(ctx), rec); herr != nil {
		e.logger.Warn("failed to record download", "job", id, "video", track.VideoID, "error", herr)
	}
}

// guard settles the job as failed if the orchestration goroutine panics.
func (e *Engine) guard(id jobs.ID) {
	if r := recover(); r != nil {
		err := fmt.Errorf("unexpected failure: %v", r)
		e.logger.Error("job panicked", "job", id, "panic", r)
		e.registry.MarkFailed(id, err.Error())
		e.sendProgress(settledUpdate(id, 0, 0, err))
	}
}

// failureMessage is the job message for a terminal error.
func failureMessage(err error) string {
	if errors.Is(err, shared.ErrCancelled) || errors.Is(err, context.Canceled) {
		return CancelledMessage
	}
	return err.Error()
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, shared.ErrCancelled)
}
