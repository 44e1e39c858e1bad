package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
)

type batchItem struct {
	videoID string
	title   string // best known title before downloading, may be empty
}

// StartImport registers a batch job for ids and runs it in the background.
//
// sourceURL is optional. When set, its flat playlist listing is fetched first so failures can be
// reported with titles; a failed prefetch only degrades those titles.
func (e *Engine) StartImport(ctx context.Context, loc models.PlaylistLocation, ids []string, sourceURL string) jobs.ID {
	id, jobCtx := e.registry.Create(ctx)
	ids = append([]string{}, ids...)
	e.spawn(func() { e.runImport(jobCtx, id, loc, ids, sourceURL) })
	return id
}

func (e *Engine) runImport(ctx context.Context, id jobs.ID, loc models.PlaylistLocation, ids []string, sourceURL string) {
	defer e.guard(id)

	e.logger.Info("import started", "job", id, "tracks", len(ids), "location", loc)
	titles := e.prefetchTitles(ctx, id, sourceURL)

	items := make([]batchItem, 0, len(ids))
	for _, vid := range ids {
		items = append(items, batchItem{videoID: vid, title: titles[vid]})
	}
	e.finishBatch(ctx, id, loc, items)
}

func (e *Engine) prefetchTitles(ctx context.Context, id jobs.ID, sourceURL string) map[string]string {
	if sourceURL == "" {
		return map[string]string{}
	}
	meta, err := e.tool.FetchMetadata(ctx, sourceURL, true)
	if err != nil {
		e.logger.Warn("could not prefetch playlist titles", "job", id, "url", sourceURL, "error", err)
		return map[string]string{}
	}
	return meta.Titles()
}

// finishBatch runs items and settles the job. Item failures leave the job done; only a loop error fails it.
func (e *Engine) finishBatch(ctx context.Context, id jobs.ID, loc models.PlaylistLocation, items []batchItem) {
	failed, err := e.runBatch(ctx, id, loc, items)
	if err != nil {
		e.logger.Error("import failed", "job", id, "error", err)
		e.registry.MarkFailed(id, failureMessage(err))
		e.sendProgress(settledUpdate(id, len(items), failed, err))
		return
	}

	e.logger.Info("import settled", "job", id, "tracks", len(items), "failed", failed)
	e.registry.MarkDone(id)
	e.sendProgress(settledUpdate(id, len(items), failed, nil))
}

// runBatch downloads items one after another, collecting failures on the job.
//
// It returns early only when the job is cancelled, the playlist cannot be created or yt-dlp is missing.
func (e *Engine) runBatch(ctx context.Context, id jobs.ID, loc models.PlaylistLocation, items []batchItem) (int, error) {
	if _, err := e.library.EnsurePlaylist(loc); err != nil {
		return 0, err
	}

	total := len(items)
	failed := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return failed, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
		}

		n := i + 1
		lo, hi := batchPercent(i, total), batchPercent(n, total)
		e.registry.SetMessage(id, batchMessage(n, total))
		e.sendProgress(fetchMetadataUpdate(id, n, total, item.videoID))

		track := models.NewTrackDescriptor(item.videoID, item.title)
		got, err := e.DownloadTrack(ctx, loc, track, func(percent int, title string) {
			scaled := max(1, lo+(hi-lo)*percent/100)
			e.registry.SetProgress(id, scaled, downloadingMessage(title))
			e.sendProgress(downloadUpdate(id, n, total, scaled, title))
		})

		track.Title = got.Title
		e.record(ctx, id, loc, track, got.Filename, err)

		switch {
		case err == nil:
			e.sendProgress(verifyUpdate(id, n, total, got.Filename))
		case isCancelled(ctx, err):
			return failed, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
		case errors.Is(err, shared.ErrToolNotFound):
			return failed, err
		default:
			failed++
			e.logger.Warn("track failed", "job", id, "video", item.videoID, "error", err)
			e.registry.AddFailure(id, models.Failure{ID: item.videoID, Title: cmp.Or(item.title, got.Title)})
			e.sendProgress(trackFailedUpdate(id, n, total, item.videoID, err))
		}

		e.registry.SetPercent(id, hi)
	}
	return failed, nil
}

// batchPercent is the job percentage after done of total items, capped below 100 until the job settles.
func batchPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return min(99, int(math.Round(100*float64(done)/float64(total))))
}
