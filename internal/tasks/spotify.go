package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
)

// StartSpotifyImport registers a job that matches a Spotify playlist against YouTube and downloads the matches.
//
// Tracks without a search hit are recorded as failures under their Spotify id.
func (e *Engine) StartSpotifyImport(ctx context.Context, src TrackSource, playlistID string, loc models.PlaylistLocation) jobs.ID {
	id, jobCtx := e.registry.Create(ctx)
	e.spawn(func() { e.runSpotifyImport(jobCtx, id, src, playlistID, loc) })
	return id
}

func (e *Engine) runSpotifyImport(ctx context.Context, id jobs.ID, src TrackSource, playlistID string, loc models.PlaylistLocation) {
	defer e.guard(id)

	if src == nil {
		e.fail(id, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable))
		return
	}

	tracks, err := src.PlaylistTracks(ctx, playlistID)
	if err != nil {
		e.fail(id, fmt.Errorf("failed to fetch Spotify playlist: %w", err))
		return
	}

	e.logger.Info("spotify import started", "job", id, "playlist", playlistID, "tracks", len(tracks))
	items, err := e.matchTracks(ctx, id, tracks)
	if err != nil {
		e.fail(id, err)
		return
	}
	e.finishBatch(ctx, id, loc, items)
}

// matchTracks searches YouTube for every track, keeping the first hit.
func (e *Engine) matchTracks(ctx context.Context, id jobs.ID, tracks []models.SourceTrack) ([]batchItem, error) {
	total := len(tracks)
	items := make([]batchItem, 0, total)

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
		}

		n := i + 1
		query := t.Query()
		e.registry.SetProgress(id, 1, matchingMessage(n, total))
		e.sendProgress(matchUpdate(id, n, total, query))

		results, err := e.tool.Search(ctx, query, 1)
		switch {
		case err != nil && isCancelled(ctx, err):
			return nil, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
		case errors.Is(err, shared.ErrToolNotFound):
			return nil, err
		case err != nil || len(results) == 0:
			e.logger.Warn("no match for track", "job", id, "track", t.ID, "query", query, "error", err)
			e.registry.AddFailure(id, models.Failure{ID: t.ID, Title: query})
			continue
		}

		items = append(items, batchItem{videoID: results[0].ID, title: query})
	}
	return items, nil
}

func (e *Engine) fail(id jobs.ID, err error) {
	e.logger.Error("job failed", "job", id, "error", err)
	e.registry.MarkFailed(id, failureMessage(err))
	e.sendProgress(settledUpdate(id, 0, 0, err))
}
