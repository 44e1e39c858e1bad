package tasks

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/ytdlp"
)

// TrackProgress receives a track's download percentage, already clamped to 1..99.
type TrackProgress func(percent int, title string)

// DownloadTrack fetches metadata for track, downloads it as MP3 into loc and verifies the file landed.
//
// The returned track carries the final filename. On failure it still carries the best known title so
// callers can report it. A file whose name differs from the canonical "<title> [<id>].mp3" is renamed;
// a failed rename is logged and the download still counts.
func (e *Engine) DownloadTrack(ctx context.Context, loc models.PlaylistLocation, track models.TrackDescriptor, onProgress TrackProgress) (models.DownloadedTrack, error) {
	result := models.DownloadedTrack{ID: track.VideoID, Title: cmp.Or(track.Title, track.VideoID)}
	if track.VideoID == "" {
		return result, fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	meta, err := e.tool.FetchMetadata(ctx, track.URL(), false)
	if err != nil {
		return result, fmt.Errorf("failed to fetch video metadata: %w", err)
	}
	title := cmp.Or(meta.Title, track.Title, track.VideoID)
	result.Title = title

	dir, err := e.library.EnsurePlaylist(loc)
	if err != nil {
		return result, err
	}

	proc, err := e.tool.BeginDownload(ctx, ytdlp.DownloadRequest{
		URL:            track.URL(),
		OutputTemplate: e.library.OutputTemplate(loc),
	})
	if err != nil {
		return result, err
	}

	last := 0
	err = ytdlp.Follow(proc, func(line ytdlp.Line) {
		p, ok := ytdlp.ParseProgress(line.Text)
		if !ok {
			return
		}
		percent := clampTrackPercent(p)
		if percent <= last {
			return
		}
		last = percent
		if onProgress != nil {
			onProgress(percent, title)
		}
	})
	if err != nil {
		return result, err
	}

	found, ok, err := e.library.FindByVideoID(loc, track.VideoID)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, fmt.Errorf("%w: %s", shared.ErrVerification, track.VideoID)
	}

	filename := found
	if target := library.CanonicalFilename(title, track.VideoID); found != target {
		if err := os.Rename(filepath.Join(dir, found), filepath.Join(dir, target)); err != nil {
			e.logger.Warn("keeping downloaded filename",
				"file", found, "error", fmt.Errorf("%w: %v", shared.ErrRename, err))
		} else {
			filename = target
		}
	}

	result.Filename = filename
	result.FileURL = library.FileURL(loc, filename)
	return result, nil
}

// StartDownload registers a job for one track and runs it in the background.
//
// ctx is the parent of the job's context and must outlive the caller's request.
func (e *Engine) StartDownload(ctx context.Context, loc models.PlaylistLocation, videoID string) jobs.ID {
	id, jobCtx := e.registry.Create(ctx)
	e.spawn(func() { e.runDownload(jobCtx, id, loc, models.NewTrackDescriptor(videoID, "")) })
	return id
}

func (e *Engine) runDownload(ctx context.Context, id jobs.ID, loc models.PlaylistLocation, track models.TrackDescriptor) {
	defer e.guard(id)

	e.logger.Info("download started", "job", id, "video", track.VideoID, "location", loc)
	e.sendProgress(fetchMetadataUpdate(id, 1, 1, track.VideoID))

	got, err := e.DownloadTrack(ctx, loc, track, func(percent int, title string) {
		e.registry.SetProgress(id, percent, downloadingMessage(title))
		e.sendProgress(downloadUpdate(id, 1, 1, percent, title))
	})

	track.Title = got.Title
	e.record(ctx, id, loc, track, got.Filename, err)

	if err != nil {
		e.logger.Error("download failed", "job", id, "video", track.VideoID, "error", err)
		e.registry.MarkFailed(id, failureMessage(err))
		e.sendProgress(trackFailedUpdate(id, 1, 1, track.VideoID, err))
		e.sendProgress(settledUpdate(id, 1, 0, err))
		return
	}

	e.logger.Info("download settled", "job", id, "video", track.VideoID, "file", got.Filename)
	e.registry.MarkDone(id)
	e.sendProgress(verifyUpdate(id, 1, 1, got.Filename))
	e.sendProgress(settledUpdate(id, 1, 0, nil))
}

func clampTrackPercent(p float64) int {
	return int(max(1, min(99, math.Round(p))))
}
