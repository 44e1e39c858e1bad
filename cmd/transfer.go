package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/musix/internal/formatter"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/ui"
	"github.com/urfave/cli/v3"
)

// Search runs a yt-dlp search and prints the results, or lets the user pick one to download.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	format := formatter.FormatJSON
	if !cmd.Bool("json") {
		var err error
		if format, err = formatter.ParseFormat(cmd.String("format")); err != nil {
			return err
		}
	}

	limit := cmd.Int("limit")
	if limit <= 0 {
		limit = r.config.Tool.SearchLimit
	}

	r.logger.Debug("searching", "query", query, "limit", limit)

	tool, _ := r.loadTool()
	entries, err := tool.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	results := make([]models.SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.Result())
	}

	if cmd.Bool("pick") {
		return r.pickResult(ctx, cmd, query, results)
	}

	data, err := formatter.FormatSearch(results, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// pickResult shows a picker over results. The chosen video is downloaded when --playlist is set
// and printed otherwise.
func (r *Runner) pickResult(ctx context.Context, cmd *cli.Command, query string, results []models.SearchResult) error {
	if !r.interactive {
		return fmt.Errorf("%w: --pick needs a terminal", shared.ErrInvalidArgument)
	}
	if len(results) == 0 {
		r.writePlain("No results for %q\n", query)
		return nil
	}

	item, err := ui.RunPicker(ctx, ui.NewPicker(fmt.Sprintf("Results for %q", query), ui.ResultItems(results)))
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	chosen, ok := ui.ChosenResult(item)
	if !ok {
		return nil
	}

	if cmd.String("playlist") == "" {
		r.writePlain("%s  %s\n", chosen.ID, chosen.Title)
		return nil
	}
	return r.download(ctx, cmd, chosen.ID)
}

// Download runs a single-track job and follows it until it settles.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	videoID := strings.TrimSpace(cmd.StringArg("id"))
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}
	return r.download(ctx, cmd, videoID)
}

func (r *Runner) download(ctx context.Context, cmd *cli.Command, videoID string) error {
	loc, err := library.Locate(cmd.String("profile"), cmd.String("playlist"))
	if err != nil {
		return err
	}

	view, err := r.useProgressView(cmd)
	if err != nil {
		return err
	}

	s := r.openStack()
	defer s.Close()

	r.logger.Info("starting download", "video", videoID, "playlist", loc)
	id := s.engine.StartDownload(ctx, loc, videoID)

	job, err := r.follow(ctx, s, id, fmt.Sprintf("Downloading %s into %s", videoID, loc), view)
	if err != nil {
		return err
	}
	return r.report(job, view)
}

// Import runs a batch job over the given video ids.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	ids := make([]string, 0, cmd.Args().Len())
	for _, id := range cmd.Args().Slice() {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one video id", shared.ErrMissingArgument)
	}

	sourceURL := strings.TrimSpace(cmd.String("source-url"))
	if sourceURL != "" && !shared.IsHTTPURL(sourceURL) {
		return fmt.Errorf("%w: --source-url must be an http(s) URL", shared.ErrInvalidArgument)
	}

	loc, err := library.Locate(cmd.String("profile"), cmd.String("playlist"))
	if err != nil {
		return err
	}

	view, err := r.useProgressView(cmd)
	if err != nil {
		return err
	}

	s := r.openStack()
	defer s.Close()

	r.logger.Info("starting import", "tracks", len(ids), "playlist", loc)
	id := s.engine.StartImport(ctx, loc, ids, sourceURL)

	job, err := r.follow(ctx, s, id, fmt.Sprintf("Importing %d tracks into %s", len(ids), loc), view)
	if err != nil {
		return err
	}
	return r.report(job, view)
}
