package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/musix/internal/formatter"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) store() *library.Store {
	return library.NewStore(r.config.Paths.ProfilesDir, r.logger)
}

// ProfileList prints every profile.
func (r *Runner) ProfileList(ctx context.Context, cmd *cli.Command) error {
	profiles, err := r.store().ListProfiles()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(profiles, true)
	}

	if len(profiles) == 0 {
		r.writePlain("No profiles. Create one with 'musix profile create <name>'.\n")
		return nil
	}
	for _, p := range profiles {
		r.writePlain("%-24s %s\n", p.ID, p.DisplayName)
	}
	return nil
}

// ProfileCreate creates a profile from a display name.
func (r *Runner) ProfileCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: profile name", shared.ErrMissingArgument)
	}

	p, err := r.store().CreateProfile(name)
	if err != nil {
		return err
	}
	r.writePlain("✓ Created profile %s (%s)\n", p.ID, p.DisplayName)
	return nil
}

// ProfileDelete removes a profile with all of its playlists.
func (r *Runner) ProfileDelete(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: profile id", shared.ErrMissingArgument)
	}

	if err := r.store().DeleteProfile(id); err != nil {
		return err
	}
	r.writePlain("✓ Deleted profile %s\n", shared.StrongSanitize(id))
	return nil
}

// PlaylistList prints a profile's playlists with their track counts.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	profile := shared.StrongSanitize(cmd.String("profile"))
	playlists, err := r.store().ListPlaylists(profile)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if playlists == nil {
			playlists = []models.PlaylistSummary{}
		}
		return r.writeJSON(playlists, true)
	}

	r.writePlainHeader(fmt.Sprintf("Playlists for %s", profile))
	if len(playlists) == 0 {
		r.writePlain("No playlists yet.\n")
		return nil
	}
	for _, p := range playlists {
		r.writePlain("%-32s %d tracks\n", p.Name, p.TrackCount)
	}
	return nil
}

// PlaylistShow prints the tracks of one playlist in the chosen format.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	loc, err := library.Locate(cmd.String("profile"), cmd.StringArg("name"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	tracks, err := r.store().ListDownloaded(loc)
	if err != nil {
		return err
	}
	if tracks == nil {
		tracks = []models.DownloadedTrack{}
	}

	data, err := formatter.FormatListing(formatter.Listing{Location: loc, Tracks: tracks}, format)
	if err != nil {
		return err
	}
	return r.export(data, cmd.String("output"), loc.Playlist, format)
}

// PlaylistCreate creates an empty playlist directory.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	loc, err := library.Locate(cmd.String("profile"), cmd.StringArg("name"))
	if err != nil {
		return err
	}
	if err := r.store().CreatePlaylist(loc); err != nil {
		return err
	}
	r.writePlain("✓ Created playlist %s\n", loc)
	return nil
}

// PlaylistDelete removes a playlist and its tracks.
func (r *Runner) PlaylistDelete(ctx context.Context, cmd *cli.Command) error {
	loc, err := library.Locate(cmd.String("profile"), cmd.StringArg("name"))
	if err != nil {
		return err
	}
	if err := r.store().DeletePlaylist(loc); err != nil {
		return err
	}
	r.writePlain("✓ Deleted playlist %s\n", loc)
	return nil
}

// History prints the most recent download outcomes, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	profile := ""
	if raw := strings.TrimSpace(cmd.String("profile")); raw != "" {
		profile = shared.StrongSanitize(raw)
	}

	s := r.openStack()
	defer s.Close()
	if s.history == nil {
		return fmt.Errorf("%w: history database %s could not be opened", shared.ErrServiceUnavailable, r.config.Database.Path)
	}

	records, err := s.history.Recent(profile, cmd.Int("limit"))
	if err != nil {
		return err
	}
	views := make([]models.DownloadRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.View())
	}

	data, err := formatter.FormatHistory(views, format)
	if err != nil {
		return err
	}
	return r.export(data, cmd.String("output"), "history", format)
}

// export writes data to path when one is given and to the runner's output otherwise.
func (r *Runner) export(data []byte, path, name string, format formatter.Format) error {
	if path == "" {
		return r.writeBytes(data)
	}
	written, err := formatter.WriteExport(data, path, name, format)
	if err != nil {
		return err
	}
	r.logger.Info("exported", "path", written, "format", format)
	r.writePlain("✓ Written to %s\n", written)
	return nil
}
