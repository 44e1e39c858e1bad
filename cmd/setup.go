package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/services"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/web"
	"github.com/desertthunder/musix/internal/ytdlp"
	"github.com/urfave/cli/v3"
)

const (
	sessionTTL      = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

// Setup creates the config file when missing, runs migrations and creates the profiles directory.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.writePlain("✓ Config written to %s\n", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database)

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("✓ Database %s ready (%d migrations applied)\n", r.config.Database.Path, applied)

	if err := os.MkdirAll(r.config.Paths.ProfilesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}
	r.writePlain("✓ Profiles directory %s ready\n", r.config.Paths.ProfilesDir)

	report := ytdlp.Doctor(r.loadAvailability(), r.config.Tool.FFmpegLocation)
	if !report.YtdlpFound {
		r.writePlainln("⚠ yt-dlp was not found. Install it or set tool.ytdlp_paths, then run 'musix doctor'.")
	}
	return nil
}

// Doctor reports whether yt-dlp and ffmpeg can be found.
func (r *Runner) Doctor(ctx context.Context, cmd *cli.Command) error {
	report := ytdlp.Doctor(r.loadAvailability(), r.config.Tool.FFmpegLocation)

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	r.writePlain("%s yt-dlp  %s\n", mark(report.YtdlpFound), report.YtdlpPath)
	r.writePlain("%s ffmpeg  %s\n", mark(report.FFmpegFound), report.FFmpegPath)

	if !report.YtdlpFound {
		return fmt.Errorf("%w: checked %v and $PATH", shared.ErrToolNotFound, r.config.Tool.YtdlpPaths)
	}
	if !report.FFmpegFound {
		r.writePlainln("⚠ ffmpeg is required to extract MP3 audio.")
	}
	return nil
}

func (r *Runner) loadAvailability() ytdlp.Availability {
	_, avail := r.loadTool()
	return avail
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
//
// Jobs started through the API share ctx, so they are cancelled on shutdown and
// settled before the history database is closed.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s := r.openStack()
	defer s.Close()
	go s.drain(ctx)

	var history web.HistoryReader
	if s.history != nil {
		history = s.history
	}

	var spotify *services.SpotifyService
	if creds := r.config.Credentials.Spotify; creds.Configured() {
		svc, err := services.NewSpotifyService(creds.Map(), r.spotifyOpts...)
		if err != nil {
			r.logger.Warn("spotify routes disabled", "error", err)
		} else {
			spotify = svc
		}
	}

	staticDir := r.config.Paths.StaticDir
	if v := cmd.String("static"); v != "" {
		staticDir = v
	}

	api := web.New(web.Options{
		Engine:       s.engine,
		Tool:         s.tool,
		History:      history,
		Spotify:      spotify,
		Sessions:     server.NewSessionStore(sessionTTL, false),
		Availability: s.avail,
		FFmpeg:       r.config.Tool.FFmpegLocation,
		SearchLimit:  r.config.Tool.SearchLimit,
		StaticDir:    staticDir,
		JobContext:   ctx,
		Logger:       r.logger,
	})

	sweep := r.config.Jobs.SweepInterval.Duration
	go s.registry.Run(ctx, sweep)
	go api.Sessions().Run(ctx, sweep)

	addr := r.config.Server.Addr()
	if v := cmd.String("addr"); v != "" {
		addr = v
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting server", "addr", addr, "profiles", r.config.Paths.ProfilesDir, "yt-dlp", s.avail)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := s.engine.Wait(shutdownCtx); err != nil {
		r.logger.Warn("jobs still running at shutdown", "error", err)
	}
	return nil
}
