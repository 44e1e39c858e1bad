package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/services"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// newSpotify builds an unauthenticated client from the configured credentials.
func (r *Runner) newSpotify() (*services.SpotifyService, error) {
	creds := r.config.Credentials.Spotify
	if !creds.Configured() {
		return nil, fmt.Errorf("%w: set credentials.spotify.client_id and client_secret in %s", shared.ErrMissingCredentials, r.configPath)
	}
	svc, err := services.NewSpotifyService(creds.Map(), r.spotifyOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return svc, nil
}

// spotifyClient returns a client using the token saved by 'spotify login'. Refreshed tokens are saved back.
func (r *Runner) spotifyClient(ctx context.Context) (*services.SpotifyService, error) {
	svc, err := r.newSpotify()
	if err != nil {
		return nil, err
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'musix spotify login' first", shared.ErrNotAuthenticated)
	}

	return svc.WithToken(ctx, token, func(t *oauth2.Token) {
		if err := r.saveToken(t); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
		} else {
			r.logger.Debug("saved refreshed spotify token")
		}
	}), nil
}

func (r *Runner) saveToken(token *oauth2.Token) error {
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// SpotifyLogin performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.newSpotify()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, svc, "authorization")
	if err != nil {
		return err
	}
	if err := r.saveToken(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: musix spotify playlists\n")
	return nil
}

// SpotifyPlaylists lists the user's Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	var playlists []services.Playlist
	err := r.withSpotify(ctx, func(svc *services.SpotifyService) error {
		var err error
		playlists, err = svc.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// SpotifyImport matches a Spotify playlist's tracks on YouTube and downloads them into a local playlist.
//
// Without an id the user picks one of their playlists. The local playlist defaults to the Spotify name.
func (r *Runner) SpotifyImport(ctx context.Context, cmd *cli.Command) error {
	var svc *services.SpotifyService
	if err := r.withSpotify(ctx, func(s *services.SpotifyService) error {
		_, err := s.UserProfile(ctx)
		svc = s
		return err
	}); err != nil {
		return err
	}

	ref := strings.TrimSpace(cmd.StringArg("id"))
	playlistID, name := ref, cmd.String("playlist")
	if id, ok := services.ParsePlaylistID(ref); ok {
		playlistID = id
	}

	switch {
	case playlistID == "":
		picked, err := r.pickPlaylist(ctx, svc)
		if err != nil || picked == nil {
			return err
		}
		playlistID = picked.ID
		if name == "" {
			name = picked.Name
		}
	case name == "":
		p, err := svc.Playlist(ctx, playlistID)
		if err != nil {
			return err
		}
		name = p.Name
	}

	loc, err := library.Locate(cmd.String("profile"), name)
	if err != nil {
		return err
	}

	view, err := r.useProgressView(cmd)
	if err != nil {
		return err
	}

	s := r.openStack()
	defer s.Close()

	r.logger.Info("starting spotify import", "spotify_playlist", playlistID, "playlist", loc)
	id := s.engine.StartSpotifyImport(ctx, svc, playlistID, loc)

	job, err := r.follow(ctx, s, id, fmt.Sprintf("Importing Spotify playlist %s into %s", name, loc), view)
	if err != nil {
		return err
	}
	return r.report(job, view)
}

func (r *Runner) pickPlaylist(ctx context.Context, svc *services.SpotifyService) (*services.Playlist, error) {
	if !r.interactive {
		return nil, fmt.Errorf("%w: playlist id (or run in a terminal to pick one)", shared.ErrMissingArgument)
	}

	playlists, err := svc.GetPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		r.writePlain("No Spotify playlists found.\n")
		return nil, nil
	}

	item, err := ui.RunPicker(ctx, ui.NewPicker("Spotify playlists", ui.PlaylistItems(playlists)))
	if err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	p, ok := ui.ChosenPlaylist(item)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// withSpotify runs fn with an authenticated client, reauthorizing once when the saved token has expired.
func (r *Runner) withSpotify(ctx context.Context, fn func(*services.SpotifyService) error) error {
	svc, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	err = fn(svc)
	if !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}
	if !r.interactive {
		return fmt.Errorf("%w: run 'musix spotify login' again", err)
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...")
	token, err := r.doOAuth(ctx, svc, "reauthorization")
	if err != nil {
		return fmt.Errorf("reauthorization failed: %w", err)
	}
	if err := r.saveToken(token); err != nil {
		return err
	}
	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...")

	if svc, err = r.spotifyClient(ctx); err != nil {
		return err
	}
	return fn(svc)
}

// callbackAddr returns the listen address for the local OAuth callback server.
//
// It is taken from the redirect URI registered with Spotify, falling back to the configured server address.
func (r *Runner) callbackAddr(redirectURL string) string {
	if u, err := url.Parse(redirectURL); err == nil && u.Host != "" {
		if u.Port() == "" {
			return u.Hostname() + ":80"
		}
		return u.Host
	}
	return r.config.Server.Addr()
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := oauthSrv.GetOAuthConfig()
	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := r.callbackAddr(oauthConfig.RedirectURL)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
