package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/services"
	"github.com/desertthunder/musix/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyStateKey = "spotify_state"
	spotifyTokenKey = "spotify_token"

	// spotifyConnectedPath is where the browser lands after a successful login.
	spotifyConnectedPath = "/?spotify=connected"
)

type spotifyImportRequest struct {
	ProfileID         string `json:"profileId"`
	Playlist          string `json:"playlist"`
	SpotifyPlaylistID string `json:"spotifyPlaylistId"`
}

type spotifyPlaylistsResponse struct {
	Playlists []services.Playlist `json:"playlists"`
}

type spotifyTracksResponse struct {
	Tracks []models.SourceTrack `json:"tracks"`
}

func (a *API) spotifyLogin(w http.ResponseWriter, r *http.Request) {
	if a.spotify == nil {
		a.fail(w, r, fmt.Errorf("%w: spotify client_id and client_secret are not configured", shared.ErrMissingCredentials))
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sess := a.sessions.Start(w, r)
	sess.Set(spotifyStateKey, state)
	http.Redirect(w, r, a.spotify.GetAuthURL(state), http.StatusFound)
}

func (a *API) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	if a.spotify == nil {
		a.fail(w, r, fmt.Errorf("%w: spotify is not configured", shared.ErrMissingCredentials))
		return
	}

	sess := a.sessions.Load(r)
	if sess == nil {
		server.WriteError(w, http.StatusBadRequest, "no login in progress")
		return
	}
	want, _ := sess.Pop(spotifyStateKey)
	if state, _ := want.(string); state == "" || state != r.URL.Query().Get("state") {
		server.WriteError(w, http.StatusBadRequest, "invalid state parameter")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{
			Error:  "authorization failed",
			Detail: strings.TrimSpace(r.URL.Query().Get("error") + " " + r.URL.Query().Get("error_description")),
		})
		return
	}

	token, err := a.spotify.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Warn("spotify token exchange failed", "error", err)
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.Set(spotifyTokenKey, token)
	a.logger.Info("spotify connected", "session", sess.ID)
	http.Redirect(w, r, spotifyConnectedPath, http.StatusFound)
}

// spotifyClient returns a Spotify client bound to the request session's token.
//
// Refreshed tokens are written back to the session.
func (a *API) spotifyClient(r *http.Request) (*services.SpotifyService, error) {
	if a.spotify == nil {
		return nil, fmt.Errorf("%w: spotify is not configured", shared.ErrMissingCredentials)
	}
	sess := a.sessions.Load(r)
	if sess == nil {
		return nil, fmt.Errorf("%w: log in with spotify first", shared.ErrNotAuthenticated)
	}
	v, _ := sess.Get(spotifyTokenKey)
	token, ok := v.(*oauth2.Token)
	if !ok || token == nil {
		return nil, fmt.Errorf("%w: log in with spotify first", shared.ErrNotAuthenticated)
	}
	return a.spotify.WithToken(r.Context(), token, func(t *oauth2.Token) {
		sess.Set(spotifyTokenKey, t)
	}), nil
}

func (a *API) spotifyMe(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := client.UserProfile(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, user)
}

func (a *API) spotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	playlists, err := client.GetPlaylists(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, spotifyPlaylistsResponse{Playlists: playlists})
}

func (a *API) spotifyTracks(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	tracks, err := client.PlaylistTracks(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, spotifyTracksResponse{Tracks: tracks})
}

func (a *API) spotifySearch(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	found, err := client.SearchPlaylists(r.Context(), r.URL.Query().Get("q"), intParam(r, "limit", 0))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	playlists := make([]services.Playlist, 0, len(found))
	for _, p := range found {
		playlists = append(playlists, p.Summary())
	}
	server.WriteJSON(w, http.StatusOK, spotifyPlaylistsResponse{Playlists: playlists})
}

func (a *API) importSpotify(w http.ResponseWriter, r *http.Request) {
	var req spotifyImportRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	playlistID := strings.TrimSpace(req.SpotifyPlaylistID)
	if id, ok := services.ParsePlaylistID(playlistID); ok {
		playlistID = id
	}
	if strings.TrimSpace(req.ProfileID) == "" || playlistID == "" {
		a.fail(w, r, fmt.Errorf("%w: profileId, playlist and spotifyPlaylistId are required", shared.ErrMissingArgument))
		return
	}
	loc, err := library.Locate(req.ProfileID, req.Playlist)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	id := a.engine.StartSpotifyImport(a.jobCtx, client, playlistID, loc)
	a.logger.Info("spotify import started", "job", id, "location", loc, "playlist", playlistID)
	server.WriteJSON(w, http.StatusAccepted, jobResponse{JobID: id})
}
