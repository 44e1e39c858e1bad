// Package web implements the JSON API served by `musix serve`.
//
// # Routes
//
//	GET    /api/music/search?q=                    search results
//	GET    /api/music/import/preview?url=          flat playlist listing (POST {url} also accepted)
//	POST   /api/music/download/song                start a single-track job
//	POST   /api/music/import/download              start a batch job
//	POST   /api/music/import/spotify               start a Spotify playlist import
//	GET    /api/music/progress/{id}                job snapshot
//	DELETE /api/music/progress/{id}                cancel a job
//	GET    /api/music/playlists?profileId=         playlists with track counts
//	POST   /api/music/playlists                    create a playlist
//	GET    /api/music/playlists/{name}             tracks of one playlist
//	DELETE /api/music/playlists/{name}             remove a playlist
//	DELETE /api/music/playlists/{name}/songs/{file}
//	GET    /api/music/downloads?profileId=         every playlist with its tracks
//	GET    /api/music/history?profileId=&limit=    recent download outcomes
//	GET    /api/profiles, POST /api/profiles
//	GET    /api/profiles/{id}, DELETE /api/profiles/{id}
//	POST   /api/profiles/{id}/avatar               multipart "avatar" field
//	GET    /api/spotify/login, /api/spotify/callback
//	GET    /api/spotify/me, /api/spotify/playlists, /api/spotify/playlists/{id}/tracks, /api/spotify/search?q=
//	GET    /downloads/...                          MP3s and avatars from the profiles root
//	GET    /healthz
//	GET    /                                       static frontend, when configured
//
// Jobs are started with the context passed in [Options.JobContext], never the request's, so they keep
// running after the response is written and stop when the server shuts down.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/services"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/tasks"
	"github.com/desertthunder/musix/internal/ytdlp"
)

const (
	defaultSearchLimit  = 15
	defaultHistoryLimit = 50
)

// HistoryReader lists recent download outcomes. Implemented by repositories.DownloadRepository.
type HistoryReader interface {
	Recent(profileID string, limit int) ([]*models.DownloadRecord, error)
}

// Options contains the API's collaborators. Engine and Tool are required.
type Options struct {
	Engine       *tasks.Engine
	Tool         tasks.Tool               // search and preview
	History      HistoryReader            // optional
	Spotify      *services.SpotifyService // optional, Spotify routes answer 503 without it
	Sessions     *server.SessionStore     // optional, created when nil
	Availability ytdlp.Availability
	FFmpeg       string
	SearchLimit  int
	StaticDir    string
	JobContext   context.Context
	Logger       *log.Logger
}

// API serves the music, profile and Spotify routes.
type API struct {
	engine       *tasks.Engine
	library      *library.Store
	registry     *jobs.Registry
	tool         tasks.Tool
	history      HistoryReader
	spotify      *services.SpotifyService
	sessions     *server.SessionStore
	availability ytdlp.Availability
	ffmpeg       string
	searchLimit  int
	staticDir    string
	jobCtx       context.Context
	logger       *log.Logger
}

// New creates an API from opts.
func New(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = server.NewSessionStore(0, false)
	}
	jobCtx := opts.JobContext
	if jobCtx == nil {
		jobCtx = context.Background()
	}
	limit := opts.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	return &API{
		engine:       opts.Engine,
		library:      opts.Engine.Library(),
		registry:     opts.Engine.Registry(),
		tool:         opts.Tool,
		history:      opts.History,
		spotify:      opts.Spotify,
		sessions:     sessions,
		availability: opts.Availability,
		ffmpeg:       opts.FFmpeg,
		searchLimit:  limit,
		staticDir:    opts.StaticDir,
		jobCtx:       jobCtx,
		logger:       shared.WithLogger(logger, "component", "web"),
	}
}

// Register adds every route to r.
func (a *API) Register(r server.Router) {
	r.Handle("GET", "/api/music/search", http.HandlerFunc(a.search))
	r.Handle("GET", "/api/music/import/preview", http.HandlerFunc(a.preview))
	r.Handle("POST", "/api/music/import/preview", http.HandlerFunc(a.preview))
	r.Handle("POST", "/api/music/download/song", http.HandlerFunc(a.downloadSong))
	r.Handle("POST", "/api/music/import/download", http.HandlerFunc(a.importDownload))
	r.Handle("POST", "/api/music/import/spotify", http.HandlerFunc(a.importSpotify))
	r.Handle("GET", "/api/music/progress/{id}", http.HandlerFunc(a.progress))
	r.Handle("DELETE", "/api/music/progress/{id}", http.HandlerFunc(a.cancel))
	r.Handle("GET", "/api/music/playlists", http.HandlerFunc(a.listPlaylists))
	r.Handle("POST", "/api/music/playlists", http.HandlerFunc(a.createPlaylist))
	r.Handle("GET", "/api/music/playlists/{name}", http.HandlerFunc(a.showPlaylist))
	r.Handle("DELETE", "/api/music/playlists/{name}", http.HandlerFunc(a.deletePlaylist))
	r.Handle("DELETE", "/api/music/playlists/{name}/songs/{file}", http.HandlerFunc(a.deleteSong))
	r.Handle("GET", "/api/music/downloads", http.HandlerFunc(a.downloads))
	r.Handle("GET", "/api/music/history", http.HandlerFunc(a.recentHistory))

	r.Handle("GET", "/api/profiles", http.HandlerFunc(a.listProfiles))
	r.Handle("POST", "/api/profiles", http.HandlerFunc(a.createProfile))
	r.Handle("GET", "/api/profiles/{id}", http.HandlerFunc(a.getProfile))
	r.Handle("DELETE", "/api/profiles/{id}", http.HandlerFunc(a.deleteProfile))
	r.Handle("POST", "/api/profiles/{id}/avatar", http.HandlerFunc(a.uploadAvatar))

	r.Handle("GET", "/api/spotify/login", http.HandlerFunc(a.spotifyLogin))
	r.Handle("GET", "/api/spotify/callback", http.HandlerFunc(a.spotifyCallback))
	r.Handle("GET", "/api/spotify/me", http.HandlerFunc(a.spotifyMe))
	r.Handle("GET", "/api/spotify/playlists", http.HandlerFunc(a.spotifyPlaylists))
	r.Handle("GET", "/api/spotify/playlists/{id}/tracks", http.HandlerFunc(a.spotifyTracks))
	r.Handle("GET", "/api/spotify/search", http.HandlerFunc(a.spotifySearch))

	r.Handle("GET", library.URLPrefix+"/", a.files())
	r.Handle("GET", "/healthz", http.HandlerFunc(a.health))
	r.Handle("GET", "/", a.frontend())
}

// Handler returns a router with logging and panic recovery serving every route.
func (a *API) Handler() http.Handler {
	r := server.NewBasicRouter()
	r.Use(server.Logger(a.logger), server.Recover(a.logger))
	a.Register(r)
	return r
}

// Sessions returns the session store, for sweeping.
func (a *API) Sessions() *server.SessionStore { return a.sessions }

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrJobNotFound),
		errors.Is(err, shared.ErrProfileNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrTrackNotFound),
		errors.Is(err, shared.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrToolNotFound),
		errors.Is(err, shared.ErrMissingCredentials),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	server.WriteError(w, status, err.Error())
}

// profileParam reads the required profileId query parameter.
func profileParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("profileId"))
	if id == "" {
		return "", fmt.Errorf("%w: profileId", shared.ErrMissingArgument)
	}
	return shared.StrongSanitize(id), nil
}

func intParam(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

type jobResponse struct {
	JobID jobs.ID `json:"jobId"`
}
