package web

import (
	"cmp"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/shared"
)

type searchResponse struct {
	Results []models.SearchResult `json:"results"`
}

type previewResponse struct {
	Title   string                `json:"title,omitempty"`
	Results []models.SearchResult `json:"results"`
}

type previewRequest struct {
	URL string `json:"url"`
}

type downloadSongRequest struct {
	ProfileID string `json:"profileId"`
	Playlist  string `json:"playlist"`
	VideoID   string `json:"videoId"`
}

// importRequest accepts both the current field names and the ones older frontends send.
type importRequest struct {
	ProfileID   string   `json:"profileId"`
	Playlist    string   `json:"playlist"`
	Name        string   `json:"name"`
	IDs         []string `json:"ids"`
	SelectedIDs []string `json:"selectedIds"`
	SourceURL   string   `json:"sourceUrl"`
	URL         string   `json:"url"`
}

func (r importRequest) playlist() string {
	if r.Playlist != "" {
		return r.Playlist
	}
	return r.Name
}

func (r importRequest) ids() []string {
	raw := r.IDs
	if len(raw) == 0 {
		raw = r.SelectedIDs
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r importRequest) sourceURL() string {
	if r.SourceURL != "" {
		return r.SourceURL
	}
	return r.URL
}

type playlistRequest struct {
	ProfileID string `json:"profileId"`
	Name      string `json:"name"`
}

type playlistsResponse struct {
	Playlists []models.PlaylistSummary `json:"playlists"`
}

type playlistResponse struct {
	ProfileID string                   `json:"profileId"`
	Playlist  string                   `json:"playlist"`
	Tracks    []models.DownloadedTrack `json:"tracks"`
}

type downloadsResponse struct {
	Downloads map[string][]models.DownloadedTrack `json:"downloads"`
	Base      string                              `json:"base"`
}

type historyResponse struct {
	History []models.DownloadRecordView `json:"history"`
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		server.WriteJSON(w, http.StatusOK, searchResponse{Results: []models.SearchResult{}})
		return
	}

	entries, err := a.tool.Search(r.Context(), q, a.searchLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	results := make([]models.SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, e.Result())
	}
	server.WriteJSON(w, http.StatusOK, searchResponse{Results: results})
}

func (a *API) preview(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if r.Method == http.MethodPost {
		var req previewRequest
		if err := server.DecodeJSON(w, r, &req); err != nil {
			server.WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		target = req.URL
	}

	target = strings.TrimSpace(target)
	if !shared.IsHTTPURL(target) {
		server.WriteError(w, http.StatusBadRequest, "url must be an http(s) URL")
		return
	}

	meta, err := a.tool.FetchMetadata(r.Context(), target, true)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	results := make([]models.SearchResult, 0, len(meta.Entries))
	for _, e := range meta.Entries {
		if e.ID == "" {
			continue
		}
		results = append(results, e.Result())
	}
	if len(meta.Entries) == 0 && meta.ID != "" {
		results = append(results, models.SearchResult{
			ID:       meta.ID,
			Title:    cmp.Or(meta.Title, meta.ID),
			URL:      cmp.Or(meta.WebpageURL, models.CanonicalURL(meta.ID)),
			Channel:  meta.Channel,
			Duration: meta.Duration,
		})
	}
	server.WriteJSON(w, http.StatusOK, previewResponse{Title: meta.Title, Results: results})
}

func (a *API) downloadSong(w http.ResponseWriter, r *http.Request) {
	var req downloadSongRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	videoID := strings.TrimSpace(req.VideoID)
	if strings.TrimSpace(req.ProfileID) == "" || videoID == "" {
		a.fail(w, r, fmt.Errorf("%w: profileId, playlist and videoId are required", shared.ErrMissingArgument))
		return
	}
	loc, err := library.Locate(req.ProfileID, req.Playlist)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	id := a.engine.StartDownload(a.jobCtx, loc, videoID)
	a.logger.Info("download started", "job", id, "location", loc, "video", videoID)
	server.WriteJSON(w, http.StatusAccepted, jobResponse{JobID: id})
}

func (a *API) importDownload(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ids := req.ids()
	if strings.TrimSpace(req.ProfileID) == "" || len(ids) == 0 {
		a.fail(w, r, fmt.Errorf("%w: profileId, playlist and ids are required", shared.ErrMissingArgument))
		return
	}
	sourceURL := strings.TrimSpace(req.sourceURL())
	if sourceURL != "" && !shared.IsHTTPURL(sourceURL) {
		server.WriteError(w, http.StatusBadRequest, "sourceUrl must be an http(s) URL")
		return
	}
	loc, err := library.Locate(req.ProfileID, req.playlist())
	if err != nil {
		a.fail(w, r, err)
		return
	}

	id := a.engine.StartImport(a.jobCtx, loc, ids, sourceURL)
	a.logger.Info("import started", "job", id, "location", loc, "tracks", len(ids))
	server.WriteJSON(w, http.StatusAccepted, jobResponse{JobID: id})
}

func (a *API) progress(w http.ResponseWriter, r *http.Request) {
	job, err := a.registry.Get(jobs.ID(r.PathValue("id")))
	if err != nil {
		server.WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, job)
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Cancel(jobs.ID(r.PathValue("id"))); err != nil {
		server.WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listPlaylists(w http.ResponseWriter, r *http.Request) {
	profile, err := profileParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	playlists, err := a.library.ListPlaylists(profile)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, playlistsResponse{Playlists: playlists})
}

func (a *API) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		a.fail(w, r, fmt.Errorf("%w: profileId", shared.ErrMissingArgument))
		return
	}

	loc, err := library.Locate(req.ProfileID, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.library.CreatePlaylist(loc); err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, playlistResponse{
		ProfileID: loc.ProfileID,
		Playlist:  loc.Playlist,
		Tracks:    []models.DownloadedTrack{},
	})
}

// location reads profileId from the query and the playlist name from the path.
func location(r *http.Request) (models.PlaylistLocation, error) {
	profile, err := profileParam(r)
	if err != nil {
		return models.PlaylistLocation{}, err
	}
	return library.Locate(profile, r.PathValue("name"))
}

func (a *API) showPlaylist(w http.ResponseWriter, r *http.Request) {
	loc, err := location(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	tracks, err := a.library.ListDownloaded(loc)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, playlistResponse{ProfileID: loc.ProfileID, Playlist: loc.Playlist, Tracks: tracks})
}

func (a *API) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	loc, err := location(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.library.DeletePlaylist(loc); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteSong(w http.ResponseWriter, r *http.Request) {
	loc, err := location(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.library.DeleteTrack(loc, r.PathValue("file")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) downloads(w http.ResponseWriter, r *http.Request) {
	profile, err := profileParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	byPlaylist, err := a.library.Downloads(profile)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, downloadsResponse{Downloads: byPlaylist, Base: library.URLPrefix})
}

func (a *API) recentHistory(w http.ResponseWriter, r *http.Request) {
	views := []models.DownloadRecordView{}
	if a.history == nil {
		server.WriteJSON(w, http.StatusOK, historyResponse{History: views})
		return
	}

	profile := ""
	if raw := strings.TrimSpace(r.URL.Query().Get("profileId")); raw != "" {
		profile = shared.StrongSanitize(raw)
	}

	records, err := a.history.Recent(profile, intParam(r, "limit", defaultHistoryLimit))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	for _, rec := range records {
		views = append(views, rec.View())
	}
	server.WriteJSON(w, http.StatusOK, historyResponse{History: views})
}
