package web

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/ytdlp"
)

type healthResponse struct {
	Status string                 `json:"status"`
	Tool   ytdlp.DependencyReport `json:"tool"`
	Jobs   int                    `json:"jobs"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	report := ytdlp.Doctor(a.availability, a.ffmpeg)
	status := "ok"
	if !report.YtdlpFound {
		status = "degraded"
	}
	server.WriteJSON(w, http.StatusOK, healthResponse{Status: status, Tool: report, Jobs: a.registry.Len()})
}

// files serves MP3s and avatars from the profiles root. Directory listings are not served.
func (a *API) files() http.Handler {
	fileServer := http.StripPrefix(library.URLPrefix, http.FileServer(http.Dir(a.library.Root())))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// frontend serves the static frontend, falling back to index.html for client-side routes.
//
// Unknown /api/ paths answer with a JSON 404 instead.
func (a *API) frontend() http.Handler {
	var fileServer http.Handler
	if a.staticDir != "" {
		fileServer = http.FileServer(http.Dir(a.staticDir))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || fileServer == nil {
			server.WriteError(w, http.StatusNotFound, "not found")
			return
		}

		name := filepath.Join(a.staticDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			http.ServeFile(w, r, filepath.Join(a.staticDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
