package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/server"
	"github.com/desertthunder/musix/internal/shared"
)

type profileView struct {
	models.Profile
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func viewProfile(p models.Profile) profileView {
	return profileView{Profile: p, AvatarURL: library.AvatarURL(p)}
}

type profilesResponse struct {
	Profiles []profileView `json:"profiles"`
}

type createProfileRequest struct {
	DisplayName string `json:"displayName"`
}

func (a *API) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := a.library.ListProfiles()
	if err != nil {
		a.fail(w, r, err)
		return
	}

	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, viewProfile(p))
	}
	server.WriteJSON(w, http.StatusOK, profilesResponse{Profiles: views})
}

func (a *API) createProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := server.DecodeJSON(w, r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := a.library.CreateProfile(req.DisplayName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, viewProfile(p))
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.library.GetProfile(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, viewProfile(p))
}

func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := a.library.DeleteProfile(r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, library.MaxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(library.MaxAvatarSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.WriteError(w, http.StatusRequestEntityTooLarge, "avatar too large")
			return
		}
		a.fail(w, r, fmt.Errorf("%w: expected a multipart form: %v", shared.ErrInvalidInput, err))
		return
	}

	file, _, err := r.FormFile("avatar")
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: avatar", shared.ErrMissingArgument))
		return
	}
	defer file.Close()

	p, err := a.library.SaveAvatar(r.PathValue("id"), file)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, viewProfile(p))
}
