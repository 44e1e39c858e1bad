package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/musix/internal/shared"
	tu "github.com/desertthunder/musix/internal/testing"
	"golang.org/x/oauth2"
)

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method and path", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "get "+r.PathValue("id"))
		})
		router.HandleFunc(http.MethodDelete, "/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		tests := []struct {
			method string
			path   string
			status int
			body   string
		}{
			{http.MethodGet, "/items/42", http.StatusOK, "get 42"},
			{http.MethodDelete, "/items/42", http.StatusNoContent, ""},
			{http.MethodPost, "/items/42", http.StatusMethodNotAllowed, ""},
			{http.MethodGet, "/missing", http.StatusNotFound, ""},
		}

		for _, tt := range tests {
			t.Run(tt.method+" "+tt.path, func(t *testing.T) {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

				if rec.Code != tt.status {
					t.Errorf("expected status %d, got %d", tt.status, rec.Code)
				}
				if tt.body != "" && rec.Body.String() != tt.body {
					t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
				}
			})
		}
	})

	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})

	t.Run("registers Handler routes", func(t *testing.T) {
		router := NewBasicRouter()
		h := NewOAuthHandler(&oauth2.Config{RedirectURL: "http://127.0.0.1:4000/api/spotify/callback"}, "s")
		router.Handler(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/spotify/callback?state=wrong", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected callback handler to answer, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Logger", func(t *testing.T) {
		logger, out := tu.QuietLogger()
		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "not found")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/music/progress/x", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status to pass through, got %d", rec.Code)
		}
		logged := out.String()
		if !strings.Contains(logged, "/api/music/progress/x") || !strings.Contains(logged, "404") {
			t.Errorf("expected request to be logged, got %q", logged)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		logger, out := tu.QuietLogger()
		handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected JSON body: %v", err)
		}
		if body.Error != "internal server error" {
			t.Errorf("unexpected error body %+v", body)
		}
		if !strings.Contains(out.String(), "boom") {
			t.Error("expected panic to be logged")
		}
	})

	t.Run("WriteJSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusAccepted, map[string]string{"jobId": "abc"})

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"jobId":"abc"}` {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("DecodeJSON", func(t *testing.T) {
		var v struct {
			Name string `json:"name"`
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"favs"}`))
		if err := DecodeJSON(rec, req, &v); err != nil || v.Name != "favs" {
			t.Errorf("expected decoded body, got %+v, %v", v, err)
		}

		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		if err := DecodeJSON(rec, req, &v); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

func TestSessionStore(t *testing.T) {
	t.Run("Start sets cookie and Load finds it", func(t *testing.T) {
		store := NewSessionStore(time.Hour, false)

		rec := httptest.NewRecorder()
		sess := store.Start(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		sess.Set("state", "abc")

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value != sess.ID {
			t.Fatalf("expected session cookie, got %+v", cookies)
		}
		if !cookies[0].HttpOnly {
			t.Error("expected HttpOnly cookie")
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		loaded := store.Load(req)
		if loaded == nil || loaded.ID != sess.ID {
			t.Fatal("expected to load the same session")
		}
		if v, ok := loaded.Pop("state"); !ok || v != "abc" {
			t.Errorf("expected stored value, got %v %v", v, ok)
		}
		if _, ok := loaded.Get("state"); ok {
			t.Error("expected Pop to remove the value")
		}

		again := store.Start(httptest.NewRecorder(), req)
		if again.ID != sess.ID {
			t.Error("Start should reuse an existing session")
		}
	})

	t.Run("Load without cookie", func(t *testing.T) {
		store := NewSessionStore(time.Hour, false)
		if store.Load(httptest.NewRequest(http.MethodGet, "/", nil)) != nil {
			t.Error("expected nil session")
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "forged"})
		if store.Load(req) != nil {
			t.Error("expected unknown session id to be ignored")
		}
	})

	t.Run("expires idle sessions", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		store := NewSessionStore(time.Minute, false)
		store.now = func() time.Time { return now }

		rec := httptest.NewRecorder()
		store.Start(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		store.Start(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		now = now.Add(2 * time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(rec.Result().Cookies()[0])
		if store.Load(req) != nil {
			t.Error("expected expired session to be dropped on load")
		}

		if removed := store.Sweep(); removed != 1 {
			t.Errorf("expected sweep to remove the remaining session, removed %d", removed)
		}
		if store.Len() != 0 {
			t.Errorf("expected no sessions, got %d", store.Len())
		}
	})

	t.Run("Destroy", func(t *testing.T) {
		store := NewSessionStore(time.Hour, false)
		rec := httptest.NewRecorder()
		store.Start(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(rec.Result().Cookies()[0])

		out := httptest.NewRecorder()
		store.Destroy(out, req)

		if store.Len() != 0 {
			t.Error("expected session to be removed")
		}
		if c := out.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
			t.Errorf("expected cookie to be cleared, got %+v", c)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"granted","refresh_token":"r","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(tokenServer.Close)

	newHandler := func() *OAuthHandler {
		return NewOAuthHandler(&oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "http://127.0.0.1:4000/api/spotify/callback",
			Endpoint:     oauth2.Endpoint{TokenURL: tokenServer.URL},
		}, "expected-state")
	}

	t.Run("Routes", func(t *testing.T) {
		if got := newHandler().Routes(); len(got) != 1 || got[0] != "/api/spotify/callback" {
			t.Errorf("unexpected routes %v", got)
		}
	})

	t.Run("exchanges code", func(t *testing.T) {
		h := newHandler()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/spotify/callback?state=expected-state&code=c", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Token.AccessToken != "granted" {
			t.Errorf("unexpected token %+v", result.Token)
		}

		again := httptest.NewRecorder()
		h.ServeHTTP(again, httptest.NewRequest(http.MethodGet, "/api/spotify/callback?state=expected-state&code=c", nil))
		if again.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", again.Code)
		}
	})

	t.Run("invalid state", func(t *testing.T) {
		h := newHandler()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/spotify/callback?state=nope&code=c", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("denied", func(t *testing.T) {
		h := newHandler()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/spotify/callback?state=expected-state&error=access_denied", nil))

		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", result.Error())
		}
	})
}

func TestCallbackPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:4000/api/spotify/callback", "/api/spotify/callback"},
		{"http://localhost:8080", "/callback"},
		{"", "/callback"},
		{"://bad", "/callback"},
	}

	for _, tt := range tests {
		if got := CallbackPath(tt.in); got != tt.want {
			t.Errorf("CallbackPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
