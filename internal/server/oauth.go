package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/musix/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization code callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect of the authorization code flow for `musix spotify login`.
//
// It accepts a single callback: later requests are rejected so a replayed code is never exchanged twice.
type OAuthHandler struct {
	config  *oauth2.Config
	state   string
	path    string
	handled atomic.Bool
	once    sync.Once
	result  chan OAuthResult
}

// NewOAuthHandler returns a handler for the path of config.RedirectURL that expects state back from the provider.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config: config,
		state:  state,
		path:   CallbackPath(config.RedirectURL),
		result: make(chan OAuthResult, 1),
	}
}

// CallbackPath extracts the path of a redirect URL, defaulting to /callback.
func CallbackPath(redirectURL string) string {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/callback"
	}
	return u.Path
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("state") != h.state:
		h.reject(w, http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed))
		return
	case q.Get("code") == "":
		h.reject(w, http.StatusBadRequest,
			fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description")))
		return
	}

	token, err := h.config.Exchange(context.WithoutCancel(r.Context()), q.Get("code"))
	if err != nil {
		h.reject(w, http.StatusInternalServerError, fmt.Errorf("token exchange failed: %w", err))
		return
	}

	h.Send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

func (h *OAuthHandler) reject(w http.ResponseWriter, status int, err error) {
	h.Send(OAuthResult{err: err})
	http.Error(w, err.Error(), status)
}

// Send delivers result to the waiting login command. Only the first call has any effect.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result yields exactly one result, then is closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.result
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>musix</title>
    <style>
        body { font-family: system-ui, sans-serif; display: grid; place-items: center;
               height: 100vh; margin: 0; background: #121212; color: #eee; }
        h1 { color: #1DB954; }
    </style>
</head>
<body>
    <main>
        <h1>Spotify connected</h1>
        <p>You can close this window and return to your terminal.</p>
    </main>
</body>
</html>
`
