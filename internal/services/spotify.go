// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI matches the callback route served by the web API.
	DefaultRedirectURI = "http://127.0.0.1:4000/api/spotify/callback"

	playlistPageSize = 50
	tracksPageSize   = 100
)

var playlistRef = regexp.MustCompile(`playlist[/:]([A-Za-z0-9]+)`)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	IsLocal    bool            `json:"is_local"`
	URI        string          `json:"uri"`
}

// Source converts the track for YouTube matching.
func (t SpotifyTrack) Source() models.SourceTrack {
	st := models.SourceTrack{
		ID:         t.ID,
		Title:      t.Name,
		Album:      t.Album.Name,
		DurationMs: t.DurationMS,
	}
	if len(t.Artists) > 0 {
		st.Artist = t.Artists[0].Name
	}
	return st
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for episodes and tracks removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks is one page of a playlist's tracks.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// Summary converts the playlist to the provider-neutral [Playlist].
func (p SpotifySimplePlaylist) Summary() Playlist {
	return Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.DisplayName,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
	}
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at a different API root, for tests.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the client used for API and token requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.baseClient = c }
}

// WithRateLimit throttles API requests to r per second with the given burst.
func WithRateLimit(r float64, burst int) SpotifyOption {
	return func(s *SpotifyService) { s.limiter = rate.NewLimiter(rate.Limit(r), max(1, burst)) }
}

// WithTokenURL overrides the token endpoint, for tests.
func WithTokenURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint.TokenURL = u }
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for playlist and track operations.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		baseClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate performs OAuth2 authentication with Spotify.
//
// Expects an "access_token" (optionally with "refresh_token") or an "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		s.SetToken(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.Exchange(ctx, authCode)
		if err != nil {
			return err
		}
		s.SetToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration, used by callback handlers.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// SetToken installs token; expired tokens are refreshed on the next request.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(s.clientContext(ctx), token),
		callback: s.tokenRefreshed,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(s.clientContext(ctx), oauth2.ReuseTokenSource(token, source))
}

// WithToken returns a copy of the service authenticated with token, for per-session use.
func (s *SpotifyService) WithToken(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) *SpotifyService {
	c := &SpotifyService{
		config:         s.config,
		baseClient:     s.baseClient,
		baseURL:        s.baseURL,
		limiter:        s.limiter,
		onTokenRefresh: onRefresh,
	}
	c.SetToken(ctx, token)
	return c
}

// SetTokenRefreshCallback registers fn to receive every refreshed token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticated reports whether a token is installed.
func (s *SpotifyService) Authenticated() bool {
	return s.httpClient != nil
}

func (s *SpotifyService) tokenRefreshed(token *oauth2.Token) {
	if s.onTokenRefresh != nil {
		s.onTokenRefresh(token)
	}
}

func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.baseClient)
}

// refreshableTokenSource reports tokens that differ from the last one it saw.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// doRequest performs an authenticated GET request against the Spotify API and decodes the JSON body.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.httpClient == nil {
		return shared.ErrNotAuthenticated
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = pageLimit(limit, playlistPageSize)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Playlist retrieves a playlist summary by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifySimplePlaylist, error) {
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "?fields=id,name,description,owner,public,tracks.total,images,uri"

	var playlist SpotifySimplePlaylist
	if err := s.doRequest(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracksPage retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracksPage(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedPlaylistTracks, error) {
	limit = pageLimit(limit, tracksPageSize)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var page SpotifyPaginatedPlaylistTracks
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchPlaylists finds public playlists matching query.
//
// A pasted playlist URL or URI resolves to that playlist alone.
func (s *SpotifyService) SearchPlaylists(ctx context.Context, query string, limit int) ([]SpotifySimplePlaylist, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	if id, ok := ParsePlaylistID(query); ok {
		p, err := s.Playlist(ctx, id)
		if err != nil {
			return nil, err
		}
		return []SpotifySimplePlaylist{*p}, nil
	}

	limit = pageLimit(limit, 20)
	endpoint := fmt.Sprintf("/search?type=playlist&q=%s&limit=%d", url.QueryEscape(query), limit)

	var response struct {
		Playlists struct {
			// null entries appear for playlists the API cannot return
			Items []*SpotifySimplePlaylist `json:"items"`
		} `json:"playlists"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	playlists := []SpotifySimplePlaylist{}
	for _, p := range response.Playlists.Items {
		if p != nil {
			playlists = append(playlists, *p)
		}
	}
	return playlists, nil
}

// Service interface implementation

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	playlists := []Playlist{}
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, playlistPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			playlists = append(playlists, sp.Summary())
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return playlists, nil
}

// PlaylistTracks retrieves every track of a playlist, following pagination.
//
// Local files, episodes and removed tracks are skipped since they cannot be matched on YouTube.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.SourceTrack, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	tracks := []models.SourceTrack{}
	offset := 0
	for {
		page, err := s.PlaylistTracksPage(ctx, playlistID, tracksPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, item.Track.Source())
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}
	return tracks, nil
}

// ParsePlaylistID extracts the playlist id from a Spotify URL or URI.
func ParsePlaylistID(ref string) (string, bool) {
	m := playlistRef.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func pageLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}
