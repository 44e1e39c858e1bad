package services

import (
	"context"

	"github.com/desertthunder/musix/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the interface for music providers whose playlists can be imported as YouTube downloads.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]Playlist, error)

	// PlaylistTracks retrieves every matchable track of a playlist.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.SourceTrack, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers using the authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the OAuth2 configuration for callback handlers.
	GetOAuthConfig() *oauth2.Config

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"trackCount"`
	Public      bool   `json:"public"`
}
