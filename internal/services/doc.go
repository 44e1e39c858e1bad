// Package services defines the [Service] interface for external music providers and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// The [oauth2.Client] refreshes expired tokens using the refresh token and reports each new token
// through the callback registered with [SpotifyService.SetTokenRefreshCallback], so callers can persist it
// to the config file (CLI) or the session (web).
//
// Requests are throttled with a [rate.Limiter] shared by every per-session copy made with [SpotifyService.WithToken].
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends Service for OAuth providers.
// [SpotifyService] implements it for the browser login used by the CLI and the web API.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token installed
//   - [shared.ErrTokenExpired] : token rejected or refresh failed, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//
// # Track Mapping
//
// Playlist items become [models.SourceTrack] values whose [models.SourceTrack.Query] drives YouTube search.
// Local files, podcast episodes and removed tracks are skipped.
package services
