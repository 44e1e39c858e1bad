// Package server provides HTTP routing, middleware, sessions and OAuth handling for the CLI and the web API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// The [BasicRouter] implementation registers "METHOD /path" patterns on an [http.ServeMux], so a path can be
// served by one handler per method and unmatched methods get 405. Path wildcards are read with PathValue.
//
// # Middleware
//
//   - [Logger] : one log line per request with status and duration
//   - [Recover] : converts handler panics into a 500 JSON error
//
// [WriteJSON], [WriteError] and [DecodeJSON] keep the JSON shape of every handler consistent.
//
// # Sessions
//
// [SessionStore] keeps browser sessions in memory behind the [SessionCookie] cookie. The web API stores the
// Spotify OAuth state and token there.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback for the CLI login flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
