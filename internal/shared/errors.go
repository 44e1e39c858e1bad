package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrProfileNotFound    = fmt.Errorf("profile not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// External tool errors
	ErrToolNotFound    = fmt.Errorf("yt-dlp not found")
	ErrToolInvocation  = fmt.Errorf("yt-dlp invocation failed")
	ErrDownloadProcess = fmt.Errorf("download process failed")
	ErrDownloadSpawn   = fmt.Errorf("download process could not start")
	ErrVerification    = fmt.Errorf("no MP3 found after download")
	ErrRename          = fmt.Errorf("rename failed")

	// Job errors
	ErrJobNotFound = fmt.Errorf("job not found")
	ErrCancelled   = fmt.Errorf("cancelled")
	ErrJobFailed   = fmt.Errorf("job failed")

	// Storage errors
	ErrRecordNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
