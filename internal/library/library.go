// Package library reads and writes the on-disk music tree.
//
// Layout under the configured root:
//
//	<root>/<profile>/profile.json
//	<root>/<profile>/playlists/<playlist>/<title> [<videoId>].mp3
//	<root>/<profile>/downloads/
//
// The directory tree is the only durable record of what has been downloaded. Track listings are
// always rebuilt from the files present, never from the history database.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
)

const (
	PlaylistsDir = "playlists"
	DownloadsDir = "downloads"
	ProfileFile  = "profile.json"

	// OutputTemplate is the yt-dlp output template, relative to a playlist directory.
	OutputTemplate = "%(title).100B [%(id)s].%(ext)s"

	// URLPrefix is where the HTTP server mounts the profiles root.
	URLPrefix = "/downloads"
)

var (
	bracketID   = regexp.MustCompile(`\[([A-Za-z0-9_-]{6,})\]`)
	titleSuffix = regexp.MustCompile(`(?i)\s*\[[^\]]+\]\.mp3$`)
)

// Store is a profiles root directory.
type Store struct {
	root   string
	logger *log.Logger
}

// NewStore returns a store rooted at root. The directory is created lazily.
func NewStore(root string, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{root: root, logger: shared.WithLogger(logger, "component", "library")}
}

// Root returns the profiles directory.
func (s *Store) Root() string { return s.root }

// Locate sanitizes a profile id and playlist name into a [models.PlaylistLocation].
func Locate(profileID, playlist string) (models.PlaylistLocation, error) {
	name := shared.Sanitize(playlist)
	if name == "" || strings.HasPrefix(name, ".") {
		return models.PlaylistLocation{}, fmt.Errorf("%w: playlist name %q", shared.ErrInvalidInput, playlist)
	}
	return models.PlaylistLocation{ProfileID: shared.StrongSanitize(profileID), Playlist: name}, nil
}

// Dir returns the playlist directory for loc.
func (s *Store) Dir(loc models.PlaylistLocation) string {
	return filepath.Join(s.root, loc.ProfileID, PlaylistsDir, loc.Playlist)
}

// OutputTemplate returns the absolute yt-dlp output template for loc.
func (s *Store) OutputTemplate(loc models.PlaylistLocation) string {
	return filepath.Join(s.Dir(loc), OutputTemplate)
}

// EnsurePlaylist creates the playlist directory, and its profile if missing. It is idempotent.
func (s *Store) EnsurePlaylist(loc models.PlaylistLocation) (string, error) {
	if _, err := s.EnsureProfile(loc.ProfileID); err != nil {
		return "", err
	}
	dir := s.Dir(loc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create playlist directory: %w", err)
	}
	return dir, nil
}

// ListDownloaded rebuilds the track listing of a playlist from the files on disk.
//
// A playlist directory that does not exist yields an empty listing.
func (s *Store) ListDownloaded(loc models.PlaylistLocation) ([]models.DownloadedTrack, error) {
	names, err := s.mp3Files(s.Dir(loc))
	if err != nil {
		return nil, err
	}

	tracks := make([]models.DownloadedTrack, 0, len(names))
	for _, name := range names {
		tracks = append(tracks, ParseTrackFilename(loc, name))
	}
	return tracks, nil
}

// FindByVideoID returns the first MP3 in the playlist whose name contains videoID.
func (s *Store) FindByVideoID(loc models.PlaylistLocation, videoID string) (string, bool, error) {
	if videoID == "" {
		return "", false, nil
	}
	names, err := s.mp3Files(s.Dir(loc))
	if err != nil {
		return "", false, err
	}
	for _, name := range names {
		if strings.Contains(name, videoID) {
			return name, true, nil
		}
	}
	return "", false, nil
}

// ParseTrackFilename derives a track from an MP3 filename.
//
// The id is the first bracketed token of at least six id characters, or the whole filename.
func ParseTrackFilename(loc models.PlaylistLocation, filename string) models.DownloadedTrack {
	id := filename
	if m := bracketID.FindStringSubmatch(filename); m != nil {
		id = m[1]
	}
	return models.DownloadedTrack{
		ID:       id,
		Title:    strings.TrimSpace(titleSuffix.ReplaceAllString(filename, "")),
		Filename: filename,
		FileURL:  FileURL(loc, filename),
	}
}

// FileURL is the URL the HTTP server serves filename under.
func FileURL(loc models.PlaylistLocation, filename string) string {
	return strings.Join([]string{
		URLPrefix,
		url.PathEscape(loc.ProfileID),
		PlaylistsDir,
		url.PathEscape(loc.Playlist),
		url.PathEscape(filename),
	}, "/")
}

// CanonicalFilename is the name a finished download is stored under.
func CanonicalFilename(title, videoID string) string {
	return shared.Sanitize(title) + " [" + videoID + "].mp3"
}

// ListPlaylists returns every playlist of a profile with its track count, sorted by name.
func (s *Store) ListPlaylists(profileID string) ([]models.PlaylistSummary, error) {
	root := filepath.Join(s.root, shared.StrongSanitize(profileID), PlaylistsDir)
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.PlaylistSummary{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read playlists: %w", err)
	}

	summaries := make([]models.PlaylistSummary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names, err := s.mp3Files(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.PlaylistSummary{Name: e.Name(), TrackCount: len(names)})
	}
	return summaries, nil
}

// CreatePlaylist creates an empty playlist. Creating an existing playlist is not an error.
func (s *Store) CreatePlaylist(loc models.PlaylistLocation) error {
	_, err := s.EnsurePlaylist(loc)
	return err
}

// DeletePlaylist removes a playlist directory and everything in it.
func (s *Store) DeletePlaylist(loc models.PlaylistLocation) error {
	dir := s.Dir(loc)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, loc)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	s.logger.Info("deleted playlist", "location", loc)
	return nil
}

// DeleteTrack removes one MP3 from a playlist.
func (s *Store) DeleteTrack(loc models.PlaylistLocation, filename string) error {
	if filename == "" || filename != filepath.Base(filename) || !isMP3(filename) {
		return fmt.Errorf("%w: track filename %q", shared.ErrInvalidInput, filename)
	}

	err := os.Remove(filepath.Join(s.Dir(loc), filename))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, filename)
	} else if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	s.logger.Info("deleted track", "location", loc, "file", filename)
	return nil
}

// Downloads lists every playlist of a profile with its tracks, keyed by playlist name.
func (s *Store) Downloads(profileID string) (map[string][]models.DownloadedTrack, error) {
	playlists, err := s.ListPlaylists(profileID)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]models.DownloadedTrack, len(playlists))
	for _, p := range playlists {
		loc := models.PlaylistLocation{ProfileID: shared.StrongSanitize(profileID), Playlist: p.Name}
		tracks, err := s.ListDownloaded(loc)
		if err != nil {
			return nil, err
		}
		out[p.Name] = tracks
	}
	return out, nil
}

// mp3Files lists MP3 names in dir sorted by name. A missing dir is empty.
func (s *Store) mp3Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isMP3(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func isMP3(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".mp3")
}
