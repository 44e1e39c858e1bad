package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
)

// MaxAvatarSize is the largest accepted avatar upload in bytes.
const MaxAvatarSize = 5 << 20

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ListProfiles returns every profile that has a readable profile.json, sorted by id.
func (s *Store) ListProfiles() ([]models.Profile, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Profile{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	profiles := make([]models.Profile, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := s.readProfile(e.Name())
		if errors.Is(err, shared.ErrProfileNotFound) {
			continue
		} else if err != nil {
			s.logger.Warn("skipping unreadable profile", "profile", e.Name(), "error", err)
			continue
		}
		profiles = append(profiles, p)
	}

	slices.SortFunc(profiles, func(a, b models.Profile) int { return strings.Compare(a.ID, b.ID) })
	return profiles, nil
}

// CreateProfile creates a profile whose id is derived from displayName.
//
// Taken ids get a numeric suffix: "alice", "alice-2", "alice-3".
func (s *Store) CreateProfile(displayName string) (models.Profile, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return models.Profile{}, fmt.Errorf("%w: displayName", shared.ErrMissingArgument)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return models.Profile{}, fmt.Errorf("failed to create profiles directory: %w", err)
	}

	base := shared.StrongSanitize(displayName)
	for n := 1; ; n++ {
		id := profileID(base, n)
		err := os.Mkdir(filepath.Join(s.root, id), 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		} else if err != nil {
			return models.Profile{}, fmt.Errorf("failed to create profile: %w", err)
		}

		p := models.Profile{ID: id, DisplayName: displayName, CreatedAt: time.Now().UTC()}
		if err := s.initProfile(p); err != nil {
			return models.Profile{}, err
		}
		s.logger.Info("created profile", "profile", id)
		return p, nil
	}
}

// GetProfile reads one profile.
func (s *Store) GetProfile(id string) (models.Profile, error) {
	return s.readProfile(shared.StrongSanitize(id))
}

// EnsureProfile returns the profile for id, creating it with id as its display name if missing.
func (s *Store) EnsureProfile(id string) (models.Profile, error) {
	id = shared.StrongSanitize(id)
	p, err := s.readProfile(id)
	if err == nil {
		return p, nil
	} else if !errors.Is(err, shared.ErrProfileNotFound) {
		return models.Profile{}, err
	}

	if err := os.MkdirAll(filepath.Join(s.root, id), 0o755); err != nil {
		return models.Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}
	p = models.Profile{ID: id, DisplayName: id, CreatedAt: time.Now().UTC()}
	if err := s.initProfile(p); err != nil {
		return models.Profile{}, err
	}
	s.logger.Debug("created profile on demand", "profile", id)
	return p, nil
}

// DeleteProfile removes a profile and all of its playlists.
func (s *Store) DeleteProfile(id string) error {
	id = shared.StrongSanitize(id)
	dir := filepath.Join(s.root, id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	s.logger.Info("deleted profile", "profile", id)
	return nil
}

// SaveAvatar stores an avatar image for a profile, replacing any previous one.
//
// The image type is sniffed from its content; only PNG, JPEG and WebP under [MaxAvatarSize] are kept.
func (s *Store) SaveAvatar(id string, r io.Reader) (models.Profile, error) {
	p, err := s.GetProfile(id)
	if err != nil {
		return models.Profile{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to read avatar: %w", err)
	}
	if len(data) == 0 || len(data) > MaxAvatarSize {
		return models.Profile{}, fmt.Errorf("%w: avatar must be between 1 byte and %d bytes", shared.ErrInvalidInput, MaxAvatarSize)
	}

	ext, ok := avatarTypes[http.DetectContentType(data)]
	if !ok {
		return models.Profile{}, fmt.Errorf("%w: avatar must be PNG, JPEG or WebP", shared.ErrInvalidInput)
	}

	dir := filepath.Join(s.root, p.ID)
	if p.Avatar != "" {
		_ = os.Remove(filepath.Join(dir, p.Avatar))
	}

	name := "avatar" + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return models.Profile{}, fmt.Errorf("failed to write avatar: %w", err)
	}

	p.Avatar = name
	if err := s.writeProfile(p); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// AvatarURL is the URL the HTTP server serves a profile's avatar under, or "" if it has none.
func AvatarURL(p models.Profile) string {
	if p.Avatar == "" {
		return ""
	}
	return URLPrefix + "/" + url.PathEscape(p.ID) + "/" + url.PathEscape(p.Avatar)
}

func (s *Store) initProfile(p models.Profile) error {
	for _, sub := range []string{PlaylistsDir, DownloadsDir} {
		if err := os.MkdirAll(filepath.Join(s.root, p.ID, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
	}
	return s.writeProfile(p)
}

func (s *Store) readProfile(id string) (models.Profile, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id, ProfileFile))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Profile{}, fmt.Errorf("%w: %s", shared.ErrProfileNotFound, id)
	} else if err != nil {
		return models.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Profile{}, fmt.Errorf("failed to parse %s: %w", ProfileFile, err)
	}
	// the directory name wins over whatever the file says
	p.ID = id
	if p.DisplayName == "" {
		p.DisplayName = id
	}
	return p, nil
}

func (s *Store) writeProfile(p models.Profile) error {
	data, err := shared.MarshalJSON(p, true)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.root, p.ID, ProfileFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ProfileFile, err)
	}
	return nil
}

// profileID returns base for n == 1, otherwise base-n, trimmed so the result stays a valid id.
func profileID(base string, n int) string {
	if n == 1 {
		return base
	}
	suffix := "-" + strconv.Itoa(n)
	runes := []rune(base)
	if limit := shared.MaxIDLength - len(suffix); len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes) + suffix
}
