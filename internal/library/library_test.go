package library

import (
	"bytes"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	tu "github.com/desertthunder/musix/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := tu.QuietLogger()
	return NewStore(t.TempDir(), logger)
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name     string
		profile  string
		playlist string
		want     models.PlaylistLocation
		wantErr  bool
	}{
		{name: "plain", profile: "alice", playlist: "favs", want: models.PlaylistLocation{ProfileID: "alice", Playlist: "favs"}},
		{name: "strong profile", profile: " my.profile name ", playlist: "Road Trip", want: models.PlaylistLocation{ProfileID: "my_profile_name", Playlist: "Road Trip"}},
		{name: "empty profile", profile: "", playlist: "favs", want: models.PlaylistLocation{ProfileID: "default", Playlist: "favs"}},
		{name: "loose playlist", profile: "alice", playlist: "AC/DC:  best", want: models.PlaylistLocation{ProfileID: "alice", Playlist: "AC_DC_ best"}},
		{name: "empty playlist", profile: "alice", playlist: "   ", wantErr: true},
		{name: "dot", profile: "alice", playlist: ".", wantErr: true},
		{name: "dot dot", profile: "alice", playlist: "..", wantErr: true},
		{name: "hidden", profile: "alice", playlist: ".cache", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.profile, tt.playlist)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListDownloaded(t *testing.T) {
	loc := models.PlaylistLocation{ProfileID: "alice", Playlist: "favs"}

	t.Run("missing directory is an empty playlist", func(t *testing.T) {
		s := newTestStore(t)
		tracks, err := s.ListDownloaded(loc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("expected empty non-nil listing, got %#v", tracks)
		}
	})

	t.Run("derives tracks from filenames", func(t *testing.T) {
		s := newTestStore(t)
		dir := s.Dir(loc)
		tu.MustWriteFile(t, filepath.Join(dir, "Song Title [abc123XYZ].mp3"), "")
		tu.MustWriteFile(t, filepath.Join(dir, "NoBracket.mp3"), "")
		tu.MustWriteFile(t, filepath.Join(dir, "cover.jpg"), "")
		tu.MustWriteFile(t, filepath.Join(dir, "partial [abc123XYZ].webm.part"), "")

		tracks, err := s.ListDownloaded(loc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d: %+v", len(tracks), tracks)
		}

		noBracket, song := tracks[0], tracks[1]
		if song.ID != "abc123XYZ" || song.Title != "Song Title" {
			t.Errorf("unexpected bracketed track: %+v", song)
		}
		if noBracket.ID != "NoBracket.mp3" || noBracket.Title != "NoBracket.mp3" {
			t.Errorf("unexpected unbracketed track: %+v", noBracket)
		}
		if song.FileURL != "/downloads/alice/playlists/favs/Song%20Title%20%5Babc123XYZ%5D.mp3" {
			t.Errorf("unexpected file url: %s", song.FileURL)
		}
	})

	t.Run("extension match is case-insensitive", func(t *testing.T) {
		s := newTestStore(t)
		tu.MustWriteFile(t, filepath.Join(s.Dir(loc), "Loud [QWERTY12].MP3"), "")

		tracks, _ := s.ListDownloaded(loc)
		if len(tracks) != 1 || tracks[0].Title != "Loud" || tracks[0].ID != "QWERTY12" {
			t.Errorf("unexpected listing: %+v", tracks)
		}
	})

	t.Run("sorted by filename", func(t *testing.T) {
		s := newTestStore(t)
		for _, name := range []string{"c [cccccc].mp3", "a [aaaaaa].mp3", "b [bbbbbb].mp3"} {
			tu.MustWriteFile(t, filepath.Join(s.Dir(loc), name), "")
		}

		tracks, _ := s.ListDownloaded(loc)
		ids := make([]string, 0, len(tracks))
		for _, tr := range tracks {
			ids = append(ids, tr.ID)
		}
		if !slices.Equal(ids, []string{"aaaaaa", "bbbbbb", "cccccc"}) {
			t.Errorf("unexpected order: %v", ids)
		}
	})
}

func TestParseTrackFilename(t *testing.T) {
	loc := models.PlaylistLocation{ProfileID: "bob", Playlist: "Road Trip"}

	tests := []struct {
		filename  string
		wantID    string
		wantTitle string
	}{
		{"Never Gonna Give You Up [dQw4w9WgXcQ].mp3", "dQw4w9WgXcQ", "Never Gonna Give You Up"},
		{"Short [abc].mp3", "Short [abc].mp3", "Short"},
		{"Live [2019] [xyz_-12].mp3", "xyz_-12", "Live [2019]"},
		{"[intro0] Opening.mp3", "intro0", "[intro0] Opening.mp3"},
		{"plain.mp3", "plain.mp3", "plain.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := ParseTrackFilename(loc, tt.filename)
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Filename != tt.filename {
				t.Errorf("Filename = %q", got.Filename)
			}
			if !strings.HasPrefix(got.FileURL, "/downloads/bob/playlists/Road%20Trip/") {
				t.Errorf("unexpected url %q", got.FileURL)
			}
		})
	}
}

func TestFindByVideoID(t *testing.T) {
	s := newTestStore(t)
	loc := models.PlaylistLocation{ProfileID: "alice", Playlist: "favs"}
	dir := s.Dir(loc)
	tu.MustWriteFile(t, filepath.Join(dir, "Other [zzzzzz].mp3"), "")
	tu.MustWriteFile(t, filepath.Join(dir, "Temp Name [dQw4w9WgXcQ].mp3"), "")
	tu.MustWriteFile(t, filepath.Join(dir, "leftover [dQw4w9WgXcQ].webm"), "")

	t.Run("found", func(t *testing.T) {
		name, ok, err := s.FindByVideoID(loc, "dQw4w9WgXcQ")
		if err != nil || !ok {
			t.Fatalf("expected match, got ok=%v err=%v", ok, err)
		}
		if name != "Temp Name [dQw4w9WgXcQ].mp3" {
			t.Errorf("unexpected match %q", name)
		}
	})

	t.Run("absent", func(t *testing.T) {
		if _, ok, err := s.FindByVideoID(loc, "missing00"); ok || err != nil {
			t.Errorf("expected no match, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		other := models.PlaylistLocation{ProfileID: "alice", Playlist: "nope"}
		if _, ok, err := s.FindByVideoID(other, "dQw4w9WgXcQ"); ok || err != nil {
			t.Errorf("expected no match, got ok=%v err=%v", ok, err)
		}
	})
}

func TestPlaylists(t *testing.T) {
	loc := models.PlaylistLocation{ProfileID: "alice", Playlist: "favs"}

	t.Run("EnsurePlaylist is idempotent and creates the profile", func(t *testing.T) {
		s := newTestStore(t)
		for range 2 {
			dir, err := s.EnsurePlaylist(loc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tu.AssertDirExists(t, dir)
		}
		tu.AssertFileExists(t, filepath.Join(s.Root(), "alice", ProfileFile))
		tu.AssertDirExists(t, filepath.Join(s.Root(), "alice", DownloadsDir))
	})

	t.Run("ListPlaylists counts tracks", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.CreatePlaylist(loc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.CreatePlaylist(models.PlaylistLocation{ProfileID: "alice", Playlist: "empty"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.MustWriteFile(t, filepath.Join(s.Dir(loc), "a [aaaaaa].mp3"), "")
		tu.MustWriteFile(t, filepath.Join(s.Dir(loc), "b [bbbbbb].mp3"), "")

		got, err := s.ListPlaylists("alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []models.PlaylistSummary{{Name: "empty", TrackCount: 0}, {Name: "favs", TrackCount: 2}}
		if !slices.Equal(got, want) {
			t.Errorf("ListPlaylists() = %+v, want %+v", got, want)
		}

		none, err := s.ListPlaylists("nobody")
		if err != nil || len(none) != 0 {
			t.Errorf("expected empty listing for unknown profile, got %v, %v", none, err)
		}
	})

	t.Run("Downloads groups tracks by playlist", func(t *testing.T) {
		s := newTestStore(t)
		tu.MustWriteFile(t, filepath.Join(s.Dir(loc), "a [aaaaaa].mp3"), "")
		tu.MustWriteFile(t, filepath.Join(s.Dir(models.PlaylistLocation{ProfileID: "alice", Playlist: "gym"}), "b [bbbbbb].mp3"), "")

		got, err := s.Downloads("alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || len(got["favs"]) != 1 || got["gym"][0].ID != "bbbbbb" {
			t.Errorf("unexpected downloads: %+v", got)
		}
	})

	t.Run("DeleteTrack", func(t *testing.T) {
		s := newTestStore(t)
		path := filepath.Join(s.Dir(loc), "a [aaaaaa].mp3")
		tu.MustWriteFile(t, path, "")

		if err := s.DeleteTrack(loc, "a [aaaaaa].mp3"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertNotExists(t, path)

		if err := s.DeleteTrack(loc, "a [aaaaaa].mp3"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		for _, bad := range []string{"", "../profile.json", "notes.txt"} {
			if err := s.DeleteTrack(loc, bad); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("DeleteTrack(%q): expected ErrInvalidInput, got %v", bad, err)
			}
		}
	})

	t.Run("DeletePlaylist", func(t *testing.T) {
		s := newTestStore(t)
		tu.MustWriteFile(t, filepath.Join(s.Dir(loc), "a [aaaaaa].mp3"), "")

		if err := s.DeletePlaylist(loc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertNotExists(t, s.Dir(loc))

		if err := s.DeletePlaylist(loc); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}

func TestCanonicalFilename(t *testing.T) {
	got := CanonicalFilename(`AC/DC: "Thunderstruck"`, "v2AC41dglnM")
	if got != "AC_DC_ _Thunderstruck_ [v2AC41dglnM].mp3" {
		t.Errorf("CanonicalFilename() = %q", got)
	}

	loc := models.PlaylistLocation{ProfileID: "alice", Playlist: "favs"}
	track := ParseTrackFilename(loc, got)
	if track.ID != "v2AC41dglnM" || track.Title != "AC_DC_ _Thunderstruck_" {
		t.Errorf("canonical name does not round-trip: %+v", track)
	}
}

func TestProfiles(t *testing.T) {
	t.Run("create derives ids and suffixes collisions", func(t *testing.T) {
		s := newTestStore(t)

		first, err := s.CreateProfile("Alice Smith")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := s.CreateProfile("Alice Smith")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		third, _ := s.CreateProfile("Alice Smith")

		if first.ID != "Alice_Smith" || second.ID != "Alice_Smith-2" || third.ID != "Alice_Smith-3" {
			t.Errorf("unexpected ids: %s, %s, %s", first.ID, second.ID, third.ID)
		}
		if first.DisplayName != "Alice Smith" {
			t.Errorf("unexpected display name %q", first.DisplayName)
		}
		tu.AssertDirExists(t, filepath.Join(s.Root(), first.ID, PlaylistsDir))
		tu.AssertDirExists(t, filepath.Join(s.Root(), first.ID, DownloadsDir))
	})

	t.Run("suffixed ids stay within the id limit", func(t *testing.T) {
		s := newTestStore(t)
		long := strings.Repeat("x", 100)
		a, _ := s.CreateProfile(long)
		b, err := s.CreateProfile(long)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(a.ID) != shared.MaxIDLength || len(b.ID) != shared.MaxIDLength || !strings.HasSuffix(b.ID, "-2") {
			t.Errorf("unexpected ids %q, %q", a.ID, b.ID)
		}
		if shared.StrongSanitize(b.ID) != b.ID {
			t.Errorf("suffixed id is not stable under sanitizing: %q", b.ID)
		}
	})

	t.Run("create requires a display name", func(t *testing.T) {
		s := newTestStore(t)
		if _, err := s.CreateProfile("  "); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("list skips folders without metadata", func(t *testing.T) {
		s := newTestStore(t)
		_, _ = s.CreateProfile("bob")
		_, _ = s.CreateProfile("alice")
		tu.MustWriteFile(t, filepath.Join(s.Root(), "tmp", "junk.txt"), "")
		tu.MustWriteFile(t, filepath.Join(s.Root(), "broken", ProfileFile), "{not json")

		profiles, err := s.ListProfiles()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(profiles) != 2 || profiles[0].ID != "alice" || profiles[1].ID != "bob" {
			t.Errorf("unexpected profiles: %+v", profiles)
		}
	})

	t.Run("list on a missing root", func(t *testing.T) {
		logger, _ := tu.QuietLogger()
		s := NewStore(filepath.Join(t.TempDir(), "absent"), logger)
		profiles, err := s.ListProfiles()
		if err != nil || len(profiles) != 0 {
			t.Errorf("expected empty list, got %v, %v", profiles, err)
		}
	})

	t.Run("get, ensure and delete", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.GetProfile("carol"); !errors.Is(err, shared.ErrProfileNotFound) {
			t.Errorf("expected ErrProfileNotFound, got %v", err)
		}

		p, err := s.EnsureProfile("carol")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ID != "carol" || p.DisplayName != "carol" {
			t.Errorf("unexpected ensured profile: %+v", p)
		}

		got, err := s.GetProfile("carol")
		if err != nil || got.ID != "carol" {
			t.Errorf("GetProfile() = %+v, %v", got, err)
		}

		if err := s.DeleteProfile("carol"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertNotExists(t, filepath.Join(s.Root(), "carol"))
		if err := s.DeleteProfile("carol"); !errors.Is(err, shared.ErrProfileNotFound) {
			t.Errorf("expected ErrProfileNotFound, got %v", err)
		}
	})

	t.Run("delete cannot escape the root", func(t *testing.T) {
		s := newTestStore(t)
		_, _ = s.CreateProfile("dave")
		if err := s.DeleteProfile("../"); !errors.Is(err, shared.ErrProfileNotFound) {
			t.Errorf("expected ErrProfileNotFound, got %v", err)
		}
		tu.AssertDirExists(t, s.Root())
	})
}

func TestSaveAvatar(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpeg := append([]byte("\xff\xd8\xff"), make([]byte, 32)...)

	t.Run("stores and replaces the avatar", func(t *testing.T) {
		s := newTestStore(t)
		p, _ := s.CreateProfile("erin")

		got, err := s.SaveAvatar(p.ID, bytes.NewReader(png))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Avatar != "avatar.png" {
			t.Errorf("unexpected avatar %q", got.Avatar)
		}
		if AvatarURL(got) != "/downloads/erin/avatar.png" {
			t.Errorf("unexpected avatar url %q", AvatarURL(got))
		}

		got, err = s.SaveAvatar(p.ID, bytes.NewReader(jpeg))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(s.Root(), "erin", "avatar.jpg"))
		tu.AssertNotExists(t, filepath.Join(s.Root(), "erin", "avatar.png"))

		reread, _ := s.GetProfile("erin")
		if reread.Avatar != "avatar.jpg" {
			t.Errorf("avatar not persisted: %+v", reread)
		}
	})

	t.Run("rejects other content", func(t *testing.T) {
		s := newTestStore(t)
		p, _ := s.CreateProfile("frank")

		for name, data := range map[string][]byte{
			"empty":   {},
			"text":    []byte("hello there, definitely not an image"),
			"too big": append(png, make([]byte, MaxAvatarSize)...),
		} {
			if _, err := s.SaveAvatar(p.ID, bytes.NewReader(data)); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
			}
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		s := newTestStore(t)
		if _, err := s.SaveAvatar("ghost", bytes.NewReader(png)); !errors.Is(err, shared.ErrProfileNotFound) {
			t.Errorf("expected ErrProfileNotFound, got %v", err)
		}
	})
}
