package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/services"
	"github.com/desertthunder/musix/internal/shared"
	tu "github.com/desertthunder/musix/internal/testing"
	"github.com/desertthunder/musix/internal/ytdlp"
	"golang.org/x/oauth2"
)

// testRunner is a runner wired to a fake yt-dlp and a config file in a temp dir.
type testRunner struct {
	runner     *Runner
	output     *bytes.Buffer
	tool       *tu.FakeTool
	config     *shared.Config
	configPath string
	dir        string
}

func newTestRunner(t *testing.T, configure ...func(*shared.Config)) *testRunner {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Paths.ProfilesDir = filepath.Join(dir, "profiles")
	config.Database.Path = filepath.Join(dir, "musix.db")
	config.Credentials.Spotify = shared.SpotifyConfig{}
	for _, fn := range configure {
		fn(config)
	}

	configPath := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(configPath, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	logger, _ := tu.QuietLogger()
	output := &bytes.Buffer{}
	tool := tu.NewFakeTool(map[string]string{
		"dQw4w9WgXcQ": "Song One",
		"9bZkp7q19f0": "Song Two",
	})
	interactive := false

	runner := NewRunner(RunnerOpts{
		Logger:       logger,
		Output:       output,
		Tool:         tool,
		Availability: ytdlp.Available("/usr/local/bin/yt-dlp"),
		Interactive:  &interactive,
	})

	return &testRunner{runner: runner, output: output, tool: tool, config: config, configPath: configPath, dir: dir}
}

func (tr *testRunner) run(t *testing.T, args ...string) error {
	t.Helper()
	tr.output.Reset()
	return newApp(tr.runner).Run(context.Background(), append([]string{"musix", "--config", tr.configPath}, args...))
}

func (tr *testRunner) playlistDir(profile, playlist string) string {
	return filepath.Join(tr.config.Paths.ProfilesDir, profile, "playlists", playlist)
}

// newSpotifyBackend serves the Spotify endpoints the CLI uses and returns options pointing at it.
func newSpotifyBackend(t *testing.T) []services.SpotifyOption {
	t.Helper()

	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		w.Header().Set("Content-Type", "application/json")
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			fmt.Fprint(w, `{"id":"user-1","display_name":"Alice"}`)
		}
	})
	mux.HandleFunc("GET /v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			fmt.Fprint(w, `{"items":[
				{"id":"pl1","name":"Road Trip","owner":{"display_name":"Alice"},"public":true,"tracks":{"total":1}},
				{"id":"pl2","name":"Focus","owner":{"display_name":"Alice"},"tracks":{"total":0}}
			],"next":null,"total":2}`)
		}
	})
	mux.HandleFunc("GET /v1/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			fmt.Fprintf(w, `{"id":%q,"name":"Road Trip","tracks":{"total":1}}`, r.PathValue("id"))
		}
	})
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		if authorized(w, r) {
			fmt.Fprint(w, `{"items":[{"track":{"id":"t1","name":"Windowlicker","artists":[{"name":"Aphex Twin"}]}}],"next":null,"total":1}`)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return []services.SpotifyOption{
		services.WithBaseURL(srv.URL + "/v1"),
		services.WithTokenURL(srv.URL + "/token"),
	}
}

func spotifyCreds(loggedIn bool) func(*shared.Config) {
	return func(c *shared.Config) {
		c.Credentials.Spotify.ClientID = "id"
		c.Credentials.Spotify.ClientSecret = "secret"
		if loggedIn {
			c.Credentials.Spotify.AccessToken = "access-1"
			c.Credentials.Spotify.RefreshToken = "refresh-1"
		}
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			tool := tu.NewFakeTool(nil)
			interactive := true

			runner := NewRunner(RunnerOpts{
				Config:      config,
				ConfigPath:  "/test/path/config.toml",
				Logger:      logger,
				Output:      output,
				Tool:        tool,
				Interactive: &interactive,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.tool != tool {
				t.Error("expected tool to be set")
			}
			if !runner.interactive {
				t.Error("expected interactive to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("non-terminal output is not interactive", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			if runner.interactive {
				t.Error("expected a buffer to be non-interactive")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		seen := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if seen[cmd.Name] {
				t.Errorf("duplicate command %s", cmd.Name)
			}
			seen[cmd.Name] = true
		}

		for _, name := range []string{"setup", "serve", "doctor", "search", "download", "import", "playlist", "history", "spotify"} {
			if !seen[name] {
				t.Errorf("expected command %s to be registered", name)
			}
		}
	})

	t.Run("saveToken", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			tr := newTestRunner(t, spotifyCreds(false))
			if err := tr.run(t, "doctor"); err != nil {
				t.Fatalf("doctor failed: %v", err)
			}

			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := tr.runner.saveToken(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loaded, err := shared.LoadConfig(tr.configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loaded.Credentials.Spotify.AccessToken)
			}
			if loaded.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loaded.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "missing", "config.toml")})

			err := runner.saveToken(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})

		t.Run("handles nil token", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "config.toml")})

			err := runner.saveToken(nil)
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("callbackAddr", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		tc := []struct {
			redirect string
			want     string
		}{
			{"http://127.0.0.1:4000/api/spotify/callback", "127.0.0.1:4000"},
			{"http://localhost/callback", "localhost:80"},
			{"", runner.config.Server.Addr()},
		}

		for _, tt := range tc {
			if got := runner.callbackAddr(tt.redirect); got != tt.want {
				t.Errorf("callbackAddr(%q) = %q, want %q", tt.redirect, got, tt.want)
			}
		}
	})

	t.Run("report", func(t *testing.T) {
		tc := []struct {
			name string
			job  models.Job
			want error
		}{
			{"done", models.Job{Status: models.JobDone, Percent: 100, Message: jobs.CompletedMessage}, nil},
			{"cancelled", models.Job{Status: models.JobError, Message: "Cancelled"}, shared.ErrCancelled},
			{"failed", models.Job{Status: models.JobError, Message: "exit status 1"}, shared.ErrJobFailed},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				logger, _ := tu.QuietLogger()
				runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: logger})

				err := runner.report(tt.job, false)
				if tt.want == nil && err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				if tt.want != nil && !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("Setup", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		tu.AssertFileExists(t, tr.config.Database.Path)
		tu.AssertDirExists(t, tr.config.Paths.ProfilesDir)
		if !strings.Contains(tr.output.String(), "migrations applied") {
			t.Errorf("expected migration summary, got %s", tr.output.String())
		}
	})

	t.Run("SetupCreatesConfig", func(t *testing.T) {
		dir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, dir)
		defer tu.MustChdir(t, originalDir)

		logger, _ := tu.QuietLogger()
		interactive := false
		runner := NewRunner(RunnerOpts{Logger: logger, Output: &bytes.Buffer{}, Tool: tu.NewFakeTool(nil), Interactive: &interactive})

		if err := newApp(runner).Run(context.Background(), []string{"musix", "setup"}); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		tu.AssertFileExists(t, "config.toml")
		tu.AssertFileExists(t, "musix.db")
		tu.AssertDirExists(t, "profiles")
	})

	t.Run("Doctor", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "doctor", "--json"); err != nil {
			t.Fatalf("doctor failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), `"yt_dlp_found": true`) {
			t.Errorf("expected yt-dlp to be reported, got %s", tr.output.String())
		}
	})

	t.Run("DoctorMissingTool", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.runner.avail = ytdlp.Unavailable("not installed")

		err := tr.run(t, "doctor")
		if !errors.Is(err, shared.ErrToolNotFound) {
			t.Fatalf("expected ErrToolNotFound, got %v", err)
		}
		if !strings.Contains(tr.output.String(), "✗ yt-dlp") {
			t.Errorf("expected a failed check, got %s", tr.output.String())
		}
	})
}

func TestJobCommands(t *testing.T) {
	t.Run("Search", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.tool.SearchResults["daft punk"] = []ytdlp.Entry{
			{ID: "abc123XYZ00", Title: "Around the World", Channel: "Daft Punk", Duration: 429},
			{ID: "def456UVW00", Title: "One More Time"},
		}

		if err := tr.run(t, "search", "--format", "csv", "daft punk"); err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "abc123XYZ00,Around the World,Daft Punk,7:09,") {
			t.Errorf("unexpected CSV output: %s", tr.output.String())
		}

		if err := tr.run(t, "search", "--json", "--limit", "1", "daft punk"); err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if strings.Contains(tr.output.String(), "def456UVW00") {
			t.Errorf("expected --limit to apply, got %s", tr.output.String())
		}
	})

	t.Run("SearchValidation", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "search", " "); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := tr.run(t, "search", "--format", "yaml", "x"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := tr.run(t, "search", "--pick", "x"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected --pick to need a terminal, got %v", err)
		}
	})

	t.Run("SearchToolError", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.tool.SearchErr = shared.ErrToolNotFound

		if err := tr.run(t, "search", "x"); !errors.Is(err, shared.ErrToolNotFound) {
			t.Errorf("expected ErrToolNotFound, got %v", err)
		}
	})

	t.Run("Download", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "download", "--profile", "alice", "--playlist", "Road Trip", "--quiet", "dQw4w9WgXcQ"); err != nil {
			t.Fatalf("download failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(tr.playlistDir("alice", "Road Trip"), "Song One [dQw4w9WgXcQ].mp3"))
		if !strings.Contains(tr.output.String(), jobs.CompletedMessage) {
			t.Errorf("expected completion summary, got %s", tr.output.String())
		}

		if err := tr.run(t, "history", "--format", "csv"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "alice,Road Trip,dQw4w9WgXcQ,Song One,succeeded") {
			t.Errorf("expected the download in history, got %s", tr.output.String())
		}
	})

	t.Run("DownloadFailure", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.tool.DownloadErr["dQw4w9WgXcQ"] = &ytdlp.ProcessError{ExitCode: 1, Stderr: "ERROR: Video unavailable"}

		err := tr.run(t, "download", "--playlist", "favs", "-q", "dQw4w9WgXcQ")
		if !errors.Is(err, shared.ErrJobFailed) {
			t.Fatalf("expected ErrJobFailed, got %v", err)
		}

		if err := tr.run(t, "history", "--profile", "default"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "✗") {
			t.Errorf("expected a failed record, got %s", tr.output.String())
		}
	})

	t.Run("DownloadValidation", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "download", "--playlist", "favs", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := tr.run(t, "download", "--playlist", ".hidden", "dQw4w9WgXcQ"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := tr.run(t, "download", "dQw4w9WgXcQ"); err == nil {
			t.Error("expected --playlist to be required")
		}
		if len(tr.tool.Downloads()) != 0 {
			t.Errorf("expected no downloads, got %v", tr.tool.Downloads())
		}
	})

	t.Run("Import", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.tool.DownloadErr["9bZkp7q19f0"] = &ytdlp.ProcessError{ExitCode: 1}

		err := tr.run(t, "import", "--playlist", "Mix", "--quiet", "dQw4w9WgXcQ", "9bZkp7q19f0")
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}

		output := tr.output.String()
		if !strings.Contains(output, "Failed 1 tracks") || !strings.Contains(output, "9bZkp7q19f0") {
			t.Errorf("expected the failure to be listed, got %s", output)
		}
		tu.AssertFileExists(t, filepath.Join(tr.playlistDir(shared.DefaultID, "Mix"), "Song One [dQw4w9WgXcQ].mp3"))
	})

	t.Run("ImportRequiresIDs", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "import", "--playlist", "Mix"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("ImportRejectsSourceURL", func(t *testing.T) {
		tr := newTestRunner(t)

		err := tr.run(t, "import", "--playlist", "Mix", "--source-url=--exec=touch /tmp/x", "--quiet", "dQw4w9WgXcQ")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if calls := tr.tool.Calls(); len(calls) != 0 {
			t.Errorf("expected no tool calls, got %v", calls)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	t.Run("Profiles", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "profile", "create", "Alice Smith"); err != nil {
			t.Fatalf("profile create failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "Alice_Smith") {
			t.Errorf("expected the sanitized id, got %s", tr.output.String())
		}

		if err := tr.run(t, "profile", "list", "--json"); err != nil {
			t.Fatalf("profile list failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), `"displayName": "Alice Smith"`) {
			t.Errorf("expected the profile to be listed, got %s", tr.output.String())
		}

		if err := tr.run(t, "profile", "delete", "Alice_Smith"); err != nil {
			t.Fatalf("profile delete failed: %v", err)
		}
		if err := tr.run(t, "profile", "delete", "Alice_Smith"); !errors.Is(err, shared.ErrProfileNotFound) {
			t.Errorf("expected ErrProfileNotFound, got %v", err)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "playlist", "create", "--profile", "bob", "Gym: Mix"); err != nil {
			t.Fatalf("playlist create failed: %v", err)
		}
		tu.AssertDirExists(t, tr.playlistDir("bob", "Gym_ Mix"))

		if err := tr.run(t, "download", "-p", "bob", "-l", "Gym_ Mix", "-q", "dQw4w9WgXcQ"); err != nil {
			t.Fatalf("download failed: %v", err)
		}

		if err := tr.run(t, "playlist", "list", "--profile", "bob"); err != nil {
			t.Fatalf("playlist list failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "Gym_ Mix") || !strings.Contains(tr.output.String(), "1 tracks") {
			t.Errorf("unexpected listing: %s", tr.output.String())
		}

		if err := tr.run(t, "playlist", "show", "--profile", "bob", "--format", "markdown", "Gym_ Mix"); err != nil {
			t.Fatalf("playlist show failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "1. [Song One](/downloads/bob/playlists/") {
			t.Errorf("unexpected markdown: %s", tr.output.String())
		}

		export := filepath.Join(tr.dir, "exports", "gym.csv")
		if err := tr.run(t, "playlist", "show", "-p", "bob", "-f", "csv", "-o", export, "Gym_ Mix"); err != nil {
			t.Fatalf("playlist export failed: %v", err)
		}
		if content := tu.MustReadFile(t, export); !strings.HasPrefix(content, "ID,Title,Filename,URL\n") {
			t.Errorf("unexpected export %q", content)
		}

		if err := tr.run(t, "playlist", "delete", "--profile", "bob", "Gym_ Mix"); err != nil {
			t.Fatalf("playlist delete failed: %v", err)
		}
		tu.AssertNotExists(t, tr.playlistDir("bob", "Gym_ Mix"))

		if err := tr.run(t, "playlist", "delete", "--profile", "bob", "Gym_ Mix"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("PlaylistShowEmpty", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "playlist", "show", "--format", "json", "nothing"); err != nil {
			t.Fatalf("playlist show failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), `"tracks": []`) {
			t.Errorf("expected an empty track list, got %s", tr.output.String())
		}
	})

	t.Run("HistoryEmpty", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if tr.output.String() != "No downloads recorded.\n" {
			t.Errorf("unexpected output %q", tr.output.String())
		}
	})

	t.Run("HistoryUnavailable", func(t *testing.T) {
		tr := newTestRunner(t, func(c *shared.Config) {
			c.Database.Path = filepath.Join(c.Paths.ProfilesDir, "missing", "dir", "musix.db")
		})

		if err := tr.run(t, "history"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "spotify", "playlists"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("NotLoggedIn", func(t *testing.T) {
		tr := newTestRunner(t, spotifyCreds(false))

		if err := tr.run(t, "spotify", "playlists"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		tr := newTestRunner(t, spotifyCreds(true))
		tr.runner.spotifyOpts = newSpotifyBackend(t)

		if err := tr.run(t, "spotify", "playlists", "--json", "--limit", "1"); err != nil {
			t.Fatalf("spotify playlists failed: %v", err)
		}
		output := tr.output.String()
		if !strings.Contains(output, `"name": "Road Trip"`) || strings.Contains(output, "Focus") {
			t.Errorf("unexpected playlists: %s", output)
		}

		if err := tr.run(t, "spotify", "playlists"); err != nil {
			t.Fatalf("spotify playlists failed: %v", err)
		}
		if !strings.Contains(tr.output.String(), "Found 2 playlists") {
			t.Errorf("unexpected plain output: %s", tr.output.String())
		}
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		tr := newTestRunner(t, func(c *shared.Config) {
			spotifyCreds(true)(c)
			c.Credentials.Spotify.AccessToken = "stale"
		})
		tr.runner.spotifyOpts = newSpotifyBackend(t)

		if err := tr.run(t, "spotify", "playlists"); err == nil {
			t.Error("expected a rejected token to fail without a terminal")
		}
	})

	t.Run("Import", func(t *testing.T) {
		tr := newTestRunner(t, spotifyCreds(true))
		tr.runner.spotifyOpts = newSpotifyBackend(t)
		tr.tool.Titles["WinDowLick1"] = "Windowlicker"
		tr.tool.SearchResults["Aphex Twin - Windowlicker"] = []ytdlp.Entry{{ID: "WinDowLick1", Title: "Windowlicker"}}

		err := tr.run(t, "spotify", "import", "--profile", "alice", "--quiet", "https://open.spotify.com/playlist/pl1?si=abc")
		if err != nil {
			t.Fatalf("spotify import failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(tr.playlistDir("alice", "Road Trip"), "Windowlicker [WinDowLick1].mp3"))
	})

	t.Run("ImportNeedsID", func(t *testing.T) {
		tr := newTestRunner(t, spotifyCreds(true))
		tr.runner.spotifyOpts = newSpotifyBackend(t)

		if err := tr.run(t, "spotify", "import", "--playlist", "x"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
