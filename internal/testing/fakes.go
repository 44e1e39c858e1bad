package testing

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/ytdlp"
)

// FakeProcess is a [ytdlp.ProcessHandle] that replays fixed output.
type FakeProcess struct {
	lines chan ytdlp.Line
	err   error
}

// NewFakeProcess returns a finished process that emits lines on stdout and exits with err.
func NewFakeProcess(lines []string, err error) *FakeProcess {
	ch := make(chan ytdlp.Line, len(lines))
	for _, l := range lines {
		ch <- ytdlp.Line{Stream: ytdlp.StreamStdout, Text: l}
	}
	close(ch)
	return &FakeProcess{lines: ch, err: err}
}

func (p *FakeProcess) Lines() <-chan ytdlp.Line { return p.lines }
func (p *FakeProcess) Wait() error              { return p.err }

// FakeTool stands in for the yt-dlp client.
//
// Downloads write an empty MP3 into the directory of the output template unless the id is listed in
// SkipWrite or DownloadErr.
type FakeTool struct {
	mu sync.Mutex

	Titles        map[string]string // video id to title
	Playlist      *ytdlp.Metadata   // returned for any target that is not a watch URL
	MetadataErr   map[string]error  // video id to metadata failure
	SearchResults map[string][]ytdlp.Entry
	SearchErr     error
	Progress      []string         // lines every download emits
	DownloadErr   map[string]error // video id to exit error
	SpawnErr      map[string]error // video id to spawn error
	SkipWrite     map[string]bool  // exit cleanly without producing a file
	FileName      func(id, title string) string

	calls []string
}

// NewFakeTool returns a fake that knows the given id/title pairs.
func NewFakeTool(titles map[string]string) *FakeTool {
	if titles == nil {
		titles = map[string]string{}
	}
	return &FakeTool{
		Titles:        titles,
		MetadataErr:   map[string]error{},
		SearchResults: map[string][]ytdlp.Entry{},
		DownloadErr:   map[string]error{},
		SpawnErr:      map[string]error{},
		SkipWrite:     map[string]bool{},
	}
}

// Calls returns every invocation as "<op> <target>".
func (f *FakeTool) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

// Downloads returns the video ids passed to BeginDownload, in order.
func (f *FakeTool) Downloads() []string {
	var ids []string
	for _, c := range f.Calls() {
		if target, ok := strings.CutPrefix(c, "download "); ok {
			ids = append(ids, target)
		}
	}
	return ids
}

func (f *FakeTool) record(op, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+target)
}

func (f *FakeTool) FetchMetadata(ctx context.Context, target string, flat bool) (*ytdlp.Metadata, error) {
	f.record("metadata", target)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
	}

	id := videoID(target)
	if id == "" {
		if f.Playlist == nil {
			return nil, fmt.Errorf("%w: no playlist for %s", shared.ErrToolInvocation, target)
		}
		return f.Playlist, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.MetadataErr[id]; ok {
		return nil, err
	}
	title, ok := f.Titles[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown video %s", shared.ErrToolInvocation, id)
	}
	return &ytdlp.Metadata{ID: id, Title: title, WebpageURL: target}, nil
}

func (f *FakeTool) Search(ctx context.Context, query string, limit int) ([]ytdlp.Entry, error) {
	f.record("search", query)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	results := f.SearchResults[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f *FakeTool) BeginDownload(ctx context.Context, req ytdlp.DownloadRequest) (ytdlp.ProcessHandle, error) {
	id := videoID(req.URL)
	f.record("download", id)

	f.mu.Lock()
	spawnErr := f.SpawnErr[id]
	exitErr := f.DownloadErr[id]
	skip := f.SkipWrite[id]
	title := f.Titles[id]
	lines := append([]string{}, f.Progress...)
	name := f.FileName
	f.mu.Unlock()

	if spawnErr != nil {
		return nil, &ytdlp.SpawnError{Err: spawnErr}
	}
	if err := ctx.Err(); err != nil {
		return NewFakeProcess(nil, fmt.Errorf("%w: %w", shared.ErrCancelled, err)), nil
	}
	if exitErr != nil {
		return NewFakeProcess(lines, exitErr), nil
	}

	if !skip {
		var filename string
		if name != nil {
			filename = name(id, title)
		} else {
			filename = renderTemplate(filepath.Base(req.OutputTemplate), id, title)
		}
		path := filepath.Join(filepath.Dir(req.OutputTemplate), filename)
		if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
			return NewFakeProcess(nil, &ytdlp.ProcessError{ExitCode: 1, Stderr: err.Error()}), nil
		}
	}
	return NewFakeProcess(lines, nil), nil
}

// renderTemplate expands the fields of an output template the way yt-dlp does for simple titles.
func renderTemplate(tmpl, id, title string) string {
	r := strings.NewReplacer(
		"%(title).100B", strings.ReplaceAll(title, "/", "_"),
		"%(title)s", strings.ReplaceAll(title, "/", "_"),
		"%(id)s", id,
		"%(ext)s", "mp3",
	)
	return r.Replace(tmpl)
}

func videoID(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
