package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"golang.org/x/time/rate"
)

// Entry is one item of a flat playlist or search result.
type Entry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
}

// Result converts the entry for API responses. The title falls back to the id and the URL to the
// canonical watch URL.
func (e Entry) Result() models.SearchResult {
	r := models.SearchResult{
		ID:       e.ID,
		Title:    e.Title,
		URL:      e.WebpageURL,
		Channel:  e.Channel,
		Duration: e.Duration,
	}
	if r.Title == "" {
		r.Title = e.ID
	}
	if r.URL == "" && strings.HasPrefix(e.URL, "http") {
		r.URL = e.URL
	}
	if r.URL == "" {
		r.URL = models.CanonicalURL(e.ID)
	}
	if r.Channel == "" {
		r.Channel = e.Uploader
	}
	return r
}

// Metadata is the subset of yt-dlp's --dump-single-json document the pipeline reads.
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Type       string  `json:"_type"`
	WebpageURL string  `json:"webpage_url"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	Entries    []Entry `json:"entries"`
}

// Titles maps entry ids to titles, skipping entries without either.
func (m *Metadata) Titles() map[string]string {
	titles := make(map[string]string, len(m.Entries))
	for _, e := range m.Entries {
		if e.ID != "" && e.Title != "" {
			titles[e.ID] = e.Title
		}
	}
	return titles
}

// Options configures a [Client].
type Options struct {
	FFmpegLocation string
	ExtraArgs      []string // appended to every invocation
	MetadataRate   float64  // metadata calls per second; zero disables throttling
	Logger         *log.Logger
}

// DownloadRequest describes one extract-audio run.
type DownloadRequest struct {
	URL            string
	OutputTemplate string // e.g. "<dir>/%(title).100B [%(id)s].%(ext)s"
}

// Client invokes yt-dlp.
type Client struct {
	avail   Availability
	opts    Options
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClient creates a client bound to a located binary.
func NewClient(avail Availability, opts Options) *Client {
	limit := rate.Inf
	if opts.MetadataRate > 0 {
		limit = rate.Limit(opts.MetadataRate)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		avail:   avail,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  shared.WithLogger(logger, "component", "ytdlp"),
	}
}

// Availability returns the binary lookup the client was built with.
func (c *Client) Availability() Availability {
	return c.avail
}

// FetchMetadata runs yt-dlp --dump-single-json against target and decodes the result.
//
// target may be a URL or a search expression such as "ytsearch15:query".
// flat adds --flat-playlist so playlists and searches are listed without resolving every entry.
func (c *Client) FetchMetadata(ctx context.Context, target string, flat bool) (*Metadata, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: empty target", shared.ErrInvalidInput)
	}

	bin, err := c.avail.Path()
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrToolInvocation, err)
	}

	args := []string{"--dump-single-json"}
	if flat {
		args = append(args, "--flat-playlist")
	}
	args = append(args, c.opts.ExtraArgs...)
	args = append(args, "--", target)

	c.logger.Debug("fetching metadata", "target", target, "flat", flat)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v: %s", shared.ErrToolInvocation, err, lastLines(stderr.String(), 5))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: empty output", shared.ErrToolInvocation)
	}

	var meta Metadata
	if err := json.Unmarshal(stdout.Bytes(), &meta); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", shared.ErrToolInvocation, err)
	}
	return &meta, nil
}

// Search lists up to limit results for query without resolving each one.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 15
	}

	meta, err := c.FetchMetadata(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query), true)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(meta.Entries))
	for _, e := range meta.Entries {
		if e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// BeginDownload spawns an extract-audio run and returns immediately.
//
// The caller must drain [ProcessHandle.Lines] before calling [ProcessHandle.Wait], or use [Follow].
// Cancelling ctx kills the process.
func (c *Client) BeginDownload(ctx context.Context, req DownloadRequest) (ProcessHandle, error) {
	if req.URL == "" || req.OutputTemplate == "" {
		return nil, fmt.Errorf("%w: url and output template are required", shared.ErrInvalidInput)
	}

	bin, err := c.avail.Path()
	if err != nil {
		return nil, err
	}

	args := c.downloadArgs(req)
	c.logger.Debug("starting download", "url", req.URL, "output", req.OutputTemplate)

	p, err := start(ctx, exec.CommandContext(ctx, bin, args...))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) downloadArgs(req DownloadRequest) []string {
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"--embed-thumbnail",
		"--add-metadata",
		"--newline",
		"--output", req.OutputTemplate,
	}
	if c.opts.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", c.opts.FFmpegLocation)
	}
	args = append(args, c.opts.ExtraArgs...)
	return append(args, "--", req.URL)
}

// IsUnavailable reports whether err means yt-dlp could not be found.
func IsUnavailable(err error) bool {
	return errors.Is(err, shared.ErrToolNotFound)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
