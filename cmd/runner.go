package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/library"
	"github.com/desertthunder/musix/internal/repositories"
	"github.com/desertthunder/musix/internal/services"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/tasks"
	"github.com/desertthunder/musix/internal/ytdlp"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 64

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	logger      *log.Logger
	output      io.Writer
	tool        tasks.Tool
	avail       ytdlp.Availability
	spotifyOpts []services.SpotifyOption
	interactive bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config         *shared.Config
	ConfigPath     string
	Logger         *log.Logger
	Output         io.Writer
	Tool           tasks.Tool               // optional, located from config when nil
	Availability   ytdlp.Availability       // reported by doctor when Tool is set
	SpotifyOptions []services.SpotifyOption // optional, e.g. alternate API hosts
	Interactive    *bool                    // optional, defaults to whether Output is a terminal
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	interactive := false
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	} else if f, ok := opts.Output.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd())
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		logger:      opts.Logger,
		output:      opts.Output,
		tool:        opts.Tool,
		avail:       opts.Availability,
		spotifyOpts: opts.SpotifyOptions,
		interactive: interactive,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, doctorCommand, searchCommand, downloadCommand, importCommand,
		profileCommand, playlistCommand, historyCommand, spotifyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by commands and every stack opened afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadTool returns the yt-dlp adapter and the lookup result it was built from.
func (r *Runner) loadTool() (tasks.Tool, ytdlp.Availability) {
	if r.tool != nil {
		return r.tool, r.avail
	}
	avail := ytdlp.Locate(r.config.Tool.YtdlpPaths)
	client := ytdlp.NewClient(avail, ytdlp.Options{
		FFmpegLocation: r.config.Tool.FFmpegLocation,
		ExtraArgs:      r.config.Tool.ExtraArgs,
		MetadataRate:   r.config.Tool.MetadataRate,
		Logger:         r.logger,
	})
	r.tool, r.avail = client, avail
	return client, avail
}

// stack is the set of collaborators job commands run with.
type stack struct {
	tool     tasks.Tool
	avail    ytdlp.Availability
	registry *jobs.Registry
	library  *library.Store
	engine   *tasks.Engine
	history  *repositories.DownloadRepository // nil when the database cannot be opened
	updates  chan tasks.ProgressUpdate
	db       *sql.DB
}

// openStack wires the engine from config. A database failure disables history instead of failing.
func (r *Runner) openStack() *stack {
	tool, avail := r.loadTool()
	s := &stack{
		tool:     tool,
		avail:    avail,
		registry: jobs.NewRegistry(jobs.WithLogger(r.logger), jobs.WithTTL(r.config.Jobs.TTL.Duration)),
		library:  library.NewStore(r.config.Paths.ProfilesDir, r.logger),
		updates:  make(chan tasks.ProgressUpdate, progressBuffer),
	}

	var recorder tasks.HistoryRecorder
	if db, err := shared.OpenDatabase(r.config.Database); err != nil {
		r.logger.Warn("download history disabled", "path", r.config.Database.Path, "error", err)
	} else {
		s.db = db
		s.history = repositories.NewDownloadRepository(db)
		recorder = repositories.NewHistoryRecorder(s.history)
	}

	s.engine = tasks.NewEngine(tasks.EngineOpts{
		Tool:     tool,
		Registry: s.registry,
		Library:  s.library,
		History:  recorder,
		Logger:   r.logger,
		Progress: s.updates,
	})
	return s
}

// drain discards progress updates for commands that only read the registry.
func (s *stack) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.updates:
		}
	}
}

func (s *stack) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
