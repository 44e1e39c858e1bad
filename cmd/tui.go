package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/desertthunder/musix/internal/tasks"
	"github.com/desertthunder/musix/internal/ui"
	"github.com/urfave/cli/v3"
)

const (
	tuiLogPath   = "./tmp/musix-tui.log"
	pollInterval = 250 * time.Millisecond
)

// useProgressView reports whether a job command renders the progress view.
//
// When it does, logs are redirected to a file to avoid interfering with TUI rendering.
func (r *Runner) useProgressView(cmd *cli.Command) (bool, error) {
	if cmd.Bool("quiet") || !r.interactive {
		return false, nil
	}

	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return false, fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	return true, nil
}

// follow blocks until job id settles and returns its final snapshot.
func (r *Runner) follow(ctx context.Context, s *stack, id jobs.ID, title string, view bool) (models.Job, error) {
	if !view {
		return r.followQuiet(s, id)
	}

	m := ui.NewProgressModel(title, id, s.registry, s.updates)
	job, err := ui.RunProgress(ctx, m, tea.WithOutput(r.output))
	if err != nil {
		return job, fmt.Errorf("error running TUI: %w", err)
	}
	return job, nil
}

// followQuiet logs progress updates and polls the registry until the job settles.
//
// An interrupt cancels the command context, which the job observes and settles on.
func (r *Runner) followQuiet(s *stack, id jobs.ID) (models.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case update := <-s.updates:
			if update.Job != id || update.Message == "" {
				continue
			}
			switch update.Phase {
			case tasks.Download:
				r.logger.Debug(update.Message, "step", update.Step, "total", update.Total, "percent", update.Percent)
			default:
				r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
			}
		case <-ticker.C:
			job, err := s.registry.Get(id)
			if err != nil {
				return job, err
			}
			if job.Status.IsSettled() {
				return job, nil
			}
		}
	}
}

// report prints a job summary and turns an errored job into an error.
//
// The progress view already shows the outcome, so only the plain output repeats it.
func (r *Runner) report(job models.Job, view bool) error {
	if !view {
		r.writePlainHeader(fmt.Sprintf("%s (%d%%)", job.Message, job.Percent))
		if len(job.Failed) > 0 {
			r.writePlain("Failed %d tracks:\n", len(job.Failed))
			for _, f := range job.Failed {
				r.writePlain("  - %s (%s)\n", f.Title, f.ID)
			}
		}
	}

	switch {
	case job.Status == models.JobError && job.Message == tasks.CancelledMessage:
		return shared.ErrCancelled
	case job.Status == models.JobError:
		return fmt.Errorf("%w: %s", shared.ErrJobFailed, job.Message)
	case !job.Status.IsSettled():
		r.logger.Warn("stopped following a running job, exiting cancels it")
	}
	return nil
}
