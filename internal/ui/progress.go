package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/musix/internal/jobs"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/tasks"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxEvents           = 6
	maxBarWidth         = 60
)

// JobSource reads and cancels jobs. Implemented by [jobs.Registry].
type JobSource interface {
	Get(id jobs.ID) (models.Job, error)
	Cancel(id jobs.ID) error
}

// ProgressModel follows one job until it settles.
//
// The registry snapshot drives the bar and the final state. Updates from the engine's progress
// channel, when given, add per-track events between polls; updates for other jobs are ignored.
type ProgressModel struct {
	title    string
	id       jobs.ID
	jobs     JobSource
	updates  <-chan tasks.ProgressUpdate
	interval time.Duration

	job       models.Job
	last      tasks.ProgressUpdate
	events    []string
	done      bool
	cancelled bool
	err       error

	bar     progress.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewProgressModel creates a model for job id. updates may be nil.
func NewProgressModel(title string, id jobs.ID, src JobSource, updates <-chan tasks.ProgressUpdate) *ProgressModel {
	return &ProgressModel{
		title:    title,
		id:       id,
		jobs:     src,
		updates:  updates,
		interval: defaultPollInterval,
		job:      models.Job{Status: models.JobRunning, Failed: []models.Failure{}},
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the spinner, the first poll and the update listener.
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(0), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-4, maxBarWidth))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m *ProgressModel) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if update.Job == m.id {
			m.last = update
			if update.Phase == tasks.Verify || update.Phase == tasks.Settled {
				m.addEvent(update.Message)
			}
		}
		return m, m.waitForProgress()

	case MsgUpdatesClosed:
		m.updates = nil
		return m, nil

	case MsgJobSnapshot:
		snap := msg.data.(jobSnapshot)
		if snap.err != nil {
			m.err = snap.err
			m.done = true
			return m, tea.Quit
		}
		m.job = snap.job
		if m.job.Status.IsSettled() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.poll(m.interval)
	}
	return m, nil
}

func (m *ProgressModel) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.done && (key.Matches(msg, m.keys.quit) || key.Matches(msg, m.keys.back)):
		return m, tea.Quit
	case m.cancelled && key.Matches(msg, m.keys.quit):
		// second request while cancelling: stop waiting
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.quit):
		if err := m.jobs.Cancel(m.id); err != nil {
			m.err = err
			m.done = true
			return m, tea.Quit
		}
		m.cancelled = true
		return m, nil
	}
	return m, nil
}

func (m *ProgressModel) addEvent(s string) {
	if s == "" {
		return
	}
	m.events = append(m.events, s)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m *ProgressModel) poll(after time.Duration) tea.Cmd {
	fetch := func() tea.Msg {
		job, err := m.jobs.Get(m.id)
		return jobSnapshotMsg(job, err)
	}
	if after <= 0 {
		return fetch
	}
	return tea.Tick(after, func(time.Time) tea.Msg { return fetch() })
}

func (m *ProgressModel) waitForProgress() tea.Cmd {
	updates := m.updates
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return updatesClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

// View renders the job state.
func (m *ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	case m.job.Status == models.JobDone && len(m.job.Failed) == 0:
		b.WriteString(styles.ok.Render("✓ " + m.job.Message))
	case m.job.Status == models.JobDone:
		b.WriteString(styles.warn.Render(fmt.Sprintf("✓ %s with %d failed", m.job.Message, len(m.job.Failed))))
	case m.job.Status == models.JobError:
		b.WriteString(styles.err.Render("✗ " + m.job.Message))
	default:
		message := m.job.Message
		if m.last.Message != "" && m.last.Phase != tasks.Verify {
			message = m.last.Message
		}
		if m.cancelled {
			message = "Cancelling..."
		}
		b.WriteString(m.spinner.View() + " " + message)
	}
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(float64(m.job.Percent) / 100))
	b.WriteString("\n")

	for _, e := range m.events {
		b.WriteString(styles.dim.Render(e) + "\n")
	}

	if m.done && len(m.job.Failed) > 0 {
		b.WriteString("\n" + styles.warn.Render(fmt.Sprintf("Failed %d tracks:", len(m.job.Failed))))
		for _, f := range m.job.Failed {
			b.WriteString(fmt.Sprintf("\n  • %s (%s)", f.Title, f.ID))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	} else {
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	}
	return b.String()
}

// Job returns the last snapshot.
func (m *ProgressModel) Job() models.Job { return m.job }

// Err returns the error that ended the view, if any.
func (m *ProgressModel) Err() error { return m.err }

// RunProgress runs m as a full program and returns the job's final snapshot.
func RunProgress(ctx context.Context, m *ProgressModel, opts ...tea.ProgramOption) (models.Job, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return m.job, err
	}
	if pm, ok := final.(*ProgressModel); ok && pm.err != nil {
		return pm.job, pm.err
	}
	return m.job, nil
}
