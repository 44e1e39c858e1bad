// Package jobs holds the in-memory table of download and import jobs.
//
// A [Registry] hands out opaque [ID] handles; callers never see the underlying records, only copies
// returned by [Registry.Get]. Every mutator is a no-op for unknown ids so a job evicted by
// [Registry.Sweep] cannot crash the goroutine still reporting into it.
//
// Each job owns a cancellable context derived from the one passed to [Registry.Create].
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
	"github.com/google/uuid"
)

// ID is an opaque job handle.
type ID string

func (id ID) String() string { return string(id) }

const (
	StartingMessage  = "Starting..."
	CompletedMessage = "Completed"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Percent *int
	Message *string
}

type entry struct {
	job    models.Job
	cancel context.CancelFunc
}

// Registry maps job ids to their current state.
type Registry struct {
	mu     sync.Mutex
	jobs   map[ID]*entry
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

// Option configures a [Registry].
type Option func(*Registry)

// WithTTL sets how long settled jobs are kept. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the registry logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{jobs: make(map[ID]*entry), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	r.logger = shared.WithLogger(r.logger, "component", "jobs")
	return r
}

// Create registers a running job and returns its id with a context cancelled by [Registry.Cancel].
func (r *Registry) Create(parent context.Context) (ID, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	id := ID(uuid.NewString())
	now := r.now()

	r.mu.Lock()
	r.jobs[id] = &entry{
		job: models.Job{
			Status:    models.JobRunning,
			Percent:   0,
			Message:   StartingMessage,
			Failed:    []models.Failure{},
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
	r.mu.Unlock()

	r.logger.Debug("job created", "job", id)
	return id, ctx
}

// Get returns a copy of the job.
func (r *Registry) Get(id ID) (models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, shared.ErrJobNotFound
	}

	job := e.job
	job.Failed = append([]models.Failure{}, e.job.Failed...)
	return job, nil
}

// Patch merges p into a running job.
func (r *Registry) Patch(id ID, p Patch) {
	r.update(id, func(j *models.Job) {
		if p.Percent != nil {
			j.Percent = clampPercent(*p.Percent)
		}
		if p.Message != nil {
			j.Message = *p.Message
		}
	})
}

// SetMessage replaces the job message.
func (r *Registry) SetMessage(id ID, msg string) {
	r.Patch(id, Patch{Message: &msg})
}

// SetPercent replaces the job percentage, clamped to 0..100.
func (r *Registry) SetPercent(id ID, percent int) {
	r.Patch(id, Patch{Percent: &percent})
}

// SetProgress replaces both percentage and message.
func (r *Registry) SetProgress(id ID, percent int, msg string) {
	r.Patch(id, Patch{Percent: &percent, Message: &msg})
}

// AddFailure appends a failed batch item.
func (r *Registry) AddFailure(id ID, f models.Failure) {
	r.update(id, func(j *models.Job) {
		j.Failed = append(j.Failed, f)
	})
}

// MarkDone settles the job as done at 100%.
func (r *Registry) MarkDone(id ID) {
	r.settle(id, func(j *models.Job) {
		j.Status = models.JobDone
		j.Percent = 100
		j.Message = CompletedMessage
	})
}

// MarkFailed settles the job as errored with message.
func (r *Registry) MarkFailed(id ID, message string) {
	r.settle(id, func(j *models.Job) {
		j.Status = models.JobError
		j.Message = message
	})
}

// Cancel cancels the job's context. The owning orchestrator settles the job.
func (r *Registry) Cancel(id ID) error {
	r.mu.Lock()
	e, ok := r.jobs[id]
	r.mu.Unlock()

	if !ok {
		return shared.ErrJobNotFound
	}
	e.cancel()
	return nil
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Sweep evicts jobs settled more than the TTL before now and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.jobs {
		if !e.job.Status.IsSettled() {
			continue
		}
		if now.Sub(e.job.SettledAt) >= r.ttl {
			e.cancel()
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.logger.Info("evicted settled jobs", "count", n)
			}
		}
	}
}

// update applies fn to a running job. Settled jobs are frozen.
func (r *Registry) update(id ID, fn func(*models.Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.job.Status.IsSettled() {
		return
	}
	fn(&e.job)
	e.job.UpdatedAt = r.now()
}

func (r *Registry) settle(id ID, fn func(*models.Job)) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok || e.job.Status.IsSettled() {
		r.mu.Unlock()
		return
	}
	fn(&e.job)
	now := r.now()
	e.job.UpdatedAt = now
	e.job.SettledAt = now
	job := e.job
	cancel := e.cancel
	r.mu.Unlock()

	cancel()
	r.logger.Debug("job settled", "job", id, "status", job.Status, "failed", len(job.Failed))
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}
