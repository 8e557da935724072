package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aagt-run/aagtcore/internal/coldstore"
	"github.com/aagt-run/aagtcore/internal/coordinator"
)

// defaultSummarizeRoles is the preference order tried when a
// SummarizeDoc job dispatches: the first registered role wins.
var defaultSummarizeRoles = []string{"assistant", "researcher"}

const summarizePromptTemplate = "Summarize the following document in a few sentences, capturing its key points:\n\n%s"

// CoordinatorResolver is a weak-reference-style accessor to the running
// coordinator: the scheduler does not own the coordinator's lifetime,
// so it asks for it at dispatch time and skips the fire if it is gone.
type CoordinatorResolver func() (*coordinator.Coordinator, bool)

// Scheduler fires independent Jobs against their Schedule. Jobs give no
// cross-job ordering guarantee; removing a job stops future fires but
// lets an in-flight invocation run to completion.
type Scheduler struct {
	logger       *slog.Logger
	coldstore    *coldstore.Store
	resolveCoord CoordinatorResolver
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	jobs    map[string]*Job
	started bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger configures the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithColdStore wires the document store SummarizeDoc jobs write to.
func WithColdStore(store *coldstore.Store) Option {
	return func(s *Scheduler) {
		if store != nil {
			s.coldstore = store
		}
	}
}

// WithCoordinatorResolver wires the weak-reference accessor used to
// dispatch AgentTurn and SummarizeDoc jobs.
func WithCoordinatorResolver(resolve CoordinatorResolver) Option {
	return func(s *Scheduler) {
		if resolve != nil {
			s.resolveCoord = resolve
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTickInterval overrides the driver tick interval, for tests.
func WithTickInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.tickInterval = interval
		}
	}
}

// New builds an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:       slog.Default().With("component", "scheduler"),
		now:          time.Now,
		tickInterval: time.Second,
		jobs:         make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob schedules payload according to sched and returns the new job's
// id.
func (s *Scheduler) AddJob(name string, sched Schedule, payload Payload) (string, error) {
	next, ok, err := sched.Next(s.now())
	if err != nil {
		return "", fmt.Errorf("scheduler: add job: %w", err)
	}

	job := &Job{
		ID:       uuid.NewString(),
		Name:     name,
		Schedule: sched,
		Payload:  payload,
	}
	if ok {
		job.nextRun = next
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job.ID, nil
}

// ListJobs returns a snapshot of all known jobs, in no particular order.
func (s *Scheduler) ListJobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		copyJob := *job
		out = append(out, &copyJob)
	}
	return out
}

// RemoveJob cancels a job's future fires. An invocation already running
// when RemoveJob is called completes normally.
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.cancelled = true
	delete(s.jobs, id)
	return true
}

// Run starts the driver loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// RunOnce executes any due jobs immediately, returning how many fired.
// Primarily for tests and manual "run" invocations. Firing is
// asynchronous; call Wait to block until in-flight invocations finish.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	return s.runDue(ctx)
}

// Wait blocks until every in-flight job invocation has completed.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runDue(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	due := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.cancelled || job.nextRun.IsZero() {
			continue
		}
		if !now.Before(job.nextRun) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.wg.Add(1)
		go func(j *Job) {
			defer s.wg.Done()
			s.fire(ctx, j, now)
		}(job)
	}
	return len(due)
}

func (s *Scheduler) fire(ctx context.Context, job *Job, now time.Time) {
	if err := s.dispatch(ctx, job); err != nil {
		s.logger.Warn("scheduled job failed", "job", job.Name, "id", job.ID, "error", err)
	}

	next, ok, err := job.Schedule.Next(now)
	if job.Schedule.Kind == ScheduleAt {
		// An at-schedule fires once and is never re-armed.
		ok = false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, stillKnown := s.jobs[job.ID]
	if !stillKnown || current.cancelled {
		return
	}
	if err != nil || !ok {
		current.nextRun = time.Time{}
		return
	}
	current.nextRun = next
}

func (s *Scheduler) dispatch(ctx context.Context, job *Job) error {
	switch job.Payload.Kind {
	case PayloadAgentTurn:
		return s.dispatchAgentTurn(ctx, job.Payload.AgentTurn)
	case PayloadSummarizeDoc:
		return s.dispatchSummarizeDoc(ctx, job.Payload.SummarizeDoc)
	default:
		return fmt.Errorf("scheduler: unknown payload kind %q", job.Payload.Kind)
	}
}

func (s *Scheduler) dispatchAgentTurn(ctx context.Context, payload AgentTurnPayload) error {
	coord, ok := s.resolveCoordinator()
	if !ok {
		s.logger.Info("scheduler: coordinator unavailable, skipping agent turn", "role", payload.Role)
		return nil
	}
	agent, ok := coord.Get(payload.Role)
	if !ok {
		return fmt.Errorf("scheduler: role %q not registered", payload.Role)
	}
	_, err := agent.Process(ctx, coordinator.Message{
		From:    "scheduler",
		To:      payload.Role,
		Type:    coordinator.MsgRequest,
		Content: payload.Prompt,
	})
	return err
}

func (s *Scheduler) dispatchSummarizeDoc(ctx context.Context, payload SummarizeDocPayload) error {
	coord, ok := s.resolveCoordinator()
	if !ok {
		s.logger.Info("scheduler: coordinator unavailable, skipping summarize job", "path", payload.Path)
		return nil
	}

	var agent coordinator.Agent
	for _, role := range defaultSummarizeRoles {
		if a, ok := coord.Get(role); ok {
			agent = a
			break
		}
	}
	if agent == nil {
		return fmt.Errorf("scheduler: no summarizer role registered (tried %s)", strings.Join(defaultSummarizeRoles, ", "))
	}

	resp, err := agent.Process(ctx, coordinator.Message{
		From:    "scheduler",
		To:      agent.Role(),
		Type:    coordinator.MsgRequest,
		Content: fmt.Sprintf(summarizePromptTemplate, payload.Content),
	})
	if err != nil {
		return err
	}
	if resp.Type == coordinator.MsgDenial {
		return fmt.Errorf("scheduler: summarize request denied: %s", resp.Content)
	}

	if s.coldstore == nil {
		return fmt.Errorf("scheduler: no cold store configured to persist summary")
	}
	return s.coldstore.UpdateSummary(ctx, payload.Collection, payload.Path, resp.Content)
}

func (s *Scheduler) resolveCoordinator() (*coordinator.Coordinator, bool) {
	if s.resolveCoord == nil {
		return nil, false
	}
	return s.resolveCoord()
}
