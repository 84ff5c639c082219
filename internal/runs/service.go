// Package runs executes generation runs in the background and records their
// progress in Postgres and Redis.
package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pixgen/internal/cache"
	"github.com/kiranshivaraju/pixgen/internal/generation"
	"github.com/kiranshivaraju/pixgen/internal/store"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

const (
	statusTTL   = 30 * time.Minute
	snapshotTTL = 24 * time.Hour
)

var ErrEmptyPrompt = errors.New("prompt is required")

// Service starts runs and answers status lookups.
type Service struct {
	runner *generation.Runner
	store  store.Store
	cache  cache.Cache
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. Runs use runner's output directory and
// polling options with the config passed to Trigger.
func NewService(runner *generation.Runner, st store.Store, ca cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{runner: runner, store: st, cache: ca, logger: logger, ctx: ctx, cancel: cancel}
}

// Trigger records a pending run and executes it in a background goroutine.
// Returns the run immediately without waiting for the generation to finish.
func (s *Service) Trigger(ctx context.Context, prompt string, cfg models.GenerationConfig) (*models.Run, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	now := time.Now().UTC()
	run := &models.Run{
		ID:         uuid.New(),
		Prompt:     prompt,
		Parameters: cfg.Map(),
		Status:     models.RunStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	s.setStatus(ctx, run.ID, models.RunStatusPending)

	s.wg.Add(1)
	go s.execute(run.ID, prompt, cfg)

	return run, nil
}

// Get returns a run. Finished runs come from the cached snapshot when present;
// in-flight runs carry the latest status seen by the poller.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	if run, found, err := s.cache.GetRun(ctx, id); err == nil && found {
		return run, nil
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !run.IsFinal() {
		if status, found, err := s.cache.GetRunStatus(ctx, id); err == nil && found {
			run.Status = status
		}
	}
	return run, nil
}

// List returns runs newest first.
func (s *Service) List(ctx context.Context, filter store.RunFilter) ([]*models.Run, int, error) {
	return s.store.ListRuns(ctx, filter)
}

// Shutdown cancels in-flight runs and waits for them to record their outcome,
// or until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute performs one run in a goroutine.
// It recovers from panics and always moves the run to a final status.
func (s *Service) execute(runID uuid.UUID, prompt string, cfg models.GenerationConfig) {
	defer s.wg.Done()
	ctx := s.ctx
	// bookkeeping must still land after a shutdown cancelled the run
	bg := context.WithoutCancel(ctx)
	tracker := &progress{svc: s, runID: runID, last: models.RunStatusPending}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in run", "error", r, "run_id", runID)
			tracker.finish(bg, models.RunStatusAborted, store.WithErrorMessage(fmt.Sprintf("panic: %v", r)))
		}
	}()

	runner := s.runner.WithConfig(cfg).WithObserver(tracker.observe)
	res, err := runner.Run(ctx, prompt)

	var opts []store.RunUpdateOption
	if res.TaskID != "" {
		tracker.submitted(bg, res.TaskID)
	}
	if err != nil {
		s.logger.Warn("run aborted", "run_id", runID, "task_id", res.TaskID, "error", err)
		if res.Artifact != nil {
			opts = append(opts, store.WithArtifact(res.Artifact.MediaID, res.Artifact.URL))
		}
		if res.Path != "" {
			opts = append(opts, store.WithFilePath(res.Path))
		}
		opts = append(opts, store.WithErrorMessage(err.Error()))
		tracker.finish(bg, models.RunStatusAborted, opts...)
		return
	}

	if res.Artifact != nil {
		opts = append(opts, store.WithArtifact(res.Artifact.MediaID, res.Artifact.URL))
	}
	if res.Path != "" {
		opts = append(opts, store.WithFilePath(res.Path))
	}
	tracker.finish(bg, string(res.Status), opts...)
}

// progress moves one run through the store's status transitions as the
// poller reports task statuses.
type progress struct {
	svc   *Service
	runID uuid.UUID
	mu    sync.Mutex
	last  string
}

func (p *progress) observe(ctx context.Context, taskID string, status models.JobStatus) {
	ctx = context.WithoutCancel(ctx)
	p.submitted(ctx, taskID)
	if status == models.JobStatusSubmitted || status.IsTerminal() {
		return
	}
	p.running(ctx)
}

// submitted records the task id the first time it is known.
func (p *progress) submitted(ctx context.Context, taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != models.RunStatusPending {
		return
	}
	if err := p.svc.store.UpdateRunStatus(ctx, p.runID, models.RunStatusSubmitted, store.WithTaskID(taskID)); err != nil {
		p.svc.logger.Warn("recording submitted run", "run_id", p.runID, "error", err)
		return
	}
	p.last = models.RunStatusSubmitted
	p.svc.setStatus(ctx, p.runID, models.RunStatusSubmitted)
}

// running is recorded once; any non-terminal task status past submitted counts.
func (p *progress) running(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != models.RunStatusSubmitted {
		return
	}
	if err := p.svc.store.UpdateRunStatus(ctx, p.runID, models.RunStatusRunning); err != nil {
		p.svc.logger.Warn("recording running run", "run_id", p.runID, "error", err)
		return
	}
	p.last = models.RunStatusRunning
	p.svc.setStatus(ctx, p.runID, models.RunStatusRunning)
}

func (p *progress) finish(ctx context.Context, status string, opts ...store.RunUpdateOption) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.svc.store.UpdateRunStatus(ctx, p.runID, status, opts...); err != nil {
		p.svc.logger.Error("recording final run status", "run_id", p.runID, "status", status, "error", err)
		p.svc.setStatus(ctx, p.runID, status)
		return
	}
	p.last = status
	p.svc.snapshot(ctx, p.runID)
}

func (s *Service) setStatus(ctx context.Context, runID uuid.UUID, status string) {
	if err := s.cache.SetRunStatus(ctx, runID, status, statusTTL); err != nil {
		s.logger.Warn("caching run status", "run_id", runID, "error", err)
	}
}

// snapshot caches the final run record and drops the live status key.
func (s *Service) snapshot(ctx context.Context, runID uuid.UUID) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		s.logger.Warn("loading finished run", "run_id", runID, "error", err)
		return
	}
	if err := s.cache.PutRun(ctx, run, snapshotTTL); err != nil {
		s.logger.Warn("caching run snapshot", "run_id", runID, "error", err)
		return
	}
	if err := s.cache.ClearRunStatus(ctx, runID); err != nil {
		s.logger.Debug("clearing run status", "run_id", runID, "error", err)
	}
}
