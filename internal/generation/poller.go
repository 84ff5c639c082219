package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// DefaultPollInterval is the wait between two status queries.
const DefaultPollInterval = 5 * time.Second

// SleepFunc waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when interrupted.
type SleepFunc func(ctx context.Context, d time.Duration) error

// StatusObserver is told every status the poller sees, in order.
type StatusObserver func(ctx context.Context, taskID string, status models.JobStatus)

// PollOptions bounds and instruments the polling loop. The zero value polls
// every DefaultPollInterval with no limit.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int           // 0 means unlimited
	Timeout     time.Duration // 0 means unlimited
	Sleep       SleepFunc
	Observer    StatusObserver
}

// Poller waits for a task to reach a terminal status.
type Poller struct {
	client pixai.Client
	opts   PollOptions
	logger *slog.Logger
}

// NewPoller creates a Poller. A nil logger means slog.Default().
func NewPoller(client pixai.Client, opts PollOptions, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{client: client, opts: opts, logger: logger}
}

// AwaitTerminal queries the task status until it is completed, failed or
// cancelled. It only ever returns a terminal status with a nil error.
//
// A failed query ends the loop with ErrPollingFailed. Cancellation of ctx ends
// it with ErrOperationCancelled; exceeding MaxAttempts or Timeout ends it with
// ErrTimedOut.
func (p *Poller) AwaitTerminal(ctx context.Context, taskID string) (models.JobStatus, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.opts.Timeout, ErrTimedOut)
		defer cancel()
	}

	vars := map[string]any{"id": taskID}
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return "", p.interrupted(ctx, taskID)
		}

		var data taskStatusData
		if err := p.client.Query(ctx, taskStatusQuery, vars, &data); err != nil {
			if ctx.Err() != nil {
				return "", p.interrupted(ctx, taskID)
			}
			return "", wrapCall(ErrPollingFailed, err)
		}
		if data.Task == nil {
			return "", fmt.Errorf("%w: %w: task %s not returned", ErrPollingFailed, ErrMalformedResponse, taskID)
		}
		status, ok := models.ParseJobStatus(data.Task.Status)
		if !ok {
			return "", fmt.Errorf("%w: %w: task %s has no status", ErrPollingFailed, ErrMalformedResponse, taskID)
		}

		p.logger.Debug("task status", "task_id", taskID, "status", status, "attempt", attempt)
		if p.opts.Observer != nil {
			p.opts.Observer(ctx, taskID, status)
		}
		if status.IsTerminal() {
			p.logger.Info("task reached terminal status", "task_id", taskID, "status", status, "attempts", attempt)
			return status, nil
		}

		if p.opts.MaxAttempts > 0 && attempt >= p.opts.MaxAttempts {
			return "", fmt.Errorf("%w: task %s still %s after %d attempts", ErrTimedOut, taskID, status, attempt)
		}

		if err := p.opts.Sleep(ctx, p.opts.Interval); err != nil {
			return "", p.interrupted(ctx, taskID)
		}
	}
}

// interrupted builds the error for a loop stopped by ctx.
func (p *Poller) interrupted(ctx context.Context, taskID string) error {
	if errors.Is(context.Cause(ctx), ErrTimedOut) {
		p.logger.Warn("polling timed out", "task_id", taskID, "timeout", p.opts.Timeout)
		return fmt.Errorf("%w: task %s after %s", ErrTimedOut, taskID, p.opts.Timeout)
	}
	p.logger.Warn("polling cancelled", "task_id", taskID)
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrOperationCancelled, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
