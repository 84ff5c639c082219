package generation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

var tracer = otel.Tracer("pixgen-generation")

// Mirror copies a saved artifact somewhere else and returns where it went.
type Mirror interface {
	Mirror(ctx context.Context, path string) (string, error)
}

// Options configures a Runner.
type Options struct {
	Config      models.GenerationConfig
	OutputDir   string
	ServiceName string
	Poll        PollOptions
	Mirror      Mirror // optional
}

// Result is what one run produced. Fields are filled as far as the run got,
// so a failed run still reports its task id and last status.
type Result struct {
	TaskID   string
	Status   models.JobStatus
	Artifact *ArtifactReference
	Path     string
	Mirrored string
}

// Runner sequences submit, poll, resolve and fetch for one prompt.
// A Runner is safe for concurrent use; runs share nothing but the client.
type Runner struct {
	client pixai.Client
	opts   Options
	logger *slog.Logger

	submitter *Submitter
	poller    *Poller
	resolver  *Resolver
	fetcher   *Fetcher
}

// NewRunner wires the steps of a run around client.
func NewRunner(client pixai.Client, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Runner{
		client:    client,
		opts:      opts,
		logger:    logger,
		submitter: NewSubmitter(client, logger),
		poller:    NewPoller(client, opts.Poll, logger),
		resolver:  NewResolver(client, logger),
		fetcher:   NewFetcher(client, opts.ServiceName, logger),
	}
}

// WithConfig returns a Runner that submits cfg instead. r is unchanged.
func (r *Runner) WithConfig(cfg models.GenerationConfig) *Runner {
	return r.with(func(o *Options) { o.Config = cfg })
}

// WithObserver returns a Runner whose poller reports each status to obs.
func (r *Runner) WithObserver(obs StatusObserver) *Runner {
	return r.with(func(o *Options) { o.Poll.Observer = obs })
}

// WithOutputDir returns a Runner that writes into dir.
func (r *Runner) WithOutputDir(dir string) *Runner {
	return r.with(func(o *Options) { o.OutputDir = dir })
}

func (r *Runner) with(mut func(*Options)) *Runner {
	opts := r.opts
	mut(&opts)
	next := NewRunner(r.client, opts, r.logger)
	next.fetcher.now = r.fetcher.now
	return next
}

// Config returns the configuration submitted by Run.
func (r *Runner) Config() models.GenerationConfig {
	return r.opts.Config
}

// Run submits prompt, waits for the task to finish and, when it completed,
// downloads the artifact. A failed or cancelled task is not an error: Run
// returns that status with a nil error and touches nothing on disk.
func (r *Runner) Run(ctx context.Context, prompt string) (Result, error) {
	ctx, span := tracer.Start(ctx, "generation.Run")
	defer span.End()

	res, err := r.run(ctx, prompt)
	span.SetAttributes(
		attribute.String("pixai.task_id", res.TaskID),
		attribute.String("pixai.status", string(res.Status)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, prompt string) (Result, error) {
	var res Result

	taskID, err := r.submitter.Submit(ctx, r.opts.Config, prompt)
	if err != nil {
		return res, err
	}
	res.TaskID = taskID
	res.Status = models.JobStatusSubmitted

	status, err := r.poller.AwaitTerminal(ctx, taskID)
	if err != nil {
		return res, err
	}
	res.Status = status

	if status != models.JobStatusCompleted {
		r.logger.Warn("task ended without output", "task_id", taskID, "status", status)
		return res, nil
	}

	ref, err := r.resolver.ResolveArtifact(ctx, taskID)
	if err != nil {
		return res, fmt.Errorf("task %s: %w", taskID, err)
	}
	res.Artifact = &ref

	path, err := r.fetcher.Fetch(ctx, ref.URL, r.opts.OutputDir)
	if err != nil {
		return res, fmt.Errorf("task %s: %w", taskID, err)
	}
	res.Path = path

	if r.opts.Mirror != nil {
		location, err := r.opts.Mirror.Mirror(ctx, path)
		if err != nil {
			return res, fmt.Errorf("task %s: %w: %w", taskID, ErrMirrorFailed, err)
		}
		res.Mirrored = location
	}

	r.logger.Info("run finished", "task_id", taskID, "status", status, "path", path)
	return res, nil
}
