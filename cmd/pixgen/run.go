package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kiranshivaraju/pixgen/internal/config"
	"github.com/kiranshivaraju/pixgen/internal/generation"
	"github.com/kiranshivaraju/pixgen/internal/pixai"
	"github.com/kiranshivaraju/pixgen/internal/storage"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

type runFlags struct {
	outputDir    string
	endpoint     string
	pollInterval time.Duration
	pollTimeout  time.Duration
	maxAttempts  int

	negativePrompt string
	steps          int
	cfgScale       float64
	upscale        float64
	width          int
	height         int
	sampler        string
	modelID        string
	enableTile     bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run PROMPT...",
		Short: "Generate one picture and save it",
		Long: `Submits the prompt, polls the task every poll interval until it completes,
fails or is cancelled, and downloads the picture when it completed.
Interrupting with Ctrl-C aborts the wait.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			return runGeneration(cmd, cfg, strings.Join(args, " "))
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.outputDir, "output-dir", "o", ".", "Directory the picture is saved to (PIXAI_OUTPUT_DIR)")
	fs.StringVar(&f.endpoint, "endpoint", pixai.DefaultEndpoint, "GraphQL endpoint (PIXAI_ENDPOINT)")
	fs.DurationVar(&f.pollInterval, "poll-interval", generation.DefaultPollInterval, "Wait between status checks (PIXAI_POLL_INTERVAL)")
	fs.DurationVar(&f.pollTimeout, "poll-timeout", 0, "Give up waiting after this long, 0 = never (PIXAI_POLL_TIMEOUT)")
	fs.IntVar(&f.maxAttempts, "max-attempts", 0, "Give up after this many status checks, 0 = never (PIXAI_POLL_MAX_ATTEMPTS)")

	fs.StringVar(&f.negativePrompt, "negative-prompt", "", "What the picture should not contain")
	fs.IntVar(&f.steps, "steps", 0, "Sampling steps")
	fs.Float64Var(&f.cfgScale, "cfg-scale", 0, "Prompt guidance scale")
	fs.Float64Var(&f.upscale, "upscale", 0, "Upscale factor")
	fs.IntVar(&f.width, "width", 0, "Width in pixels")
	fs.IntVar(&f.height, "height", 0, "Height in pixels")
	fs.StringVar(&f.sampler, "sampler", "", "Sampler name, e.g. \"Euler a\"")
	fs.StringVar(&f.modelID, "model-id", "", "Model id")
	fs.BoolVar(&f.enableTile, "enable-tile", false, "Generate a tileable picture")

	return cmd
}

// apply overrides cfg with every flag given on the command line. Generation
// options that were never set stay out of the request.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if fs.Changed("endpoint") {
		cfg.PixAI.Endpoint = f.endpoint
	}
	if fs.Changed("poll-interval") {
		if f.pollInterval <= 0 {
			return fmt.Errorf("--poll-interval must be positive, got %s", f.pollInterval)
		}
		cfg.Poll.Interval = f.pollInterval
	}
	if fs.Changed("poll-timeout") {
		if f.pollTimeout < 0 {
			return fmt.Errorf("--poll-timeout must not be negative, got %s", f.pollTimeout)
		}
		cfg.Poll.Timeout = f.pollTimeout
	}
	if fs.Changed("max-attempts") {
		if f.maxAttempts < 0 {
			return fmt.Errorf("--max-attempts must not be negative, got %d", f.maxAttempts)
		}
		cfg.Poll.MaxAttempts = f.maxAttempts
	}

	var opts []models.GenerationOption
	if fs.Changed("negative-prompt") {
		opts = append(opts, models.WithNegativePrompt(f.negativePrompt))
	}
	if fs.Changed("steps") {
		opts = append(opts, models.WithSamplingSteps(f.steps))
	}
	if fs.Changed("cfg-scale") {
		opts = append(opts, models.WithCfgScale(f.cfgScale))
	}
	if fs.Changed("upscale") {
		opts = append(opts, models.WithUpscale(f.upscale))
	}
	if fs.Changed("width") {
		opts = append(opts, models.WithWidth(f.width))
	}
	if fs.Changed("height") {
		opts = append(opts, models.WithHeight(f.height))
	}
	if fs.Changed("sampler") {
		opts = append(opts, models.WithSampler(f.sampler))
	}
	if fs.Changed("model-id") {
		opts = append(opts, models.WithModelID(f.modelID))
	}
	if fs.Changed("enable-tile") {
		opts = append(opts, models.WithEnableTile(f.enableTile))
	}
	cfg.Generation = cfg.Generation.With(opts...)
	return nil
}

func runGeneration(cmd *cobra.Command, cfg *config.Config, prompt string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := generation.OptionsFromConfig(cfg)
	if cfg.Minio.Enabled() {
		mirror, err := storage.NewMinioMirror(cfg.Minio)
		if err != nil {
			return err
		}
		opts.Mirror = mirror
	}
	client := pixai.NewHTTPClient(pixai.Options{
		Endpoint: cfg.PixAI.Endpoint,
		APIKey:   cfg.PixAI.APIKey,
		Timeout:  cfg.PixAI.HTTPTimeout,
	})
	runner := generation.NewRunner(client, opts, slog.Default())

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Start Generation...")

	res, err := runner.Run(ctx, prompt)
	if res.Status.IsTerminal() {
		fmt.Fprintf(out, "Task status: %s\n", res.Status)
	}
	if err != nil {
		return err
	}
	if res.Status != models.JobStatusCompleted {
		return fmt.Errorf("task %s ended with status %s", res.TaskID, res.Status)
	}

	fmt.Fprintf(out, "Image downloaded: %s\n", res.Path)
	if res.Mirrored != "" {
		fmt.Fprintf(out, "Mirrored to: %s\n", res.Mirrored)
	}
	return nil
}
