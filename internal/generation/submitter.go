// Package generation runs the lifecycle of one image-generation task:
// submit, poll until terminal, resolve the produced media and download it.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// Submitter creates generation tasks.
type Submitter struct {
	client pixai.Client
	logger *slog.Logger
}

// NewSubmitter creates a Submitter. A nil logger means slog.Default().
func NewSubmitter(client pixai.Client, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{client: client, logger: logger}
}

// Submit sends cfg plus prompt as a new task and returns the task id.
// cfg is read, never modified.
func (s *Submitter) Submit(ctx context.Context, cfg models.GenerationConfig, prompt string) (string, error) {
	vars := map[string]any{"parameters": cfg.Parameters(prompt)}

	var data createTaskData
	if err := s.client.Query(ctx, createTaskQuery, vars, &data); err != nil {
		return "", wrapCall(ErrSubmissionFailed, err)
	}
	if data.CreateGenerationTask == nil || strings.TrimSpace(data.CreateGenerationTask.ID) == "" {
		return "", fmt.Errorf("%w: %w: createGenerationTask.id missing", ErrSubmissionFailed, ErrMalformedResponse)
	}

	id := data.CreateGenerationTask.ID
	s.logger.Info("generation task submitted", "task_id", id, "options", cfg.Len())
	return id, nil
}
