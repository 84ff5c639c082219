package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/pixgen/internal/api/response"
	"github.com/kiranshivaraju/pixgen/internal/runs"
	"github.com/kiranshivaraju/pixgen/internal/store"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// RunService defines what the generate handlers depend on.
type RunService interface {
	Trigger(ctx context.Context, prompt string, cfg models.GenerationConfig) (*models.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Run, error)
	List(ctx context.Context, filter store.RunFilter) ([]*models.Run, int, error)
}

var runStatuses = []string{
	models.RunStatusPending,
	models.RunStatusSubmitted,
	models.RunStatusRunning,
	models.RunStatusCompleted,
	models.RunStatusFailed,
	models.RunStatusCancelled,
	models.RunStatusAborted,
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/generate.
// Request parameters are layered over defaults.
func NewGenerateHandler(svc RunService, defaults models.GenerationConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt     string         `json:"prompt"`
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}

		cfg, problems := applyParameters(defaults, req.Parameters)
		if len(problems) > 0 {
			response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid parameters", problems)
			return
		}

		run, err := svc.Trigger(r.Context(), req.Prompt, cfg)
		if err != nil {
			if errors.Is(err, runs.ErrEmptyPrompt) {
				response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "prompt is required", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, response.CodeInternal,
				"Failed to start generation", nil)
			return
		}

		response.AcceptedAt(w, "/api/v1/generate/"+run.ID.String(), run)
	}
}

// NewGetRunHandler returns an http.HandlerFunc for GET /api/v1/generate/{runID}.
func NewGetRunHandler(svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "runID must be a UUID", nil)
			return
		}

		run, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, response.CodeNotFound, "Run not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, response.CodeInternal,
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, run)
	}
}

// NewListRunsHandler returns an http.HandlerFunc for GET /api/v1/generate.
func NewListRunsHandler(svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.RunFilter{Status: q.Get("status"), Page: 1, Limit: 20}

		if filter.Status != "" && !slices.Contains(runStatuses, filter.Status) {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest,
				fmt.Sprintf("unknown status %q", filter.Status), nil)
			return
		}
		if v := q.Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "page must be a positive integer", nil)
				return
			}
			filter.Page = n
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "limit must be between 1 and 100", nil)
				return
			}
			filter.Limit = n
		}

		items, total, err := svc.List(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, response.CodeInternal,
				"An unexpected error occurred", nil)
			return
		}
		if items == nil {
			items = []*models.Run{}
		}

		response.Collection(w, items, response.NewPaginationMeta(filter.Page, filter.Limit, total))
	}
}

// applyParameters layers request parameters over base. Problems are keyed by
// parameter name.
func applyParameters(base models.GenerationConfig, params map[string]any) (models.GenerationConfig, map[string][]string) {
	problems := map[string][]string{}
	var opts []models.GenerationOption

	for key, v := range params {
		var opt models.GenerationOption
		var ok bool
		switch key {
		case models.ParamNegativePrompt:
			var s string
			if s, ok = v.(string); ok {
				opt = models.WithNegativePrompt(s)
			}
		case models.ParamSampler:
			var s string
			if s, ok = v.(string); ok {
				opt = models.WithSampler(s)
			}
		case models.ParamModelID:
			var s string
			if s, ok = v.(string); ok {
				opt = models.WithModelID(s)
			}
		case models.ParamSamplingSteps:
			var n int
			if n, ok = positiveInt(v); ok {
				opt = models.WithSamplingSteps(n)
			}
		case models.ParamWidth:
			var n int
			if n, ok = positiveInt(v); ok {
				opt = models.WithWidth(n)
			}
		case models.ParamHeight:
			var n int
			if n, ok = positiveInt(v); ok {
				opt = models.WithHeight(n)
			}
		case models.ParamCfgScale:
			var f float64
			if f, ok = v.(float64); ok {
				opt = models.WithCfgScale(f)
			}
		case models.ParamUpscale:
			var f float64
			if f, ok = v.(float64); ok {
				opt = models.WithUpscale(f)
			}
		case models.ParamEnableTile:
			var b bool
			if b, ok = v.(bool); ok {
				opt = models.WithEnableTile(b)
			}
		default:
			problems[key] = append(problems[key], "unknown parameter")
			continue
		}
		if !ok {
			problems[key] = append(problems[key], "invalid value")
			continue
		}
		opts = append(opts, opt)
	}

	if len(problems) > 0 {
		return base, problems
	}
	return base.With(opts...), nil
}

// positiveInt accepts JSON numbers that hold a whole value above zero.
func positiveInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
