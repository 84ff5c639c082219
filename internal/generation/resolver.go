package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
)

// ArtifactReference points at the image produced by a completed task.
type ArtifactReference struct {
	MediaID string
	Variant string
	URL     string
}

// Resolver turns a completed task into a downloadable URL.
type Resolver struct {
	client pixai.Client
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger means slog.Default().
func NewResolver(client pixai.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// ResolveArtifact reads the task outputs for its media id, then picks the
// first media URL variant that carries a url.
func (r *Resolver) ResolveArtifact(ctx context.Context, taskID string) (ArtifactReference, error) {
	mediaID, err := r.mediaID(ctx, taskID)
	if err != nil {
		return ArtifactReference{}, err
	}

	var data mediaData
	if err := r.client.Query(ctx, mediaQuery, map[string]any{"id": mediaID}, &data); err != nil {
		return ArtifactReference{}, wrapCall(ErrResolveFailed, err)
	}
	if data.Media == nil {
		return ArtifactReference{}, fmt.Errorf("%w: media %s not found", ErrNoDownloadURL, mediaID)
	}

	for _, u := range data.Media.URLs {
		if u.URL == nil || strings.TrimSpace(*u.URL) == "" {
			continue
		}
		ref := ArtifactReference{MediaID: mediaID, Variant: u.Variant, URL: *u.URL}
		r.logger.Info("artifact resolved", "task_id", taskID, "media_id", mediaID, "variant", u.Variant)
		return ref, nil
	}
	return ArtifactReference{}, fmt.Errorf("%w: media %s has %d variants, none with a url",
		ErrNoDownloadURL, mediaID, len(data.Media.URLs))
}

func (r *Resolver) mediaID(ctx context.Context, taskID string) (string, error) {
	var data taskOutputsData
	if err := r.client.Query(ctx, taskOutputsQuery, map[string]any{"id": taskID}, &data); err != nil {
		return "", wrapCall(ErrResolveFailed, err)
	}
	if data.Task == nil || data.Task.Outputs == nil {
		return "", fmt.Errorf("%w: task %s has no outputs", ErrMissingOutput, taskID)
	}

	raw := data.Task.Outputs["mediaId"]
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if strings.TrimSpace(id) != "" {
			return id, nil
		}
	} else {
		// numeric ids keep their exact digits
		var num json.Number
		if err := json.Unmarshal(raw, &num); err == nil {
			return num.String(), nil
		}
	}
	return "", fmt.Errorf("%w: task %s outputs carry no mediaId", ErrMissingOutput, taskID)
}
