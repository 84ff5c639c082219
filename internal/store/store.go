package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid run status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.Run, int, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error
}

type RunFilter struct {
	Status string
	Page   int
	Limit  int
}

// RunUpdate holds the optional columns written alongside a status change.
type RunUpdate struct {
	TaskID       *string
	MediaID      *string
	ArtifactURL  *string
	FilePath     *string
	ErrorMessage *string
}

type RunUpdateOption func(*RunUpdate)

// NewRunUpdate applies opts to an empty RunUpdate.
func NewRunUpdate(opts ...RunUpdateOption) RunUpdate {
	var u RunUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

func WithTaskID(id string) RunUpdateOption {
	return func(p *RunUpdate) {
		p.TaskID = &id
	}
}

func WithArtifact(mediaID, url string) RunUpdateOption {
	return func(p *RunUpdate) {
		p.MediaID = &mediaID
		p.ArtifactURL = &url
	}
}

func WithFilePath(path string) RunUpdateOption {
	return func(p *RunUpdate) {
		p.FilePath = &path
	}
}

func WithErrorMessage(msg string) RunUpdateOption {
	return func(p *RunUpdate) {
		p.ErrorMessage = &msg
	}
}
