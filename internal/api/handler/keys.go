package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/pixgen/internal/api/middleware"
	"github.com/kiranshivaraju/pixgen/internal/api/response"
	"github.com/kiranshivaraju/pixgen/internal/store"
	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// KeyStore is the subset of store.Store the key handlers use.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

type createdKey struct {
	*models.APIKey
	Key string `json:"key"`
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears in this response only.
func NewCreateKeyHandler(ks KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "name is required", nil)
			return
		}
		scopes := req.Scopes
		if len(scopes) == 0 {
			scopes = []string{models.ScopeGenerate}
		}
		for _, s := range scopes {
			if !models.IsKnownScope(s) {
				response.Error(w, http.StatusBadRequest, response.CodeValidation, "Invalid scopes",
					map[string][]string{"scopes": {"unknown scope " + s}})
				return
			}
		}

		raw, key, err := mw.IssueKey(name, scopes)
		if err != nil {
			slog.Error("issue api key", "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to create key", nil)
			return
		}
		if err := ks.CreateAPIKey(r.Context(), key); err != nil {
			slog.Error("store api key", "error", err)
			response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to create key", nil)
			return
		}

		response.Created(w, createdKey{APIKey: key, Key: raw})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(ks KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := ks.ListAPIKeys(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, response.CodeInternal,
				"An unexpected error occurred", nil)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(ks KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "keyID must be a UUID", nil)
			return
		}

		if self, ok := mw.GetAPIKeyID(r); ok && self == id {
			response.Error(w, http.StatusConflict, response.CodeConflict, "A key cannot revoke itself", nil)
			return
		}

		if err := ks.RevokeAPIKey(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, response.CodeNotFound, "Key not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, response.CodeInternal,
				"An unexpected error occurred", nil)
			return
		}

		response.NoContent(w)
	}
}
