package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates callers of the HTTP API.
// Raw keys are shown once at creation; only the bcrypt hash is stored.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

const (
	// ScopeGenerate allows starting and polling generation runs.
	ScopeGenerate = "generate"
	// ScopeAdmin allows managing API keys.
	ScopeAdmin = "admin"
)

// IsKnownScope reports whether s is a scope the server checks for.
func IsKnownScope(s string) bool {
	return s == ScopeGenerate || s == ScopeAdmin
}
