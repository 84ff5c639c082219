package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pixgen/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// RawKeyPrefix starts every raw key so they are recognisable in configs and logs.
const RawKeyPrefix = "pg_"

// IssueKey generates a new API key. The raw key is returned once and never
// stored; the returned record carries only its bcrypt hash and lookup prefix.
func IssueKey(name string, scopes []string) (string, *models.APIKey, error) {
	raw := RawKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}

	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:KeyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
