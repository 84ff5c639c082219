package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKnownScope(t *testing.T) {
	assert.True(t, IsKnownScope(ScopeGenerate))
	assert.True(t, IsKnownScope(ScopeAdmin))
	assert.False(t, IsKnownScope("read"))
	assert.False(t, IsKnownScope(""))
}

func TestAPIKey_HashNeverSerialized(t *testing.T) {
	raw, err := json.Marshal(APIKey{ID: uuid.New(), KeyHash: "$2a$10$secret", KeyPrefix: "pg_abcde"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.Contains(t, string(raw), "pg_abcde")
}
