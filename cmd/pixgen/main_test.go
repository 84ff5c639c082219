package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/pixgen/internal/generation"
	"github.com/kiranshivaraju/pixgen/internal/pixai"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

// fakePixAI answers the four GraphQL operations and serves the picture.
type fakePixAI struct {
	t        *testing.T
	srv      *httptest.Server
	statuses []string

	mu         sync.Mutex
	statusHits int
	submitted  map[string]any
}

func newFakePixAI(t *testing.T, statuses ...string) *fakePixAI {
	f := &fakePixAI{t: t, statuses: statuses}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePixAI) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Method == http.MethodGet {
		w.Write(pngBytes)
		return
	}

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	defer f.mu.Unlock()

	var data any
	switch pixai.OperationName(req.Query) {
	case generation.OpCreateTask:
		f.submitted, _ = req.Variables["parameters"].(map[string]any)
		data = map[string]any{"createGenerationTask": map[string]any{"id": "T1"}}
	case generation.OpTaskStatus:
		i := min(f.statusHits, len(f.statuses)-1)
		f.statusHits++
		data = map[string]any{"task": map[string]any{"id": "T1", "status": f.statuses[i]}}
	case generation.OpTaskOutputs:
		data = map[string]any{"task": map[string]any{"outputs": map[string]any{"mediaId": "M1"}}}
	case generation.OpMedia:
		data = map[string]any{"media": map[string]any{"urls": []any{
			map[string]any{"variant": "PUBLIC", "url": f.srv.URL + "/img/M1.png"},
		}}}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func cliEnv(t *testing.T, endpoint string) {
	t.Helper()
	t.Setenv("PIXAI_API_KEY", "test-token")
	t.Setenv("PIXAI_ENDPOINT", endpoint)
	t.Setenv("PIXAI_OUTPUT_DIR", "")
	t.Setenv("PIXAI_POLL_INTERVAL", "")
	t.Setenv("PIXAI_WIDTH", "")
	t.Setenv("MINIO_ENDPOINT", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_Completed(t *testing.T) {
	fake := newFakePixAI(t, "waiting", "running", "completed")
	cliEnv(t, fake.srv.URL)
	dir := t.TempDir()

	out, err := execute(t, "run", "-o", dir, "--poll-interval", "1ms",
		"--width", "640", "--sampler", "Euler a", "--enable-tile", "a", "cat")
	require.NoError(t, err)

	assert.Contains(t, out, "Start Generation...")
	assert.Contains(t, out, "Task status: completed")
	assert.Contains(t, out, "Image downloaded: "+dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "picture_PixAI_"))
	got, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	assert.Equal(t, "a cat", fake.submitted["prompts"])
	assert.Equal(t, float64(640), fake.submitted["width"])
	assert.Equal(t, "Euler a", fake.submitted["sampler"])
	assert.Equal(t, true, fake.submitted["enableTile"])
	assert.NotContains(t, fake.submitted, "height")
	assert.Equal(t, 3, fake.statusHits)
}

func TestRun_EnvDefaultsApplyUnlessOverridden(t *testing.T) {
	fake := newFakePixAI(t, "completed")
	cliEnv(t, fake.srv.URL)
	t.Setenv("PIXAI_WIDTH", "512")
	t.Setenv("PIXAI_OUTPUT_DIR", t.TempDir())

	_, err := execute(t, "run", "--poll-interval", "1ms", "a cat")
	require.NoError(t, err)
	assert.Equal(t, float64(512), fake.submitted["width"])

	_, err = execute(t, "run", "--poll-interval", "1ms", "--width", "1024", "a cat")
	require.NoError(t, err)
	assert.Equal(t, float64(1024), fake.submitted["width"])
}

func TestRun_FailedTaskExitsNonZeroWithoutFile(t *testing.T) {
	fake := newFakePixAI(t, "running", "failed")
	cliEnv(t, fake.srv.URL)
	dir := t.TempDir()

	out, err := execute(t, "run", "-o", dir, "--poll-interval", "1ms", "a cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, out, "Task status: failed")
	assert.NotContains(t, out, "Image downloaded")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_MaxAttempts(t *testing.T) {
	fake := newFakePixAI(t, "running")
	cliEnv(t, fake.srv.URL)

	_, err := execute(t, "run", "-o", t.TempDir(), "--poll-interval", "1ms", "--max-attempts", "3", "a cat")
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrTimedOut)
	assert.Equal(t, 3, fake.statusHits)
}

func TestRun_MissingAPIKey(t *testing.T) {
	cliEnv(t, "http://127.0.0.1:1")
	t.Setenv("PIXAI_API_KEY", "")

	_, err := execute(t, "run", "a cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIXAI_API_KEY")
}

func TestRun_RequiresPrompt(t *testing.T) {
	cliEnv(t, "http://127.0.0.1:1")

	_, err := execute(t, "run")
	require.Error(t, err)
}

func TestRun_InvalidPollInterval(t *testing.T) {
	cliEnv(t, "http://127.0.0.1:1")

	_, err := execute(t, "run", "--poll-interval", "0s", "a cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--poll-interval")
}

func TestRun_UnreachableEndpoint(t *testing.T) {
	cliEnv(t, "http://127.0.0.1:1")

	out, err := execute(t, "run", "-o", t.TempDir(), "a cat")
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrSubmissionFailed)
	assert.NotContains(t, out, "Task status")
}

func TestKeysCreate_RequiresName(t *testing.T) {
	_, err := execute(t, "keys", "create")
	require.Error(t, err)
}

func TestKeysCreate_UnknownScope(t *testing.T) {
	_, err := execute(t, "keys", "create", "--name", "ci", "--scope", "root")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scope")
}

func TestKeysCreate_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := execute(t, "keys", "create", "--name", "ci")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
