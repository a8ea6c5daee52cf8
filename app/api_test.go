package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattsayar/postnotify/config"
	"github.com/mattsayar/postnotify/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	log := zaptest.NewLogger(t)
	st, err := store.NewStore(log, cfg)
	require.NoError(t, err)
	return router(cfg, log, st)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}
	r := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestViewStateServesDocument(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}
	r := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"subscribers"`)
}

func TestViewLogsMissingFileIs404(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), LogFile: filepath.Join(t.TempDir(), "missing.log")}
	r := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewLogsServesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "notifier.log")
	require.NoError(t, os.WriteFile(logFile, []byte("started feed check\n"), 0o644))

	cfg := &config.Config{DataDir: t.TempDir(), LogFile: logFile}
	r := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "started feed check")
}
