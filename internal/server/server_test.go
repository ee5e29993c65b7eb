package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"vidshelf/internal/api"
	"vidshelf/internal/config"
	"vidshelf/internal/files"
	"vidshelf/internal/media"
	"vidshelf/internal/storage"
	"vidshelf/internal/streaming"
)

func newTestServer(t *testing.T, requestsPerMinute int) *Server {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Library.Path = filepath.Join(base, "videos")
	cfg.RateLimit.RequestsPerMinute = requestsPerMinute

	store, err := storage.NewSQLiteStorage(filepath.Join(base, "vidshelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zerolog.Nop()
	indexer := media.NewIndexer(logger)
	handler := api.NewHandler(
		config.NewHolder(cfg, "", logger),
		indexer,
		streaming.NewHandler(logger),
		files.NewManager(indexer, store, filepath.Join(base, "trash"), logger),
		logger,
	)

	return New(cfg, handler, logger)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, api.Version, resp.Version)
}

func TestCORSPreflightAllowsRange(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/videos/abc/stream", nil)
	req.Header.Set("Origin", "http://player.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Range")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "range")
}

func TestCORSExposesRangeHeaders(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://player.local")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	require.Contains(t, exposed, "Content-Range")
	require.Contains(t, exposed, "Accept-Ranges")
}

func TestMutationsAreRateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/videos/move", strings.NewReader(`{}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	require.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	// Reads are not limited.
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)

	// Trigger a scan so the indexer metrics have a sample.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "vidshelf_scan_duration_seconds")
}

func TestStreamAnswersHead(t *testing.T) {
	s := newTestServer(t, 0)

	root := s.cfg.Library.Path
	require.NoError(t, os.MkdirAll(root, 0o755))
	path := filepath.Join(root, "clip.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	req := httptest.NewRequest(http.MethodHead, "/api/videos/"+media.GenerateID(path)+"/stream", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "bytes 0-99/2048", rec.Header().Get("Content-Range"))
	require.Equal(t, "100", rec.Header().Get("Content-Length"))
	require.Zero(t, rec.Body.Len())
}
