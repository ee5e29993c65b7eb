package streaming

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"vidshelf/internal/media"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeVideo(t *testing.T, name string, size int) (string, []byte) {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, content
}

func TestServeFileFull(t *testing.T) {
	path, content := writeVideo(t, "clip.mkv", 4096)

	h := NewHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.ServeFile(rec, req, path))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "4096", rec.Header().Get("Content-Length"))
	require.Equal(t, "video/x-matroska", rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("Content-Range"))
	require.Equal(t, content, rec.Body.Bytes())
}

func TestServeFileRangeMatrix(t *testing.T) {
	path, content := writeVideo(t, "clip.mp4", 4096)
	h := NewHandler(zerolog.Nop())

	tests := []struct {
		name      string
		header    string
		wantRange string
		wantStart int
		wantEnd   int
	}{
		{name: "first_100", header: "bytes=0-99", wantRange: "bytes 0-99/4096", wantStart: 0, wantEnd: 99},
		{name: "open_ended", header: "bytes=4000-", wantRange: "bytes 4000-4095/4096", wantStart: 4000, wantEnd: 4095},
		{name: "single_byte", header: "bytes=10-10", wantRange: "bytes 10-10/4096", wantStart: 10, wantEnd: 10},
		{name: "past_end", header: "bytes=4090-9999", wantRange: "bytes 4090-4095/4096", wantStart: 4090, wantEnd: 4095},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			req.Header.Set("Range", tc.header)
			rec := httptest.NewRecorder()

			require.NoError(t, h.ServeFile(rec, req, path))
			require.Equal(t, http.StatusPartialContent, rec.Code)
			require.Equal(t, tc.wantRange, rec.Header().Get("Content-Range"))
			require.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
			require.Equal(t, content[tc.wantStart:tc.wantEnd+1], rec.Body.Bytes())
		})
	}
}

func TestServeFileMalformedRange(t *testing.T) {
	path, _ := writeVideo(t, "clip.mp4", 128)

	h := NewHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "invalid-range-format")
	rec := httptest.NewRecorder()

	err := h.ServeFile(rec, req, path)
	require.ErrorIs(t, err, ErrMalformedRange)
	require.Empty(t, rec.Header().Get("Content-Length"))
	require.Zero(t, rec.Body.Len())
}

func TestServeFileMissing(t *testing.T) {
	h := NewHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	rec := httptest.NewRecorder()

	err := h.ServeFile(rec, req, filepath.Join(t.TempDir(), "gone.mp4"))
	require.ErrorIs(t, err, media.ErrNotFound)
}

func TestServeFileCancelledRequestWritesNoBody(t *testing.T) {
	path, _ := writeVideo(t, "clip.mp4", 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	require.NoError(t, h.ServeFile(rec, req, path))
	require.Zero(t, rec.Body.Len())
}

type failingWriter struct {
	header http.Header
	status int
}

func (f *failingWriter) Header() http.Header { return f.header }
func (f *failingWriter) WriteHeader(status int) { f.status = status }
func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServeFileClientDisconnect(t *testing.T) {
	path, _ := writeVideo(t, "clip.mp4", 64*1024)

	h := NewHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Range", "bytes=0-")
	w := &failingWriter{header: http.Header{}}

	require.NoError(t, h.ServeFile(w, req, path))
	require.Equal(t, http.StatusPartialContent, w.status)
}

type trackedFile struct {
	*os.File
	closes *atomic.Int32
}

func (f trackedFile) Close() error {
	f.closes.Add(1)
	return f.File.Close()
}

// trackOpens makes h count opened and closed handles.
func trackOpens(h *Handler) (opens, closes *atomic.Int32) {
	opens, closes = new(atomic.Int32), new(atomic.Int32)
	h.open = func(name string) (videoFile, error) {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		opens.Add(1)
		return trackedFile{File: f, closes: closes}, nil
	}
	return opens, closes
}

func TestServeFileClosesHandle(t *testing.T) {
	path, _ := writeVideo(t, "clip.mp4", 64*1024)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		header  string
		ctx     context.Context
		writer  func() http.ResponseWriter
		wantErr bool
	}{
		{name: "full", ctx: context.Background(), writer: func() http.ResponseWriter { return httptest.NewRecorder() }},
		{name: "partial", header: "bytes=0-99", ctx: context.Background(), writer: func() http.ResponseWriter { return httptest.NewRecorder() }},
		{name: "malformed", header: "invalid-range-format", ctx: context.Background(), writer: func() http.ResponseWriter { return httptest.NewRecorder() }, wantErr: true},
		{name: "cancelled", ctx: cancelled, writer: func() http.ResponseWriter { return httptest.NewRecorder() }},
		{name: "disconnect", header: "bytes=0-", ctx: context.Background(), writer: func() http.ResponseWriter { return &failingWriter{header: http.Header{}} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(zerolog.Nop())
			opens, closes := trackOpens(h)

			req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(tc.ctx)
			if tc.header != "" {
				req.Header.Set("Range", tc.header)
			}

			err := h.ServeFile(tc.writer(), req, path)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, int32(1), opens.Load())
			require.Equal(t, int32(1), closes.Load())
		})
	}
}

func TestServeFileHead(t *testing.T) {
	path, _ := writeVideo(t, "clip.mp4", 4096)

	h := NewHandler(zerolog.Nop())
	_, closes := trackOpens(h)

	req := httptest.NewRequest(http.MethodHead, "/stream", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()

	require.NoError(t, h.ServeFile(rec, req, path))
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "bytes 0-99/4096", rec.Header().Get("Content-Range"))
	require.Equal(t, "100", rec.Header().Get("Content-Length"))
	require.Zero(t, rec.Body.Len())
	require.Equal(t, int32(1), closes.Load())
}
