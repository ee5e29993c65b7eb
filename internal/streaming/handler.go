package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"vidshelf/internal/media"
	"vidshelf/internal/metrics"
)

// videoFile is the part of *os.File the streamer needs.
type videoFile interface {
	io.ReaderAt
	io.Closer
	Stat() (fs.FileInfo, error)
}

type Handler struct {
	logger zerolog.Logger
	open   func(name string) (videoFile, error)
}

func NewHandler(logger zerolog.Logger) *Handler {
	return &Handler{
		logger: logger.With().Str("component", "streamer").Logger(),
		open:   openFile,
	}
}

func openFile(name string) (videoFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ServeFile streams filePath honoring an optional Range header. The size is
// taken from a fresh stat, not from any earlier scan. HEAD requests get the
// same headers and no body.
//
// A returned error means nothing has been written yet and the caller should
// answer with an error response. Failures after the body started (client
// disconnects included) are logged here and reported as nil.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := h.open(filePath)
	if err != nil {
		metrics.IncStream("error")
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", media.ErrNotFound, err)
		}
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		metrics.IncStream("error")
		return fmt.Errorf("stat video: %w", err)
	}

	plan, err := PlanResponse(stat.Size(), r.Header.Get("Range"), media.GetContentType(filePath))
	if err != nil {
		metrics.IncStream("error")
		return err
	}

	plan.SetHeaders(w.Header())
	if plan.Partial {
		metrics.IncStream("partial")
		w.WriteHeader(plan.StatusCode)
	} else {
		metrics.IncStream("full")
	}

	if r.Method == http.MethodHead || plan.ContentLength == 0 {
		return nil
	}

	body := &contextReader{
		ctx: r.Context(),
		r:   io.NewSectionReader(file, plan.Start, plan.ContentLength),
	}

	written, err := io.Copy(w, body)
	metrics.AddStreamBytes(written)

	switch {
	case err != nil && r.Context().Err() != nil:
		h.logger.Debug().
			Str("path", filePath).
			Int64("written", written).
			Msg("client went away mid-stream")
	case err != nil:
		h.logger.Warn().
			Err(err).
			Str("path", filePath).
			Int64("written", written).
			Msg("stream interrupted")
	case written != plan.ContentLength:
		h.logger.Warn().
			Str("path", filePath).
			Int64("written", written).
			Int64("expected", plan.ContentLength).
			Msg("file shrank while streaming")
	}

	return nil
}

// contextReader stops reading once the request context is done so the file
// handle is released without waiting for a write to fail.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
