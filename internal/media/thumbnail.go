package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// ErrThumbnailUnavailable is returned when ffmpeg cannot be found.
var ErrThumbnailUnavailable = errors.New("thumbnail generation unavailable: ffmpeg not found")

// thumbnailSeekFraction is how far into the video the frame is taken.
const thumbnailSeekFraction = 0.1

type ThumbnailGenerator struct {
	ffmpegPath string
	outputDir  string
	logger     zerolog.Logger
}

func NewThumbnailGenerator(outputDir string, logger zerolog.Logger) (*ThumbnailGenerator, error) {
	ffmpegPath := "ffmpeg"
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		ffmpegPath = path
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}

	return &ThumbnailGenerator{
		ffmpegPath: ffmpegPath,
		outputDir:  outputDir,
		logger:     logger.With().Str("component", "ffmpeg").Logger(),
	}, nil
}

func (t *ThumbnailGenerator) IsAvailable() bool {
	_, err := exec.LookPath(t.ffmpegPath)
	return err == nil
}

// Generate extracts one frame at 10% of duration (seconds) and stores it as
// a JPEG under the output directory. It returns the encoded image.
func (t *ThumbnailGenerator) Generate(ctx context.Context, videoPath, id string, duration float64) ([]byte, error) {
	if !t.IsAvailable() {
		return nil, ErrThumbnailUnavailable
	}

	seek := 0.0
	if duration > 0 {
		seek = duration * thumbnailSeekFraction
	}

	// -ss before -i seeks on keyframes, which is fast on large files.
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", "scale=320:-2",
		"-q:v", "4",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.logger.Debug().
			Err(err).
			Str("video", videoPath).
			Str("stderr", stderr.String()).
			Msg("ffmpeg thumbnail generation failed")
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s", filepath.Base(videoPath))
	}

	data := stdout.Bytes()
	if err := writeThumbnail(t.GetPath(id), data); err != nil {
		// The image is still usable; it just is not persisted.
		t.logger.Warn().Err(err).Str("id", id).Msg("failed to store thumbnail")
	}

	t.logger.Debug().
		Str("video", videoPath).
		Str("id", id).
		Int("bytes", len(data)).
		Msg("thumbnail generated")

	return data, nil
}

// Read returns the stored thumbnail for id.
func (t *ThumbnailGenerator) Read(id string) ([]byte, error) {
	return os.ReadFile(t.GetPath(id))
}

// Delete removes a stored thumbnail. A missing file is not an error.
func (t *ThumbnailGenerator) Delete(id string) error {
	if err := os.Remove(t.GetPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (t *ThumbnailGenerator) GetPath(id string) string {
	return filepath.Join(t.outputDir, id+".jpg")
}
