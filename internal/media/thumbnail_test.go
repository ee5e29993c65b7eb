package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestThumbnailService(t *testing.T) (*ThumbnailService, *ThumbnailGenerator) {
	t.Helper()

	gen, err := NewThumbnailGenerator(filepath.Join(t.TempDir(), "thumbs"), zerolog.Nop())
	require.NoError(t, err)
	gen.ffmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg-here")

	meta := NewMetadataExtractor(zerolog.Nop())
	meta.ffprobePath = filepath.Join(t.TempDir(), "no-ffprobe-here")

	svc, err := NewThumbnailService(gen, meta, 16, 1<<20, zerolog.Nop())
	require.NoError(t, err)
	return svc, gen
}

func TestThumbnailServiceServesStoredThumbnail(t *testing.T) {
	svc, gen := newTestThumbnailService(t)
	record := FileRecord{ID: GenerateID("/videos/a.mp4"), Path: "/videos/a.mp4"}

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	require.NoError(t, writeThumbnail(gen.GetPath(record.ID), jpeg))

	data, err := svc.GetThumbnail(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, jpeg, data)

	count, size := svc.CacheStats()
	require.Equal(t, 1, count)
	require.Equal(t, int64(len(jpeg)), size)

	// Served from memory once the disk copy is gone.
	require.NoError(t, os.Remove(gen.GetPath(record.ID)))
	data, err = svc.GetThumbnail(context.Background(), record)
	require.NoError(t, err)
	require.Equal(t, jpeg, data)
}

func TestThumbnailServiceWithoutFFmpeg(t *testing.T) {
	svc, _ := newTestThumbnailService(t)
	record := FileRecord{ID: GenerateID("/videos/b.mp4"), Path: "/videos/b.mp4"}

	_, err := svc.GetThumbnail(context.Background(), record)
	require.ErrorIs(t, err, ErrThumbnailUnavailable)
}

func TestThumbnailServiceInvalidate(t *testing.T) {
	svc, gen := newTestThumbnailService(t)
	record := FileRecord{ID: GenerateID("/videos/c.mp4"), Path: "/videos/c.mp4"}

	require.NoError(t, writeThumbnail(gen.GetPath(record.ID), []byte("jpeg")))
	_, err := svc.GetThumbnail(context.Background(), record)
	require.NoError(t, err)

	svc.Invalidate(record.ID)
	require.NoFileExists(t, gen.GetPath(record.ID))
	count, _ := svc.CacheStats()
	require.Zero(t, count)

	// Invalidating twice is harmless.
	svc.Invalidate(record.ID)
}

func TestParseProbeOutput(t *testing.T) {
	t.Parallel()

	output := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080}
		],
		"format": {"duration": "123.456"}
	}`)

	meta, err := parseProbeOutput(output)
	require.NoError(t, err)
	require.InDelta(t, 123.456, meta.Duration, 0.0001)

	meta, err = parseProbeOutput([]byte(`{"format": {"duration": "N/A"}}`))
	require.NoError(t, err)
	require.Zero(t, meta.Duration)

	meta, err = parseProbeOutput([]byte(`{"format": {"duration": "-3"}}`))
	require.NoError(t, err)
	require.Zero(t, meta.Duration)

	_, err = parseProbeOutput([]byte("not json"))
	require.Error(t, err)
}
