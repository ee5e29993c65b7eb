package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

type Metadata struct {
	Duration float64 // seconds
}

// MetadataExtractor probes video files with ffprobe.
type MetadataExtractor struct {
	ffprobePath string
	logger      zerolog.Logger
}

func NewMetadataExtractor(logger zerolog.Logger) *MetadataExtractor {
	ffprobePath := "ffprobe"
	if path, err := exec.LookPath("ffprobe"); err == nil {
		ffprobePath = path
	}

	return &MetadataExtractor{
		ffprobePath: ffprobePath,
		logger:      logger.With().Str("component", "ffprobe").Logger(),
	}
}

func (m *MetadataExtractor) IsAvailable() bool {
	_, err := exec.LookPath(m.ffprobePath)
	return err == nil
}

func (m *MetadataExtractor) Extract(ctx context.Context, filePath string) (*Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	}

	cmd := exec.CommandContext(ctx, m.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		m.logger.Debug().Err(err).Str("file", filePath).Msg("ffprobe failed")
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	return parseProbeOutput(output)
}

type ffprobeOutput struct {
	Format ffprobeFormat `json:"format"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

func parseProbeOutput(output []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	meta := &Metadata{}

	if probe.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && dur > 0 {
			meta.Duration = dur
		}
	}

	return meta, nil
}
