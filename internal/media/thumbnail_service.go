package media

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"vidshelf/internal/cache"
	"vidshelf/internal/metrics"
)

const generateTimeout = 30 * time.Second

// ThumbnailService serves thumbnails from memory, then disk, and generates
// missing ones on demand. Concurrent requests for one id share a single
// ffmpeg run.
type ThumbnailService struct {
	generator *ThumbnailGenerator
	metadata  *MetadataExtractor
	cache     *cache.LRUCache
	group     singleflight.Group
	logger    zerolog.Logger
}

func NewThumbnailService(
	generator *ThumbnailGenerator,
	metadata *MetadataExtractor,
	cacheCapacity int,
	cacheMaxSize int64,
	logger zerolog.Logger,
) (*ThumbnailService, error) {
	lru, err := cache.NewLRUCache(cacheCapacity, cacheMaxSize)
	if err != nil {
		return nil, err
	}

	return &ThumbnailService{
		generator: generator,
		metadata:  metadata,
		cache:     lru,
		logger:    logger.With().Str("component", "thumbnails").Logger(),
	}, nil
}

// GetThumbnail returns JPEG data for the record.
func (s *ThumbnailService) GetThumbnail(ctx context.Context, record FileRecord) ([]byte, error) {
	if data, ok := s.cache.Get(record.ID); ok {
		metrics.IncThumbnail("memory")
		return data, nil
	}

	if data, err := s.generator.Read(record.ID); err == nil && len(data) > 0 {
		metrics.IncThumbnail("disk")
		s.cache.Set(record.ID, data)
		return data, nil
	}

	result, err, shared := s.group.Do(record.ID, func() (any, error) {
		return s.generate(record)
	})
	if err != nil {
		metrics.IncThumbnail("error")
		return nil, err
	}

	if !shared {
		metrics.IncThumbnail("generated")
	}
	return result.([]byte), nil
}

// generate runs detached from any single request so a client that goes away
// does not fail the others waiting on the same id.
func (s *ThumbnailService) generate(record FileRecord) ([]byte, error) {
	if !s.generator.IsAvailable() {
		return nil, ErrThumbnailUnavailable
	}

	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	duration := 0.0
	if s.metadata != nil && s.metadata.IsAvailable() {
		if meta, err := s.metadata.Extract(ctx, record.Path); err == nil {
			duration = meta.Duration
		}
	}

	s.logger.Info().Str("id", record.ID).Str("path", record.Path).Msg("generating thumbnail on demand")

	data, err := s.generator.Generate(ctx, record.Path, record.ID, duration)
	if err != nil {
		s.logger.Error().Err(err).Str("id", record.ID).Str("video", record.Path).Msg("failed to generate thumbnail")
		return nil, fmt.Errorf("generate thumbnail: %w", err)
	}

	s.cache.Set(record.ID, data)
	return data, nil
}

// Invalidate drops the cached and stored thumbnail for id. Ids are derived
// from paths, so a renamed, moved or trashed video leaves its old id behind.
func (s *ThumbnailService) Invalidate(id string) {
	s.cache.Delete(id)
	if err := s.generator.Delete(id); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("failed to remove stored thumbnail")
	}
}

// CacheStats returns cache statistics
func (s *ThumbnailService) CacheStats() (count int, size int64) {
	return s.cache.Len(), s.cache.Size()
}
