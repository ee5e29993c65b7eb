package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"vidshelf/internal/api"
	"vidshelf/internal/config"
	"vidshelf/internal/files"
	"vidshelf/internal/media"
	"vidshelf/internal/server"
	"vidshelf/internal/storage"
	"vidshelf/internal/streaming"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		panic("failed to load env file: " + err.Error())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", api.Version).
		Msg("starting vidshelf server")

	if cfg.Library.Path == "" {
		logger.Warn().Msgf("no library path configured, set library.path or %s", config.EnvVideoDir)
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	holder := config.NewHolder(cfg, *configPath, logger)
	indexer := media.NewIndexer(logger)
	manager := files.NewManager(indexer, store, cfg.Library.TrashDir, logger)

	handler := api.NewHandler(holder, indexer, streaming.NewHandler(logger), manager, logger)

	metadataExtractor := media.NewMetadataExtractor(logger)
	if metadataExtractor.IsAvailable() {
		logger.Info().Msg("ffprobe available - thumbnails seek to 10% of duration")
	} else {
		logger.Warn().Msg("ffprobe not found - thumbnails use the first frame")
	}

	thumbnailGenerator, err := media.NewThumbnailGenerator(cfg.Thumbnails.OutputDir, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("thumbnail storage unavailable - thumbnails disabled")
	} else {
		if thumbnailGenerator.IsAvailable() {
			logger.Info().Msg("ffmpeg available - thumbnail generation enabled")
		} else {
			logger.Warn().Msg("ffmpeg not found - thumbnail generation disabled")
		}

		thumbnailService, err := media.NewThumbnailService(
			thumbnailGenerator,
			metadataExtractor,
			cfg.Thumbnails.CacheCapacity,
			cfg.Thumbnails.CacheMaxSize,
			logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize thumbnail service")
		}
		handler.SetThumbnailService(thumbnailService)
	}

	srv := server.New(cfg, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher not started")
	}
	defer holder.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("received shutdown signal")
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
