package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"vidshelf/internal/config"
	"vidshelf/internal/files"
	"vidshelf/internal/media"
	"vidshelf/internal/streaming"
)

const Version = "0.2.0"

const (
	msgNotConfigured   = "video directory is not configured"
	msgStreamFailed    = "video streaming failed"
	msgVideoNotFound   = "video not found"
	msgThumbnailFailed = "thumbnail generation failed"
	msgOperationFailed = "file operation failed"
)

type Handler struct {
	config           *config.Holder
	indexer          *media.Indexer
	streamer         *streaming.Handler
	files            *files.Manager
	thumbnailService *media.ThumbnailService
	logger           zerolog.Logger
}

func NewHandler(
	holder *config.Holder,
	indexer *media.Indexer,
	streamer *streaming.Handler,
	manager *files.Manager,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		config:   holder,
		indexer:  indexer,
		streamer: streamer,
		files:    manager,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) SetThumbnailService(service *media.ThumbnailService) {
	h.thumbnailService = service
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	if h.thumbnailService != nil {
		entries, size := h.thumbnailService.CacheStats()
		resp.ThumbnailCache = &CacheStatsInfo{Entries: entries, Bytes: size}
	}
	writeJSON(w, http.StatusOK, resp)
}

// snapshot returns the scan options for this request. Later config reloads
// do not affect a request that already started.
func (h *Handler) snapshot() media.ScanOptions {
	cfg := h.config.Get()
	return cfg.ScanOptions()
}

func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	opts := h.snapshot()
	if strings.TrimSpace(opts.Root) == "" {
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	records := h.indexer.Scan(r.Context(), opts)

	videos := make([]VideoResponse, 0, len(records))
	for _, record := range records {
		videos = append(videos, VideoResponse{
			FileRecord:   record,
			ThumbnailURL: "/api/videos/" + record.ID + "/thumbnail",
		})
	}

	writeJSON(w, http.StatusOK, VideoListResponse{Videos: videos})
}

func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	record, ok := h.lookup(w, r, videoID, msgStreamFailed)
	if !ok {
		return
	}

	if err := h.streamer.ServeFile(w, r, record.Path); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgVideoNotFound)
			return
		}
		// Malformed ranges are reported like any other streaming failure.
		h.logger.Error().
			Err(err).
			Str("id", videoID).
			Str("range", r.Header.Get("Range")).
			Msg("stream failed")
		writeError(w, http.StatusInternalServerError, msgStreamFailed)
	}
}

func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	if h.thumbnailService == nil {
		writeError(w, http.StatusServiceUnavailable, "thumbnail service not available")
		return
	}

	record, ok := h.lookup(w, r, videoID, msgThumbnailFailed)
	if !ok {
		return
	}

	data, err := h.thumbnailService.GetThumbnail(r.Context(), record)
	if err != nil {
		if errors.Is(err, media.ErrThumbnailUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "thumbnail generation is not available")
			return
		}
		h.logger.Error().Err(err).Str("id", videoID).Msg("failed to get thumbnail")
		writeError(w, http.StatusInternalServerError, msgThumbnailFailed)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// lookup resolves videoID through a fresh scan and writes the error response
// itself when that fails.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, videoID, failure string) (media.FileRecord, bool) {
	record, err := h.indexer.Lookup(r.Context(), h.snapshot(), videoID)
	switch {
	case err == nil:
		return record, true
	case errors.Is(err, media.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
	case errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, msgVideoNotFound)
	default:
		h.logger.Error().Err(err).Str("id", videoID).Msg("lookup failed")
		writeError(w, http.StatusInternalServerError, failure)
	}
	return media.FileRecord{}, false
}

// Mutation handlers

func (h *Handler) RenameVideo(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VideoID == "" || (req.NewName == "" && req.Suffix == "") {
		writeError(w, http.StatusBadRequest, "videoId and newName (or suffix) are required")
		return
	}

	result, err := h.files.Rename(r.Context(), h.snapshot(), req.VideoID, req.NewName, req.Suffix)
	if err != nil {
		h.writeFileError(w, err, "rename", req.VideoID)
		return
	}
	h.invalidateThumbnail(req.VideoID)

	writeJSON(w, http.StatusOK, RenameResponse{
		Success: true,
		Message: "file renamed",
		OldName: result.OldName,
		NewName: result.NewName,
	})
}

func (h *Handler) MoveVideo(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VideoID == "" {
		writeError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	result, err := h.files.Move(r.Context(), h.snapshot(), req.VideoID, req.Folder)
	if err != nil {
		h.writeFileError(w, err, "move", req.VideoID)
		return
	}
	h.invalidateThumbnail(req.VideoID)

	writeJSON(w, http.StatusOK, MoveResponse{
		Success: true,
		Message: "file moved to " + result.Folder,
		Name:    result.Name,
		Folder:  result.Folder,
	})
}

func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VideoID == "" {
		writeError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	record, err := h.files.SoftDelete(r.Context(), h.snapshot(), req.VideoID)
	if err != nil {
		h.writeFileError(w, err, "delete", req.VideoID)
		return
	}
	h.invalidateThumbnail(req.VideoID)

	writeJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: "file moved to trash",
		TrashID: record.ID,
	})
}

func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	items, err := h.files.ListTrash()
	if err != nil {
		h.writeFileError(w, err, "list trash", "")
		return
	}
	writeJSON(w, http.StatusOK, TrashListResponse{Items: items})
}

func (h *Handler) RestoreTrash(w http.ResponseWriter, r *http.Request) {
	trashID := chi.URLParam(r, "id")

	record, err := h.files.Restore(trashID)
	if err != nil {
		h.writeFileError(w, err, "restore", trashID)
		return
	}

	writeJSON(w, http.StatusOK, RestoreResponse{
		Success: true,
		Message: "file restored",
		Path:    record.OriginalPath,
	})
}

func (h *Handler) invalidateThumbnail(videoID string) {
	if h.thumbnailService != nil {
		h.thumbnailService.Invalidate(videoID)
	}
}

// writeFileError maps file management errors to status codes. Unexpected
// errors are logged with full detail and reported generically.
func (h *Handler) writeFileError(w http.ResponseWriter, err error, op, id string) {
	switch {
	case errors.Is(err, files.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, media.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
	case errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, msgVideoNotFound)
	case errors.Is(err, files.ErrTrashNotFound):
		writeError(w, http.StatusNotFound, "trash item not found")
	case errors.Is(err, files.ErrConflict):
		writeError(w, http.StatusConflict, "a file with that name already exists")
	case errors.Is(err, files.ErrAlreadyRestored):
		writeError(w, http.StatusConflict, "trash item already restored")
	case errors.Is(err, files.ErrTrashUnavailable):
		writeError(w, http.StatusServiceUnavailable, "trash is not configured")
	default:
		h.logger.Error().Err(err).Str("op", op).Str("id", id).Msg("file operation failed")
		writeError(w, http.StatusInternalServerError, msgOperationFailed)
	}
}

// Config handlers

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()
	extensions := media.SupportedExtensions()
	slices.Sort(extensions)

	writeJSON(w, http.StatusOK, ConfigResponse{
		Library: LibrarySettings{
			Path:               cfg.Library.Path,
			RestrictToReserved: cfg.Library.RestrictToReserved,
			SortOrder:          cfg.Library.SortOrder,
			Locale:             cfg.Library.Locale,
		},
		ReservedFolder: media.ReservedFolder,
		Extensions:     extensions,
	})
}

func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Reload(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Success: true,
		Message: "configuration reloaded",
	})
}

const maxRequestBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
