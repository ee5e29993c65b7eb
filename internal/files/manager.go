package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"vidshelf/internal/media"
	"vidshelf/internal/metrics"
	"vidshelf/internal/storage"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("target already exists")
	ErrTrashNotFound    = errors.New("trash item not found")
	ErrAlreadyRestored  = errors.New("trash item already restored")
	ErrTrashUnavailable = errors.New("trash is not configured")
)

// Resolver maps a video id to its current record.
type Resolver interface {
	Lookup(ctx context.Context, opts media.ScanOptions, id string) (media.FileRecord, error)
}

type TrashStore interface {
	CreateTrashRecord(r *storage.TrashRecord) error
	GetTrashRecord(id string) (*storage.TrashRecord, error)
	ListTrash(includeRestored bool) ([]storage.TrashRecord, error)
	MarkRestored(id string, at time.Time) error
	DeleteTrashRecord(id string) error
}

// Manager performs rename, move and soft delete on indexed videos. Each
// operation resolves the id through a fresh scan to get the real path.
type Manager struct {
	resolver Resolver
	trash    TrashStore
	trashDir string
	logger   zerolog.Logger
	locks    *pathLocks
	now      func() time.Time
}

func NewManager(resolver Resolver, trash TrashStore, trashDir string, logger zerolog.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		trash:    trash,
		trashDir: trashDir,
		logger:   logger.With().Str("component", "files").Logger(),
		locks:    newPathLocks(),
		now:      time.Now,
	}
}

type RenameResult struct {
	OldName string
	NewName string
	NewPath string
}

// Rename gives the video a new base name in the same folder. When newName is
// empty, suffix is inserted before the extension instead.
func (m *Manager) Rename(ctx context.Context, opts media.ScanOptions, videoID, newName, suffix string) (RenameResult, error) {
	if videoID == "" || (newName == "" && suffix == "") {
		return RenameResult{}, fmt.Errorf("%w: videoId and newName or suffix are required", ErrInvalidInput)
	}

	record, err := m.resolve(ctx, opts, videoID)
	if err != nil {
		return RenameResult{}, err
	}

	if newName == "" {
		ext := filepath.Ext(record.Name)
		newName = strings.TrimSuffix(record.Name, ext) + suffix + ext
	}
	if err := validateFileName(newName); err != nil {
		return RenameResult{}, err
	}
	if !media.IsSupportedVideo(newName) {
		return RenameResult{}, fmt.Errorf("%w: %q must keep a video extension", ErrInvalidInput, newName)
	}

	target := filepath.Join(record.Folder, newName)
	if err := m.relocate(record.Path, target); err != nil {
		metrics.IncFileOperation("rename", false)
		return RenameResult{}, err
	}
	metrics.IncFileOperation("rename", true)

	m.logger.Info().
		Str("id", videoID).
		Str("from", record.Name).
		Str("to", newName).
		Msg("video renamed")

	return RenameResult{OldName: record.Name, NewName: newName, NewPath: target}, nil
}

type MoveResult struct {
	Name        string
	Folder      string
	Destination string
}

// Move relocates the video into folder, a path relative to the library root.
// An empty folder means the reserved folder.
func (m *Manager) Move(ctx context.Context, opts media.ScanOptions, videoID, folder string) (MoveResult, error) {
	if videoID == "" {
		return MoveResult{}, fmt.Errorf("%w: videoId is required", ErrInvalidInput)
	}
	if folder == "" {
		folder = media.ReservedFolder
	}

	destDir, err := resolveFolder(opts.Root, folder)
	if err != nil {
		return MoveResult{}, err
	}

	record, err := m.resolve(ctx, opts, videoID)
	if err != nil {
		return MoveResult{}, err
	}

	target := filepath.Join(destDir, record.Name)
	if err := m.relocate(record.Path, target); err != nil {
		metrics.IncFileOperation("move", false)
		return MoveResult{}, err
	}
	metrics.IncFileOperation("move", true)

	m.logger.Info().
		Str("id", videoID).
		Str("name", record.Name).
		Str("folder", folder).
		Msg("video moved")

	return MoveResult{Name: record.Name, Folder: folder, Destination: target}, nil
}

// SoftDelete moves the video into the trash directory and records where it
// came from so it can be restored.
func (m *Manager) SoftDelete(ctx context.Context, opts media.ScanOptions, videoID string) (*storage.TrashRecord, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: videoId is required", ErrInvalidInput)
	}
	if m.trash == nil || m.trashDir == "" {
		return nil, ErrTrashUnavailable
	}

	record, err := m.resolve(ctx, opts, videoID)
	if err != nil {
		return nil, err
	}

	release := m.locks.lock(record.Path)
	defer release()

	trashRecord := &storage.TrashRecord{
		ID:           uuid.NewString(),
		VideoID:      record.ID,
		Name:         record.Name,
		OriginalPath: record.Path,
		Size:         record.Size,
		DeletedAt:    m.now().UTC(),
	}
	trashRecord.TrashPath = filepath.Join(m.trashDir, trashRecord.ID+"_"+record.Name)

	if err := movePath(record.Path, trashRecord.TrashPath); err != nil {
		metrics.IncFileOperation("delete", false)
		return nil, mapFSError(err, "move to trash")
	}

	if err := m.trash.CreateTrashRecord(trashRecord); err != nil {
		if rbErr := movePath(trashRecord.TrashPath, record.Path); rbErr != nil {
			m.logger.Error().Err(rbErr).Str("path", record.Path).Msg("failed to roll back soft delete")
		}
		metrics.IncFileOperation("delete", false)
		return nil, fmt.Errorf("record trash item: %w", err)
	}
	metrics.IncFileOperation("delete", true)

	m.logger.Info().
		Str("id", videoID).
		Str("name", record.Name).
		Str("trash_id", trashRecord.ID).
		Msg("video moved to trash")

	return trashRecord, nil
}

func (m *Manager) ListTrash() ([]storage.TrashRecord, error) {
	if m.trash == nil {
		return nil, ErrTrashUnavailable
	}

	records, err := m.trash.ListTrash(false)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []storage.TrashRecord{}
	}
	return records, nil
}

// Restore moves a trashed video back to its original path.
func (m *Manager) Restore(trashID string) (*storage.TrashRecord, error) {
	if m.trash == nil {
		return nil, ErrTrashUnavailable
	}

	record, err := m.trash.GetTrashRecord(trashID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrashNotFound, trashID)
	}
	if record.RestoredAt != nil {
		return nil, ErrAlreadyRestored
	}

	if err := m.relocate(record.TrashPath, record.OriginalPath); err != nil {
		metrics.IncFileOperation("restore", false)
		if errors.Is(err, media.ErrNotFound) {
			// The trashed file is gone; the entry can never be restored.
			if delErr := m.trash.DeleteTrashRecord(record.ID); delErr != nil {
				m.logger.Error().Err(delErr).Str("trash_id", record.ID).Msg("failed to drop stale trash record")
			}
			return nil, fmt.Errorf("%w: %s file is missing", ErrTrashNotFound, trashID)
		}
		return nil, err
	}

	restoredAt := m.now().UTC()
	if err := m.trash.MarkRestored(record.ID, restoredAt); err != nil {
		if rbErr := movePath(record.OriginalPath, record.TrashPath); rbErr != nil {
			m.logger.Error().Err(rbErr).Str("path", record.OriginalPath).Msg("failed to roll back restore")
		}
		metrics.IncFileOperation("restore", false)
		return nil, fmt.Errorf("mark restored: %w", err)
	}
	metrics.IncFileOperation("restore", true)
	record.RestoredAt = &restoredAt

	m.logger.Info().
		Str("trash_id", record.ID).
		Str("path", record.OriginalPath).
		Msg("video restored from trash")

	return record, nil
}

// resolve looks the id up across the whole library, whatever the listing
// restriction, so any id a client has seen can be acted on.
func (m *Manager) resolve(ctx context.Context, opts media.ScanOptions, videoID string) (media.FileRecord, error) {
	opts.RestrictToSubfolder = false
	return m.resolver.Lookup(ctx, opts, videoID)
}

// relocate moves source to target unless target already exists. Both paths
// are locked for the duration.
func (m *Manager) relocate(source, target string) error {
	first, second := source, target
	if second < first {
		first, second = second, first
	}
	releaseFirst := m.locks.lock(first)
	defer releaseFirst()
	if second != first {
		releaseSecond := m.locks.lock(second)
		defer releaseSecond()
	}

	if _, err := os.Stat(source); err != nil {
		return mapFSError(err, "stat source")
	}

	taken, err := exists(target)
	if err != nil {
		return fmt.Errorf("stat target: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrConflict, filepath.Base(target))
	}

	if err := movePath(source, target); err != nil {
		return mapFSError(err, "move")
	}
	return nil
}

func mapFSError(err error, op string) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", media.ErrNotFound, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validateFileName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: empty file name", ErrInvalidInput)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: file name must not contain path separators", ErrInvalidInput)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: file name contains control characters", ErrInvalidInput)
		}
	}
	return nil
}

// resolveFolder confines a client supplied folder to the library root.
func resolveFolder(root, folder string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", media.ErrNotConfigured
	}

	normalized := strings.ReplaceAll(strings.TrimSpace(folder), `\`, "/")
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: folder must stay inside the library", ErrInvalidInput)
		}
	}
	for _, r := range normalized {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: folder contains control characters", ErrInvalidInput)
		}
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	cleanRel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(normalized, "/")))
	if cleanRel == "." {
		return "", fmt.Errorf("%w: folder is required", ErrInvalidInput)
	}

	return filepath.Join(rootAbs, cleanRel), nil
}
