package media

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"vidshelf/internal/metrics"
)

const defaultLocale = "ja"

// Indexer walks a video directory and produces a fresh, sorted list of
// FileRecords on every call. It keeps no state between scans.
type Indexer struct {
	logger zerolog.Logger
}

func NewIndexer(logger zerolog.Logger) *Indexer {
	return &Indexer{
		logger: logger.With().Str("component", "indexer").Logger(),
	}
}

// Scan walks opts.Root and returns the sorted records. Any error aborts the
// whole walk: it is logged and an empty slice is returned, never a partial list.
func (ix *Indexer) Scan(ctx context.Context, opts ScanOptions) []FileRecord {
	start := time.Now()

	records, err := ix.Walk(ctx, opts)
	if err != nil {
		metrics.ObserveScan(false, 0, time.Since(start))
		ix.logger.Error().
			Err(err).
			Str("root", opts.Root).
			Bool("restricted", opts.RestrictToSubfolder).
			Msg("scan aborted, returning empty listing")
		return []FileRecord{}
	}

	metrics.ObserveScan(true, len(records), time.Since(start))
	ix.logger.Debug().
		Str("root", opts.Root).
		Int("files", len(records)).
		Dur("duration", time.Since(start)).
		Msg("scan completed")

	return records
}

// Lookup scans and returns the record with the given id.
func (ix *Indexer) Lookup(ctx context.Context, opts ScanOptions, id string) (FileRecord, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return FileRecord{}, ErrNotConfigured
	}

	for _, record := range ix.Scan(ctx, opts) {
		if record.ID == id {
			return record, nil
		}
	}
	return FileRecord{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// Walk is Scan with the error surfaced to the caller.
func (ix *Indexer) Walk(ctx context.Context, opts ScanOptions) ([]FileRecord, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, ErrNotConfigured
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if opts.RestrictToSubfolder {
		root = filepath.Join(root, ReservedFolder)
		info, err := os.Stat(root)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
			ix.logger.Debug().Str("path", root).Msg("reserved folder missing, nothing to list")
			return []FileRecord{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("stat reserved folder: %w", err)
		}
	}

	canonicalRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	visited := map[string]struct{}{canonicalRoot: {}}
	stack := []string{root}
	records := make([]FileRecord, 0, 64)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}

		for _, entry := range entries {
			name := entry.Name()
			fullPath := filepath.Join(dir, name)

			// Plain files with other extensions are dropped without a stat.
			if !entry.IsDir() && entry.Type()&fs.ModeSymlink == 0 && !IsSupportedVideo(name) {
				continue
			}

			info, err := os.Stat(fullPath)
			if err != nil {
				return nil, fmt.Errorf("stat entry: %w", err)
			}

			if info.IsDir() {
				canonical, err := filepath.EvalSymlinks(fullPath)
				if err != nil {
					return nil, fmt.Errorf("resolve dir: %w", err)
				}
				if _, seen := visited[canonical]; seen {
					ix.logger.Debug().Str("path", fullPath).Msg("directory already visited, skipping")
					continue
				}
				visited[canonical] = struct{}{}
				stack = append(stack, fullPath)
				continue
			}

			if !info.Mode().IsRegular() || !IsSupportedVideo(name) {
				continue
			}

			if opts.RestrictToSubfolder && strings.Contains(strings.ToLower(name), ExclusionMarker) {
				continue
			}

			records = append(records, newFileRecord(fullPath, info))
		}
	}

	if err := sortRecords(records, opts.SortOrder, opts.Locale); err != nil {
		return nil, err
	}

	return records, nil
}

func newFileRecord(path string, info os.FileInfo) FileRecord {
	return FileRecord{
		ID:         GenerateID(path),
		Path:       path,
		Name:       info.Name(),
		Folder:     filepath.Dir(path),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		CreatedAt:  creationTime(path, info),
		Extension:  Extension(path),
	}
}

// GenerateID derives a stable identifier from an absolute path.
func GenerateID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:16])
}

func sortRecords(records []FileRecord, order SortOrder, locale string) error {
	switch order {
	case SortByName:
		// A collator keeps internal buffers, so each scan gets its own.
		col, err := newCollator(locale)
		if err != nil {
			return err
		}
		slices.SortStableFunc(records, func(a, b FileRecord) int {
			if c := col.CompareString(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Compare(a.Path, b.Path)
		})
	case SortByCreatedDesc, "":
		slices.SortStableFunc(records, func(a, b FileRecord) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.Path, b.Path)
		})
	default:
		return fmt.Errorf("unknown sort order %q", order)
	}
	return nil
}

func newCollator(locale string) (*collate.Collator, error) {
	if locale == "" {
		locale = defaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return collate.New(tag), nil
}
