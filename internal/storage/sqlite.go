package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trash_items (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		name TEXT NOT NULL,
		original_path TEXT NOT NULL,
		trash_path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		deleted_at DATETIME NOT NULL,
		restored_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_trash_deleted ON trash_items(deleted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_trash_original ON trash_items(original_path);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateTrashRecord stores a new soft-delete entry.
func (s *SQLiteStorage) CreateTrashRecord(r *TrashRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO trash_items (id, video_id, name, original_path, trash_path, size, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.VideoID, r.Name, r.OriginalPath, r.TrashPath, r.Size, r.DeletedAt.UTC())

	return err
}

// GetTrashRecord returns nil without error when the id is unknown.
func (s *SQLiteStorage) GetTrashRecord(id string) (*TrashRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, video_id, name, original_path, trash_path, size, deleted_at, restored_at
		FROM trash_items WHERE id = ?
	`, id)

	r, err := scanTrashRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

// ListTrash returns records newest first. Restored entries are skipped
// unless includeRestored is set.
func (s *SQLiteStorage) ListTrash(includeRestored bool) ([]TrashRecord, error) {
	query := `
		SELECT id, video_id, name, original_path, trash_path, size, deleted_at, restored_at
		FROM trash_items`
	if !includeRestored {
		query += ` WHERE restored_at IS NULL`
	}
	query += ` ORDER BY deleted_at DESC, id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TrashRecord
	for rows.Next() {
		r, err := scanTrashRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}

	return records, rows.Err()
}

// MarkRestored flags a record as restored at the given time.
func (s *SQLiteStorage) MarkRestored(id string, at time.Time) error {
	_, err := s.db.Exec("UPDATE trash_items SET restored_at = ? WHERE id = ?", at.UTC(), id)
	return err
}

// DeleteTrashRecord removes a record by ID
func (s *SQLiteStorage) DeleteTrashRecord(id string) error {
	_, err := s.db.Exec("DELETE FROM trash_items WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrashRecord(row rowScanner) (*TrashRecord, error) {
	var r TrashRecord
	var restoredAt sql.NullTime
	if err := row.Scan(
		&r.ID, &r.VideoID, &r.Name, &r.OriginalPath, &r.TrashPath,
		&r.Size, &r.DeletedAt, &restoredAt,
	); err != nil {
		return nil, err
	}

	if restoredAt.Valid {
		t := restoredAt.Time
		r.RestoredAt = &t
	}

	return &r, nil
}
