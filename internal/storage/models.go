package storage

import "time"

// TrashRecord tracks a soft-deleted video until it is restored.
type TrashRecord struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id"`
	Name         string     `json:"name"`
	OriginalPath string     `json:"original_path"`
	TrashPath    string     `json:"-"`
	Size         int64      `json:"size"`
	DeletedAt    time.Time  `json:"deleted_at"`
	RestoredAt   *time.Time `json:"restored_at,omitempty"`
}
