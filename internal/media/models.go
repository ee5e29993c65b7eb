package media

import (
	"errors"
	"time"
)

const (
	// ReservedFolder is the subfolder scanned in restricted mode and the
	// default destination of move requests.
	ReservedFolder = "qqq"
	// ExclusionMarker hides files in restricted mode when it appears in the name.
	ExclusionMarker = "ggg"
)

var (
	ErrNotConfigured = errors.New("video directory is not configured")
	ErrNotFound      = errors.New("video not found")
)

type SortOrder string

const (
	SortByCreatedDesc SortOrder = "newest"
	SortByName        SortOrder = "name"
)

// ParseSortOrder accepts the persisted setting names and a few aliases.
func ParseSortOrder(value string) (SortOrder, bool) {
	switch value {
	case "newest", "created", "by-creation-time-desc":
		return SortByCreatedDesc, true
	case "name", "by-name":
		return SortByName, true
	default:
		return "", false
	}
}

// ScanOptions is an immutable snapshot of the library settings for one scan.
type ScanOptions struct {
	Root                string
	RestrictToSubfolder bool
	SortOrder           SortOrder
	// Locale is a BCP 47 tag used for by-name collation.
	Locale string
}

// FileRecord describes one video file found during a scan.
type FileRecord struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Folder     string    `json:"folder"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified"`
	CreatedAt  time.Time `json:"created"`
	Extension  string    `json:"extension"`
}
