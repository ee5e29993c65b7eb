package api

import (
	"vidshelf/internal/media"
	"vidshelf/internal/storage"
)

type HealthResponse struct {
	Status         string          `json:"status"`
	Version        string          `json:"version"`
	ThumbnailCache *CacheStatsInfo `json:"thumbnailCache,omitempty"`
}

type CacheStatsInfo struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// VideoResponse is a FileRecord plus the URL its thumbnail is served from.
type VideoResponse struct {
	media.FileRecord
	ThumbnailURL string `json:"thumbnailUrl"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
}

// Mutation DTOs

type RenameRequest struct {
	VideoID string `json:"videoId"`
	NewName string `json:"newName,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
}

type RenameResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type MoveRequest struct {
	VideoID string `json:"videoId"`
	Folder  string `json:"folder,omitempty"`
}

type MoveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Name    string `json:"name"`
	Folder  string `json:"folder"`
}

type DeleteRequest struct {
	VideoID string `json:"videoId"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TrashID string `json:"trashId"`
}

// Trash DTOs

type TrashListResponse struct {
	Items []storage.TrashRecord `json:"items"`
}

type RestoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Config DTOs

type LibrarySettings struct {
	Path               string `json:"path"`
	RestrictToReserved bool   `json:"restrictToReserved"`
	SortOrder          string `json:"sortOrder"`
	Locale             string `json:"locale"`
}

type ConfigResponse struct {
	Library        LibrarySettings `json:"library"`
	ReservedFolder string          `json:"reservedFolder"`
	Extensions     []string        `json:"extensions"`
}

type ReloadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
