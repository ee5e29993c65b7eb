package media

import (
	"path/filepath"
	"strings"
)

const defaultContentType = "video/mp4"

var supportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".ts":   "video/mp2t",
}

// Extension returns the lower-cased extension of filename, including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func IsSupportedVideo(filename string) bool {
	_, ok := supportedVideoExtensions[Extension(filename)]
	return ok
}

// GetContentType maps a file name or bare extension to its video MIME type.
// Unknown extensions fall back to video/mp4.
func GetContentType(filename string) string {
	if contentType, ok := supportedVideoExtensions[Extension(filename)]; ok {
		return contentType
	}
	return defaultContentType
}

// SupportedExtensions lists the indexed extensions in no particular order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedVideoExtensions))
	for ext := range supportedVideoExtensions {
		exts = append(exts, ext)
	}
	return exts
}
