//go:build !windows

package media

import "github.com/google/renameio/v2"

// writeThumbnail replaces path atomically so readers never see a partial JPEG.
func writeThumbnail(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o644)
}
