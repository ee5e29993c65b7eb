//go:build linux

package media

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// creationTime reads the birth time through statx. Filesystems that do not
// record it report the modification time instead.
func creationTime(path string, info os.FileInfo) time.Time {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME, &stx); err != nil {
		return info.ModTime()
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}
