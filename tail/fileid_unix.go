//go:build !windows

package tail

import (
	"os"
	"syscall"
)

// FileID returns the inode of the file, or 0 when the platform does not expose one.
func FileID(_ string, fi os.FileInfo) uint64 {
	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Ino)
}
