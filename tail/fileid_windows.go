//go:build windows

package tail

import (
	"os"
	"syscall"
)

// FileID returns the NTFS file index of path. It follows the file across
// renames and changes when a log is recreated under the same name; creation
// time does not, since tunneling carries it over to the new file.
func FileID(path string, _ os.FileInfo) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	var d syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(syscall.Handle(f.Fd()), &d); err != nil {
		return 0
	}
	return uint64(d.FileIndexHigh)<<32 | uint64(d.FileIndexLow)
}
