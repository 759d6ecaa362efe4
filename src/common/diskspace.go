//go:build !windows
// +build !windows

package common

import "golang.org/x/sys/unix"

// AvailableDiskSpace returns the number of bytes an unprivileged user can
// still write to the file system holding path.
func AvailableDiskSpace(path string) (uint64, error) {
	s := unix.Statfs_t{}
	if err := unix.Statfs(path, &s); err != nil {
		return 0, err
	}

	return uint64(s.Bavail) * uint64(s.Bsize), nil
}
