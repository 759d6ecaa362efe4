//go:build windows
// +build windows

package common

import "golang.org/x/sys/windows"

// AvailableDiskSpace returns the number of bytes the calling user can still
// write to the volume holding path.
func AvailableDiskSpace(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0, err
	}

	return free, nil
}
