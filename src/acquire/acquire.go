// Package acquire obtains the snapshot archive a bootstrap starts from.
//
// Two sources exist. Cloud streams the archive of the network table (or of
// the configuration) into the data directory, reporting progress and
// throughput, and honouring a cooperative cancel flag. File accepts an
// archive the user already has on disk and only checks that it exists.
package acquire

import (
	"context"
	"os"

	"github.com/mosaicnetworks/chainboot/src/common"
)

// Acquirer produces the path of a local snapshot archive.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

// ProgressReporter receives a human readable status and a completion
// percentage between 0 and 100.
type ProgressReporter func(status string, progress int)

// File is the Acquirer for an archive selected by the user. The archive is
// referenced where it is, never copied.
type File struct {
	Path string
}

// NewFile ...
func NewFile(path string) *File {
	return &File{Path: path}
}

// Acquire checks that the archive exists.
func (f *File) Acquire(ctx context.Context) (string, error) {
	if f.Path == "" {
		return "", common.NewError(common.IOError, "no snapshot file selected")
	}

	if _, err := os.Stat(f.Path); err != nil {
		return "", common.WrapError(common.IOError, err, "path does not exist %s", f.Path)
	}

	return f.Path, nil
}
