package stage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/mosaicnetworks/chainboot/src/common"
)

// Extractor unpacks an archive into a directory, overwriting existing files.
// progress, when not nil, is called after every entry.
type Extractor interface {
	Extract(archive, dir string, progress func(done, total int)) error
}

// ZipExtractor is the Extractor for zip archives.
type ZipExtractor struct{}

// Extract implements Extractor. Entries that would land outside dir are
// rejected.
func (ZipExtractor) Extract(archive, dir string, progress func(done, total int)) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return common.WrapError(common.FormatError, err, "cannot read archive %s", archive)
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return common.WrapError(common.IOError, err, "cannot resolve %s", dir)
	}

	for i, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))

		rel, err := filepath.Rel(root, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return common.NewError(common.FormatError, "archive entry %s escapes %s", f.Name, dir)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return common.WrapError(common.IOError, err, "failed to create %s", target)
			}
		} else if err := extractFile(f, target); err != nil {
			return err
		}

		if progress != nil {
			progress(i+1, len(r.File))
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return common.WrapError(common.IOError, err, "failed to create %s", filepath.Dir(target))
	}

	src, err := f.Open()
	if err != nil {
		return common.WrapError(common.FormatError, err, "cannot read archive entry %s", f.Name)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return common.WrapError(common.IOError, err, "failed to create file: %s", target)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return common.WrapError(common.IOError, err, "failed to extract %s", f.Name)
	}

	if err := dst.Close(); err != nil {
		return common.WrapError(common.IOError, err, "failed to write %s", target)
	}

	return nil
}
