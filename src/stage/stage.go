// Package stage manages the staging folder a snapshot is extracted into.
//
// A staging folder is in one of three states: absent, present but unmarked
// (untrusted, possibly a partial extraction left behind for diagnosis), or
// present and marked (verified, ready to be installed). The marker is a plain
// text file holding the hex encoded digest of the archive the folder was
// extracted from.
package stage

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/sirupsen/logrus"
)

// Stager extracts archives into a staging folder and marks the folder once
// its content is verified.
type Stager struct {
	dir        string
	markerName string
	extractor  Extractor
	logger     *logrus.Entry
}

// NewStager ...
func NewStager(dir, markerName string, extractor Extractor, logger *logrus.Entry) *Stager {
	if extractor == nil {
		extractor = ZipExtractor{}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Stager{
		dir:        dir,
		markerName: markerName,
		extractor:  extractor,
		logger:     logger,
	}
}

// Dir returns the staging folder.
func (s *Stager) Dir() string {
	return s.dir
}

// MarkerPath returns the path of the verified marker.
func (s *Stager) MarkerPath() string {
	return filepath.Join(s.dir, s.markerName)
}

// Exists reports whether the staging folder is present.
func (s *Stager) Exists() bool {
	_, err := os.Stat(s.dir)
	return err == nil
}

// Verified reports whether the staging folder carries the marker.
func (s *Stager) Verified() bool {
	_, err := os.Stat(s.MarkerPath())
	return err == nil
}

// Extract unpacks archive into a fresh staging folder. A staging folder left
// over from an earlier attempt is replaced. On failure, whatever was
// extracted stays in place.
func (s *Stager) Extract(archive string, progress func(done, total int)) error {
	if s.Exists() {
		s.logger.WithField("dir", s.dir).Warn("Removing stale staging folder")
		if err := os.RemoveAll(s.dir); err != nil {
			return common.WrapError(common.IOError, err, "failed to remove %s", s.dir)
		}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return common.WrapError(common.IOError, err, "failed to create %s", s.dir)
	}

	s.logger.WithFields(logrus.Fields{
		"archive": archive,
		"dir":     s.dir,
	}).Info("Extracting snapshot")

	if err := s.extractor.Extract(archive, s.dir, progress); err != nil {
		if uerr := s.Unmark(); uerr != nil {
			s.logger.WithError(uerr).Warn("Cannot remove marker")
		}
		return common.WrapError(kindOf(err), err, "zip extract from %s to %s failed", archive, s.dir)
	}

	if s.Verified() {
		if err := s.Unmark(); err != nil {
			return err
		}
		return common.NewError(common.FormatError, "archive %s contains the reserved entry %s", archive, s.markerName)
	}

	return nil
}

// Unmark removes the marker, if any.
func (s *Stager) Unmark() error {
	if err := os.RemoveAll(s.MarkerPath()); err != nil {
		return common.WrapError(common.IOError, err, "failed to remove %s", s.MarkerPath())
	}
	return nil
}

// MarkVerified writes the marker, recording digest.
func (s *Stager) MarkVerified(digest string) error {
	if err := ioutil.WriteFile(s.MarkerPath(), []byte(digest), 0644); err != nil {
		return common.WrapError(common.IOError, err, "unable to create %s", s.MarkerPath())
	}

	s.logger.WithFields(logrus.Fields{
		"marker": s.MarkerPath(),
		"digest": digest,
	}).Info("Staged snapshot verified")

	return nil
}

// Digest returns the digest recorded in the marker.
func (s *Stager) Digest() (string, error) {
	b, err := ioutil.ReadFile(s.MarkerPath())
	if err != nil {
		return "", common.WrapError(common.IOError, err, "path %s does not exist", s.MarkerPath())
	}
	return strings.TrimSpace(string(b)), nil
}

// Remove deletes the staging folder and everything in it.
func (s *Stager) Remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return common.WrapError(common.IOError, err, "failed to remove %s", s.dir)
	}
	return nil
}

func kindOf(err error) common.ErrKind {
	for _, k := range []common.ErrKind{common.FormatError, common.IOError} {
		if common.Is(err, k) {
			return k
		}
	}
	return common.IOError
}
