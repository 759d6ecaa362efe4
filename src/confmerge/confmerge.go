// Package confmerge folds the configuration file shipped with a snapshot
// into the live node configuration.
//
// The merge is line based. Lines of the live file containing the excluded
// keyword are dropped, every line of the staged file is appended verbatim.
// Keys are neither parsed nor deduplicated; the node reading the merged
// file resolves repeated keys.
package confmerge

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/sirupsen/logrus"
)

const backupSuffix = ".bak"

// Merger merges configuration files, dropping lines that contain Keyword
// from the live side.
type Merger struct {
	Keyword string
	logger  *logrus.Entry
}

// NewMerger ...
func NewMerger(keyword string, logger *logrus.Entry) *Merger {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Merger{
		Keyword: keyword,
		logger:  logger,
	}
}

// MergeLines returns the live lines without those containing keyword,
// followed by the staged lines.
func MergeLines(live, staged []string, keyword string) []string {
	res := make([]string, 0, len(live)+len(staged))
	for _, l := range live {
		if keyword != "" && strings.Contains(l, keyword) {
			continue
		}
		res = append(res, l)
	}
	return append(res, staged...)
}

// BackupPath returns the path the live configuration is moved to before a
// merge.
func BackupPath(live string) string {
	return live + backupSuffix
}

// Merge folds the staged file into the live file and reports whether the
// live file was changed. A missing staged file is not an error. When the live
// file exists, it is kept as the single backup generation next to it.
func (m *Merger) Merge(live, staged string) (bool, error) {
	if !exists(staged) {
		m.logger.WithField("staged", staged).Debug("No staged configuration, nothing to merge")
		return false, nil
	}

	if !exists(live) {
		if err := copyFile(staged, live); err != nil {
			return false, err
		}
		m.logger.WithField("live", live).Info("Installed staged configuration")
		return true, nil
	}

	backup := BackupPath(live)

	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		return false, common.WrapError(common.IOError, err, "failed to remove %s", backup)
	}

	if err := os.Rename(live, backup); err != nil {
		return false, common.WrapError(common.IOError, err, "failed to rename %s", live)
	}

	liveLines, err := readLines(backup)
	if err != nil {
		return false, err
	}

	stagedLines, err := readLines(staged)
	if err != nil {
		return false, err
	}

	merged := MergeLines(liveLines, stagedLines, m.Keyword)

	if err := writeLines(live, merged); err != nil {
		return false, err
	}

	m.logger.WithFields(logrus.Fields{
		"live":    live,
		"backup":  backup,
		"dropped": len(liveLines) + len(stagedLines) - len(merged),
	}).Info("Merged staged configuration")

	return true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapError(common.IOError, err, "failed to open %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, common.WrapError(common.IOError, err, "failed to read %s", path)
	}
	return lines, nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return common.WrapError(common.IOError, err, "failed to open %s", path)
	}

	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return common.WrapError(common.IOError, err, "failed to write %s", path)
	}
	if err := f.Close(); err != nil {
		return common.WrapError(common.IOError, err, "failed to write %s", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return common.WrapError(common.IOError, err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return common.WrapError(common.IOError, err, "failed to create file: %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return common.WrapError(common.IOError, err, "failed to copy %s", src)
	}
	if err := out.Close(); err != nil {
		return common.WrapError(common.IOError, err, "failed to write %s", dst)
	}
	return nil
}
