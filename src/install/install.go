// Package install moves a verified staging folder into the live data set
// (stage II).
//
// Each entry of the live data set goes through a small state machine whose
// state is read back from the file system, so the sequence can be re-run
// after a crash at any point and converges to the same layout.
package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/confmerge"
	"github.com/sirupsen/logrus"
)

// DisposableFiles are removed from the data directory after an install. The
// node rebuilds them.
var DisposableFiles = []string{"peers.dat", "banlist.dat"}

// Step is a part of the install sequence.
type Step int

const (
	// SwapStep moves the staged entries into the live data set.
	SwapStep Step = iota
	// MergeStep merges the staged configuration.
	MergeStep
	// CleanupStep removes disposable files, the staging folder and archive.
	CleanupStep
)

// Installer runs stage II.
type Installer struct {
	DataDir    string
	StagingDir string
	Archive    string
	Entries    []string

	// LiveConfig is the node configuration file, StagedConfigName the name
	// of its counterpart inside the staging folder.
	LiveConfig       string
	StagedConfigName string

	Merger *confmerge.Merger

	// OnStep, if set, is called when a step begins.
	OnStep func(Step)

	logger *logrus.Entry
}

// Result describes a successful install.
type Result struct {
	ConfigMerged bool
	States       map[string]EntryState
}

// NewInstaller ...
func NewInstaller(dataDir, stagingDir, archive string,
	entries []string,
	liveConfig, stagedConfigName string,
	merger *confmerge.Merger,
	logger *logrus.Entry) *Installer {

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Installer{
		DataDir:          dataDir,
		StagingDir:       stagingDir,
		Archive:          archive,
		Entries:          entries,
		LiveConfig:       liveConfig,
		StagedConfigName: stagedConfigName,
		Merger:           merger,
		logger:           logger,
	}
}

// Install swaps every entry in order, merges the configuration, removes the
// disposable files and cleans up the staging folder and archive. A failure
// stops the sequence without undoing the entries already swapped.
func (i *Installer) Install(progress func(status string, pct int)) (Result, error) {
	res := Result{States: make(map[string]EntryState)}

	if _, err := os.Stat(i.StagingDir); err != nil {
		return res, common.WrapError(common.IOError, err, "path does not exist %s", i.StagingDir)
	}

	i.step(SwapStep)

	for n, name := range i.Entries {
		report(progress, fmt.Sprintf("Installing %s", name), 100*n/(len(i.Entries)+1))

		e := NewEntry(i.DataDir, i.StagingDir, name)
		from := Classify(e)

		to, err := Swap(e)
		res.States[name] = to
		if err != nil {
			return res, err
		}

		i.logger.WithFields(logrus.Fields{
			"entry": name,
			"from":  from,
			"to":    to,
		}).Info("Entry installed")
	}

	if i.Merger != nil && i.StagedConfigName != "" {
		i.step(MergeStep)
		report(progress, "Merging configuration", 100*len(i.Entries)/(len(i.Entries)+1))

		merged, err := i.Merger.Merge(i.LiveConfig, filepath.Join(i.StagingDir, i.StagedConfigName))
		if err != nil {
			return res, err
		}
		res.ConfigMerged = merged
	}

	i.step(CleanupStep)

	for _, name := range DisposableFiles {
		p := filepath.Join(i.DataDir, name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			i.logger.WithError(err).WithField("path", p).Warn("Cannot remove file")
		}
	}

	if err := Cleanup(i.StagingDir, i.Archive); err != nil {
		return res, err
	}

	report(progress, "Installed", 100)

	return res, nil
}

// Cleanup removes the staging folder and the downloaded archive. Missing
// paths are ignored.
func Cleanup(stagingDir, archive string) error {
	if err := os.RemoveAll(stagingDir); err != nil {
		return common.WrapError(common.IOError, err, "failed to remove %s", stagingDir)
	}
	if archive != "" {
		if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
			return common.WrapError(common.IOError, err, "failed to remove %s", archive)
		}
	}
	return nil
}

func (i *Installer) step(s Step) {
	if i.OnStep != nil {
		i.OnStep(s)
	}
}

func report(fn func(string, int), status string, pct int) {
	if fn != nil {
		fn(status, pct)
	}
}
