package install

import (
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/chainboot/src/common"
)

// BackupSuffix is appended to a live entry to name its backup.
const BackupSuffix = ".bak"

// EntryState is the position of one entry of the live data set in the swap
// sequence. It is derived from which of the live, staged and backup copies
// exist, so it survives a crash without being recorded anywhere.
type EntryState int

const (
	// Absent: no copy of the entry exists.
	Absent EntryState = iota
	// StagedOnly: only the staged copy exists, nothing to back up.
	StagedOnly
	// LiveOnly: only the live copy exists, nothing to install.
	LiveOnly
	// LiveAndStaged: both live and staged copies exist, with or without an
	// older backup.
	LiveAndStaged
	// BackupAndStaged: the live copy was moved to the backup, the staged copy
	// is waiting to be moved in.
	BackupAndStaged
	// LiveOnlyNew: the staged copy is live and the previous one is the
	// backup.
	LiveOnlyNew
	// BackupOnly: only the backup exists.
	BackupOnly
)

// String ...
func (s EntryState) String() string {
	switch s {
	case Absent:
		return "Absent"
	case StagedOnly:
		return "StagedOnly"
	case LiveOnly:
		return "LiveOnly"
	case LiveAndStaged:
		return "LiveAndStaged"
	case BackupAndStaged:
		return "BackupAndStaged"
	case LiveOnlyNew:
		return "LiveOnlyNew"
	case BackupOnly:
		return "BackupOnly"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further step applies to the state.
func (s EntryState) Terminal() bool {
	switch s {
	case StagedOnly, LiveAndStaged, BackupAndStaged:
		return false
	default:
		return true
	}
}

// Entry locates the three copies of one named entry.
type Entry struct {
	Name   string
	Live   string
	Staged string
	Backup string
}

// NewEntry returns the entry called name, live under dataDir and staged
// under stagingDir.
func NewEntry(dataDir, stagingDir, name string) Entry {
	live := filepath.Join(dataDir, name)
	return Entry{
		Name:   name,
		Live:   live,
		Staged: filepath.Join(stagingDir, name),
		Backup: live + BackupSuffix,
	}
}

// Classify inspects the file system and returns the state of the entry.
func Classify(e Entry) EntryState {
	live, staged, backup := exists(e.Live), exists(e.Staged), exists(e.Backup)

	switch {
	case staged && live:
		return LiveAndStaged
	case staged && backup:
		return BackupAndStaged
	case staged:
		return StagedOnly
	case live && backup:
		return LiveOnlyNew
	case live:
		return LiveOnly
	case backup:
		return BackupOnly
	default:
		return Absent
	}
}

// Advance performs the single guarded step leaving the current state and
// returns the state reached.
func Advance(e Entry) (EntryState, error) {
	switch Classify(e) {
	case LiveAndStaged:
		if err := os.RemoveAll(e.Backup); err != nil {
			return LiveAndStaged, common.WrapError(common.IOError, err, "failed to remove %s", e.Backup)
		}
		if err := os.Rename(e.Live, e.Backup); err != nil {
			return LiveAndStaged, common.WrapError(common.IOError, err, "failed to rename %s to %s", e.Live, e.Backup)
		}
	case StagedOnly, BackupAndStaged:
		if err := os.Rename(e.Staged, e.Live); err != nil {
			return Classify(e), common.WrapError(common.IOError, err, "failed to rename %s to %s", e.Staged, e.Live)
		}
	}
	return Classify(e), nil
}

// Swap advances the entry until it reaches a terminal state.
func Swap(e Entry) (EntryState, error) {
	s := Classify(e)
	for !s.Terminal() {
		next, err := Advance(e)
		if err != nil {
			return next, err
		}
		if next == s {
			return s, common.NewError(common.IOError, "%s is stuck in state %s", e.Name, s)
		}
		s = next
	}
	return s, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
