package bootstrap

import (
	"strings"

	"github.com/mosaicnetworks/chainboot/src/common"
)

// Mode selects where stage I gets its archive from.
type Mode uint32

const (
	// Cloud downloads the archive of the network.
	Cloud Mode = iota
	// File uses an archive selected by the user.
	File
)

// String ...
func (m Mode) String() string {
	switch m {
	case Cloud:
		return "cloud"
	case File:
		return "file"
	default:
		return "unknown"
	}
}

// ParseMode converts "cloud" or "file" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "cloud":
		return Cloud, nil
	case "file":
		return File, nil
	default:
		return Cloud, common.NewError(common.ConfigurationError, "unknown mode %q", s)
	}
}

// Stage identifies one of the two halves of a bootstrap.
type Stage uint32

const (
	// StageI acquires, extracts and verifies.
	StageI Stage = iota + 1
	// StageII installs.
	StageII
)

// String ...
func (s Stage) String() string {
	switch s {
	case StageI:
		return "I"
	case StageII:
		return "II"
	default:
		return "?"
	}
}
