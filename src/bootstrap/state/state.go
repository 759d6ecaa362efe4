package state

import (
	"sync"
	"sync/atomic"
)

// Phase captures what a bootstrap run is doing: Idle, Acquiring, Extracting,
// Verifying, Installing, Merging, or CleaningUp.
type Phase uint32

const (
	// Idle is the phase in which no run is active.
	Idle Phase = iota

	// Acquiring is the phase in which the snapshot archive is downloaded or
	// located. It is the only phase a cancellation has an effect on.
	Acquiring

	// Extracting is the phase in which the archive is unpacked into the
	// staging folder.
	Extracting

	// Verifying is the phase in which the staging folder is checked for
	// completeness and network identity, and marked.
	Verifying

	// Installing is the phase in which the staged entries are swapped into
	// the live data set.
	Installing

	// Merging is the phase in which the staged configuration is folded into
	// the live one.
	Merging

	// CleaningUp is the phase in which the staging folder and archive are
	// removed.
	CleaningUp
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Acquiring:
		return "Acquiring"
	case Extracting:
		return "Extracting"
	case Verifying:
		return "Verifying"
	case Installing:
		return "Installing"
	case Merging:
		return "Merging"
	case CleaningUp:
		return "CleaningUp"
	default:
		return "Unknown"
	}
}

// Manager wraps a Phase with get and set methods. It also owns the single
// slot a background run occupies, and lets callers wait for that run to
// complete.
type Manager struct {
	phase Phase

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// GetPhase returns the current phase.
func (m *Manager) GetPhase() Phase {
	phaseAddr := (*uint32)(&m.phase)
	return Phase(atomic.LoadUint32(phaseAddr))
}

// SetPhase sets the phase.
func (m *Manager) SetPhase(p Phase) {
	phaseAddr := (*uint32)(&m.phase)
	atomic.StoreUint32(phaseAddr, uint32(p))
}

// Acquire claims the run slot. It returns false, and changes nothing, if the
// slot is already taken.
func (m *Manager) Acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return false
	}

	m.running = true
	m.done = make(chan struct{})
	return true
}

// Release frees a slot claimed with Acquire and wakes up the waiters.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.running = false
	m.SetPhase(Idle)
	close(m.done)
}

// GoFunc runs f in a goroutine that holds the slot, previously claimed with
// Acquire, until f returns.
func (m *Manager) GoFunc(f func()) {
	go func() {
		defer m.Release()
		f()
	}()
}

// Running reports whether the slot is taken.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// WaitRoutines blocks until the slot is released. It returns immediately if
// the slot is free.
func (m *Manager) WaitRoutines() {
	m.mu.Lock()
	done := m.done
	running := m.running
	m.mu.Unlock()

	if running {
		<-done
	}
}
