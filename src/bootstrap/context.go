package bootstrap

import (
	"sync"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/mosaicnetworks/chainboot/src/config"
)

// AppContext is the application-wide owner of the Orchestrator. The hosting
// process creates one and asks it for the Orchestrator.
type AppContext struct {
	mu           sync.Mutex
	orchestrator *Orchestrator
}

// NewAppContext ...
func NewAppContext() *AppContext {
	return &AppContext{}
}

// NewOrchestrator builds the Orchestrator of the context. It fails with a
// ConcurrencyError if one already exists and was not closed.
func (a *AppContext) NewOrchestrator(conf *config.Config, deps Deps) (*Orchestrator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.orchestrator != nil {
		return nil, common.NewError(common.ConcurrencyError, "a bootstrap orchestrator already exists")
	}

	o, err := newOrchestrator(a, conf, deps)
	if err != nil {
		return nil, err
	}

	a.orchestrator = o
	return o, nil
}

// Orchestrator returns the Orchestrator of the context, or nil.
func (a *AppContext) Orchestrator() *Orchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orchestrator
}

func (a *AppContext) release(o *Orchestrator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.orchestrator == o {
		a.orchestrator = nil
	}
}
