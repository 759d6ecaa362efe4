package bootstrap

// Observer receives the notifications of an Orchestrator. Methods are called
// from the goroutine that produced the event, which may be the background
// run. They must return quickly and must not call Wait.
type Observer interface {
	// StateChanged is called when the mode, file path, phase or running
	// flag changes.
	StateChanged()

	// ProgressChanged carries a human readable status and a percentage.
	ProgressChanged(status string, progress int)

	// StageICompleted is called exactly once per stage I run.
	StageICompleted(success bool, err string)

	// StageIICompleted is called exactly once per stage II run.
	StageIICompleted(success bool, err string)
}

// ObserverFuncs is an Observer made of optional functions.
type ObserverFuncs struct {
	OnStateChanged     func()
	OnProgressChanged  func(status string, progress int)
	OnStageICompleted  func(success bool, err string)
	OnStageIICompleted func(success bool, err string)
}

// StateChanged implements Observer.
func (f ObserverFuncs) StateChanged() {
	if f.OnStateChanged != nil {
		f.OnStateChanged()
	}
}

// ProgressChanged implements Observer.
func (f ObserverFuncs) ProgressChanged(status string, progress int) {
	if f.OnProgressChanged != nil {
		f.OnProgressChanged(status, progress)
	}
}

// StageICompleted implements Observer.
func (f ObserverFuncs) StageICompleted(success bool, err string) {
	if f.OnStageICompleted != nil {
		f.OnStageICompleted(success, err)
	}
}

// StageIICompleted implements Observer.
func (f ObserverFuncs) StageIICompleted(success bool, err string) {
	if f.OnStageIICompleted != nil {
		f.OnStageIICompleted(success, err)
	}
}

// EventType ...
type EventType int

const (
	// StateChangedEvent ...
	StateChangedEvent EventType = iota
	// ProgressEvent ...
	ProgressEvent
	// CompletedEvent ...
	CompletedEvent
)

// Event is a notification delivered through a channel.
type Event struct {
	Type     EventType
	Stage    Stage
	Status   string
	Progress int
	Success  bool
	Err      string
}

// ChanObserver forwards notifications to a channel. State and progress
// events are dropped when the channel is full; completion events are not, so
// the channel must be drained.
type ChanObserver struct {
	C chan Event
}

// NewChanObserver ...
func NewChanObserver(size int) *ChanObserver {
	return &ChanObserver{C: make(chan Event, size)}
}

// StateChanged implements Observer.
func (c *ChanObserver) StateChanged() {
	c.offer(Event{Type: StateChangedEvent})
}

// ProgressChanged implements Observer.
func (c *ChanObserver) ProgressChanged(status string, progress int) {
	c.offer(Event{Type: ProgressEvent, Status: status, Progress: progress})
}

// StageICompleted implements Observer.
func (c *ChanObserver) StageICompleted(success bool, err string) {
	c.C <- Event{Type: CompletedEvent, Stage: StageI, Success: success, Err: err}
}

// StageIICompleted implements Observer.
func (c *ChanObserver) StageIICompleted(success bool, err string) {
	c.C <- Event{Type: CompletedEvent, Stage: StageII, Success: success, Err: err}
}

func (c *ChanObserver) offer(e Event) {
	select {
	case c.C <- e:
	default:
	}
}
