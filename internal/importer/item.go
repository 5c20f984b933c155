package importer

import (
	"sync"
	"time"

	"framefeed/internal/source"
)

// State represents the lifecycle of one media item inside an import session.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateDownloaded  State = "downloaded"
	StatePersisted   State = "persisted"
	StateProcessing  State = "processing"
	StateProcessed   State = "processed"
	StateFailed      State = "failed"
)

var allStates = []State{
	StatePending,
	StateDownloading,
	StateDownloaded,
	StatePersisted,
	StateProcessing,
	StateProcessed,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// IsValid reports whether the state is one of the known lifecycle states.
func (s State) IsValid() bool {
	_, ok := stateSet[s]
	return ok
}

// IsTerminal reports whether an item in this state will see no further work.
func (s State) IsTerminal() bool {
	return s == StateProcessed || s == StateFailed
}

var stateTransitions = map[State]map[State]struct{}{
	StatePending:     {StateDownloading: {}, StateFailed: {}},
	StateDownloading: {StateDownloaded: {}, StateFailed: {}},
	StateDownloaded:  {StatePersisted: {}, StateFailed: {}},
	StatePersisted:   {StateProcessing: {}, StateFailed: {}},
	StateProcessing:  {StateProcessed: {}, StateFailed: {}},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s State) CanTransition(next State) bool {
	targets, ok := stateTransitions[s]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// Transition records when an item entered a state.
type Transition struct {
	State State
	At    time.Time
}

// Item tracks one media descriptor through a session. State changes go
// through SetState so illegal transitions surface instead of silently
// corrupting the session report. Every state change is stamped, so a slow
// item's history shows where the time went.
type Item struct {
	Descriptor source.Descriptor
	Batch      int
	LocalPath  string

	mu      sync.Mutex
	state   State
	err     error
	history []Transition
}

// NewItem wraps a source descriptor for tracking within batch number batch.
func NewItem(desc source.Descriptor, batch int) *Item {
	return &Item{
		Descriptor: desc,
		Batch:      batch,
		state:      StatePending,
		history:    []Transition{{State: StatePending, At: time.Now()}},
	}
}

// State returns the item's current lifecycle state.
func (i *Item) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Err returns the failure recorded by Fail, if any.
func (i *Item) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// SetState advances the item. It returns false when the transition is not
// legal from the current state; the item is left unchanged in that case.
func (i *Item) SetState(next State) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.state.CanTransition(next) {
		return false
	}
	i.state = next
	i.history = append(i.history, Transition{State: next, At: time.Now()})
	return true
}

// History returns the item's state transitions in order, starting with the
// initial pending entry.
func (i *Item) History() []Transition {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Transition, len(i.history))
	copy(out, i.history)
	return out
}

// Fail moves the item to the failed state, recording the first error. An item
// already in a terminal state stays where it is.
func (i *Item) Fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state.IsTerminal() {
		return
	}
	i.state = StateFailed
	i.history = append(i.history, Transition{State: StateFailed, At: time.Now()})
	if i.err == nil {
		i.err = err
	}
}
