// Package readiness decides whether cached content may be advertised as
// usable offline.
//
// The tracker moves NotReady -> SyncingInitial when the first write begins,
// SyncingInitial -> Ready once its policy is satisfied, and back to
// SyncingInitial when content drops below the policy. It is never Ready
// while a write is in flight or while no verse is cached.
package readiness

import (
	"sync"

	"github.com/tartil-app/offlinecache/internal/notify"
)

// State is the tracker's state.
type State int

const (
	NotReady State = iota
	SyncingInitial
	Ready
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "not-ready"
	case SyncingInitial:
		return "syncing-initial"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Tracker is the readiness state machine.
type Tracker struct {
	policy Policy
	ready  *notify.Broadcaster[bool]

	mu       sync.Mutex
	state    State
	input    Input
	inFlight int
	prior    State
}

// New creates a NotReady tracker. A nil policy means MinVerses(1).
func New(policy Policy) *Tracker {
	if policy == nil {
		policy = MinVerses(1)
	}
	return &Tracker{
		policy: policy,
		ready:  notify.New(false),
	}
}

// Policy returns the completeness policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Restore sets the starting state from content that is already persisted.
func (t *Tracker) Restore(in Input) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = in
	switch {
	case t.satisfied():
		t.state = Ready
	case in.Stats.Verses > 0 || in.Stats.Audio > 0:
		t.state = SyncingInitial
	default:
		t.state = NotReady
	}
	t.publish()
	return t.state
}

// Begin marks a write as in flight. Readiness is withdrawn until the
// matching Commit or Abort.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight == 0 {
		t.prior = t.state
	}
	t.inFlight++
	t.state = SyncingInitial
	t.publish()
}

// Commit ends a successful write and re-evaluates with the new input.
func (t *Tracker) Commit(in Input) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	t.input = in
	t.evaluate()
	return t.state
}

// Abort ends a failed write. Once no write is in flight the state from
// before the first Begin is restored.
func (t *Tracker) Abort() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	if t.inFlight == 0 {
		t.state = t.prior
		t.publish()
	}
	return t.state
}

// Update re-evaluates with new content totals outside a Begin/Commit pair.
func (t *Tracker) Update(in Input) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = in
	t.evaluate()
	return t.state
}

// SetOnline records connectivity, which policies may consult.
func (t *Tracker) SetOnline(online bool) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input.Online = online
	t.evaluate()
	return t.state
}

// evaluate applies the transition rules. Caller holds t.mu.
func (t *Tracker) evaluate() {
	switch {
	case t.inFlight > 0:
		t.state = SyncingInitial
	case t.satisfied():
		t.state = Ready
	case t.state == Ready:
		t.state = SyncingInitial
	}
	t.publish()
}

func (t *Tracker) satisfied() bool {
	return t.input.Stats.Verses > 0 && t.policy.Satisfied(t.input)
}

func (t *Tracker) publish() {
	t.ready.Publish(t.state == Ready)
}

// IsReady reports whether the state is Ready.
func (t *Tracker) IsReady() bool {
	return t.State() == Ready
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// InFlight returns the number of writes between Begin and Commit/Abort.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Subscribe registers fn for readiness changes. Delivery is asynchronous
// and happens once per change.
func (t *Tracker) Subscribe(fn func(ready bool)) (unsubscribe func()) {
	return t.ready.Subscribe(fn)
}

// Drain waits until queued notifications have been delivered.
func (t *Tracker) Drain() {
	t.ready.Drain()
}

// Close stops notification delivery.
func (t *Tracker) Close() {
	t.ready.Close()
}
