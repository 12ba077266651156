package state

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a Synod node or role: CatchingUp, Running, or
// Shutdown
type State uint32

const (
	// CatchingUp is the state in which a node replays recovery rounds from its
	// next available slot until it reaches the cluster's horizon. Acceptors
	// and Learners already answer requests, but the node does not take
	// submissions.
	CatchingUp State = iota

	// Running is the state in which a node accepts submissions and runs its
	// background hole-filling loop.
	Running

	// Shutdown is the state in which a node stops responding to external events
	// and closes its transports.
	Shutdown
)

// WGLIMIT is the default maximum number of goroutines that can be launched
// through GoFunc
const WGLIMIT = 20

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case CatchingUp:
		return "CatchingUp"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. It is also used to limit the
// number of goroutines launched by a role, and to wait for all of them to
// complete.
type Manager struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
	limit   int32
	dropped uint64
}

// SetLimit changes the maximum number of goroutines running at the same time.
// A limit of 0 or less restores WGLIMIT.
func (b *Manager) SetLimit(limit int) {
	atomic.StoreInt32(&b.limit, int32(limit))
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// GoFunc launches a goroutine for a given function, if there are currently
// less than the limit running. It increments the waitgroup. When the limit is
// reached the function is not run, and GoFunc returns false.
func (b *Manager) GoFunc(f func()) bool {
	limit := atomic.LoadInt32(&b.limit)
	if limit <= 0 {
		limit = WGLIMIT
	}

	if atomic.AddInt32(&b.wgCount, 1) > limit {
		atomic.AddInt32(&b.wgCount, -1)
		atomic.AddUint64(&b.dropped, 1)
		return false
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()

	return true
}

// Running returns the number of goroutines launched through GoFunc that have
// not returned yet.
func (b *Manager) Running() int {
	return int(atomic.LoadInt32(&b.wgCount))
}

// Dropped returns the number of functions GoFunc refused to run.
func (b *Manager) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// WaitRoutines waits for all the goroutines in the waitgroup.
func (b *Manager) WaitRoutines() {
	b.wg.Wait()
}
