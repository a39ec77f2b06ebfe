package state

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a chronicle node: Running, Offline or Shutdown.
type State uint32

const (
	// Running is the state in which a node disseminates and certifies
	// elements and responds to requests.
	Running State = iota

	// Offline is the state a node enters when repeated requests to its
	// neighbors fail. It keeps answering requests and delivering what it
	// holds, but stops spooling until it is resumed.
	Offline

	// Shutdown is the state in which a node stops responding to external
	// events and closes its transport.
	Shutdown
)

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.GoFunc
const WGLIMIT = 20

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Offline:
		return "Offline"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. It is also used to limit the
// number of goroutines launched by the node, and to wait for all of them to
// complete.
type Manager struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
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

// SwapState sets the state to next if it currently is prev, and reports
// whether it did.
func (b *Manager) SwapState(prev, next State) bool {
	stateAddr := (*uint32)(&b.state)
	return atomic.CompareAndSwapUint32(stateAddr, uint32(prev), uint32(next))
}

// GoFunc launches a goroutine for a given function, if there are currently
// less than WGLIMIT running. It increments the waitgroup and reports whether
// the function was launched.
func (b *Manager) GoFunc(f func()) bool {
	if atomic.AddInt32(&b.wgCount, 1) > WGLIMIT {
		atomic.AddInt32(&b.wgCount, -1)
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

// WaitRoutines waits for all the goroutines in the waitgroup.
func (b *Manager) WaitRoutines() {
	b.wg.Wait()
}
