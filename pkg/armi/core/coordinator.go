package core

import (
	"sync"

	"github.com/jabolina/armi/pkg/armi/types"
)

// pendingCall is the single-slot queue a blocked caller waits on, plus the
// watchdog cancel function that races a late response against the
// timeout.
type pendingCall struct {
	slot   chan types.CallResponse
	cancel func()
}

// CallCoordinator tracks outstanding calls for one peer connection, keyed
// by serial. It is the connection's half of the call/response correlation
// machinery; the watchdog timer itself lives with the caller
// (PeerConnection.Invoke), which resolves each serial exactly once.
type CallCoordinator struct {
	mu      sync.Mutex
	pending map[uint64]*pendingCall
}

func NewCallCoordinator() *CallCoordinator {
	return &CallCoordinator{pending: make(map[uint64]*pendingCall)}
}

// Register allocates the response slot for serial before the call is
// transmitted, so a response racing the write can never be missed.
func (c *CallCoordinator) Register(serial uint64, cancel func()) chan types.CallResponse {
	slot := make(chan types.CallResponse, 1)
	c.mu.Lock()
	c.pending[serial] = &pendingCall{slot: slot, cancel: cancel}
	c.mu.Unlock()
	return slot
}

// Complete delivers an inbound SynchronousResponse to the waiting caller.
// A response for an unknown or already-resolved serial is silently
// dropped: the watchdog already won the race, or the connection already
// discarded this call on shutdown.
func (c *CallCoordinator) Complete(resp types.CallResponse) {
	c.mu.Lock()
	pc, ok := c.pending[resp.Serial]
	if ok {
		delete(c.pending, resp.Serial)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	// Deliver before cancelling the watchdog: the slot is buffered, so the
	// response is visible to the caller by the time its context wakes it.
	pc.slot <- resp
	pc.cancel()
}

// Forget discards a call's bookkeeping without delivering a response,
// used by the watchdog when it fires first: a response that arrives
// afterward finds nothing in the map and is dropped by Complete.
func (c *CallCoordinator) Forget(serial uint64) {
	c.mu.Lock()
	delete(c.pending, serial)
	c.mu.Unlock()
}

// FailAll wakes every outstanding caller with a terminal error, used on
// peer-connection shutdown.
func (c *CallCoordinator) FailAll(err *types.ArmiError) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	for serial, pc := range pending {
		pc.slot <- types.CallResponse{Serial: serial, Err: err}
		pc.cancel()
	}
}

// Len reports the number of outstanding calls, for test assertions that
// the table drains after a call.
func (c *CallCoordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
