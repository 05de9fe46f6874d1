package core

import (
	"testing"

	"github.com/jabolina/armi/pkg/armi/types"
)

func TestCallCoordinator_RegisterAndComplete(t *testing.T) {
	c := NewCallCoordinator()
	cancelled := false
	slot := c.Register(1, func() { cancelled = true })
	if c.Len() != 1 {
		t.Fatalf("expected 1 pending call, got %d", c.Len())
	}
	c.Complete(types.CallResponse{Serial: 1, Value: "hi"})
	if !cancelled {
		t.Fatal("expected watchdog cancel to run on completion")
	}
	select {
	case resp := <-slot:
		if resp.Value != "hi" {
			t.Fatalf("got %v", resp.Value)
		}
	default:
		t.Fatal("expected a response in the slot")
	}
	if c.Len() != 0 {
		t.Fatalf("expected pending table to drain, got %d", c.Len())
	}
}

// The watchdog's context wakes the caller as a side effect of cancel, so
// the response must already be sitting in the buffered slot by then or
// the caller could conclude the call failed despite an on-time response.
func TestCallCoordinator_ResponseIsDeliveredBeforeWatchdogCancel(t *testing.T) {
	c := NewCallCoordinator()
	var slotFilledAtCancel bool
	var slot chan types.CallResponse
	slot = c.Register(1, func() { slotFilledAtCancel = len(slot) == 1 })
	c.Complete(types.CallResponse{Serial: 1, Value: "hi"})
	if !slotFilledAtCancel {
		t.Fatal("expected the response in the slot before the watchdog cancel runs")
	}
}

func TestCallCoordinator_CompleteUnknownSerialIsDropped(t *testing.T) {
	c := NewCallCoordinator()
	c.Register(1, func() {})
	c.Complete(types.CallResponse{Serial: 99, Value: "ghost"})
	if c.Len() != 1 {
		t.Fatalf("expected the real pending call to remain untouched, got %d", c.Len())
	}
}

func TestCallCoordinator_ForgetThenCompleteIsDropped(t *testing.T) {
	c := NewCallCoordinator()
	slot := c.Register(1, func() {})
	c.Forget(1)
	c.Complete(types.CallResponse{Serial: 1, Value: "late"})
	select {
	case <-slot:
		t.Fatal("expected a forgotten call's late response to be dropped")
	default:
	}
}

func TestCallCoordinator_FailAllWakesEveryCaller(t *testing.T) {
	c := NewCallCoordinator()
	slotA := c.Register(1, func() {})
	slotB := c.Register(2, func() {})

	c.FailAll(&types.ArmiError{Kind: types.KindIO, Message: "connection closing"})

	for _, slot := range []chan types.CallResponse{slotA, slotB} {
		select {
		case resp := <-slot:
			if resp.Err == nil || resp.Err.Kind != types.KindIO {
				t.Fatalf("got %+v", resp)
			}
		default:
			t.Fatal("expected every outstanding caller to be woken")
		}
	}
	if c.Len() != 0 {
		t.Fatalf("expected pending table cleared, got %d", c.Len())
	}
}
