package armi

import (
	"bytes"

	"github.com/jabolina/armi/pkg/armi/core"
	"github.com/jabolina/armi/pkg/armi/types"
)

// Hub implements core.Dispatcher: the narrow interface a PeerConnection's
// receive loop uses to hand classified envelopes back to the hub that
// owns it.
var _ core.Dispatcher = (*Hub)(nil)

// HandleSubscriberRemote decodes a SubscriberRemote control envelope and
// installs or cancels the subscriber it describes, binding it to conn.
func (h *Hub) HandleSubscriberRemote(conn *core.PeerConnection, payload []byte) {
	control, err := types.DecodeSubscriberControl(bytes.NewReader(payload))
	if err != nil {
		h.log.WithError(err).Warn("dropping malformed SubscriberRemote control envelope")
		return
	}

	switch control.Intent {
	case types.IntentSubscribe:
		sub := &core.Subscriber{
			ID:        newSubscriberID(),
			Type:      control.Type,
			Flavor:    control.Flavor,
			Predicate: control.Remote,
			Remote:    conn,
		}
		h.index.Add(sub)
		if h.cfg.metrics != nil {
			h.cfg.metrics.SubscriptionsActive.Inc()
		}
	case types.IntentCancel:
		if removed := h.index.RemoveRemote(control.Type, control.Flavor, conn); removed != nil {
			if h.cfg.metrics != nil {
				h.cfg.metrics.SubscriptionsActive.Dec()
			}
		}
	default:
		h.log.Warnf("dropping SubscriberRemote control with unknown intent %d", control.Intent)
	}
}

// HandleCall spawns an invocation worker for an inbound SynchronousCall,
// keeping the receive loop free to read the next frame.
func (h *Hub) HandleCall(conn *core.PeerConnection, req types.CallRequest) {
	go core.RunInvocation(h.registry, conn, req, h.log, h.cfg.metrics)
}

// HandlePublish fans an application envelope received from a peer out to
// local and remote subscribers via the shared publish path.
func (h *Hub) HandlePublish(env types.Envelope) {
	h.dispatchPublish(env)
}

// RemoveConnection evicts conn from the connection table and cascades
// subscriber cleanup: every subscriber installed on behalf of conn, or
// whose remote registration depends on it, is removed from the index and
// has its abort hook invoked with reason.
func (h *Hub) RemoveConnection(conn *core.PeerConnection, reason string) {
	h.connMu.Lock()
	if existing, ok := h.conns[conn.HostPort()]; ok && existing == conn {
		delete(h.conns, conn.HostPort())
	}
	h.connMu.Unlock()

	removed := h.index.RemoveByConnection(conn)
	if h.cfg.metrics != nil && len(removed) > 0 {
		h.cfg.metrics.SubscriptionsActive.Sub(float64(len(removed)))
	}
	for _, sub := range removed {
		if sub.AbortFn != nil {
			sub.AbortFn(reason)
		}
	}
}
