package armi

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jabolina/armi/pkg/armi/core"
	"github.com/jabolina/armi/pkg/armi/types"
)

func newSubscriberID() string { return uuid.NewString() }

// Publish wraps value in an envelope tagged with typeName and the given
// flavor (nil meaning "no flavor") and fans it out through the shared
// publish path. The closed, reflection-free Value grammar has no runtime
// type identity of its own, so the caller names the type explicitly; it
// is the same tag its subscribers register under.
func (h *Hub) Publish(typeName string, value types.Value, flavor *string) error {
	payload, err := types.EncodeValueToBytes(value)
	if err != nil {
		return types.NewArmiError(types.KindInvocation, errors.Wrap(err, "armi: publish value"))
	}
	h.dispatchPublish(types.Envelope{Type: typeName, Flavor: flavor, Payload: payload})
	return nil
}

// dispatchPublish is the publish algorithm: two index lookups (exact
// flavor, then the type's any-flavor list when flavor is non-nil), each
// already snapshotted by SubscriptionIndex.Match, then per-subscriber
// predicate evaluation and delivery. A remote subscriber's transmit
// failure tears its connection down asynchronously but never aborts
// fan-out to the remaining subscribers.
func (h *Hub) dispatchPublish(env types.Envelope) {
	if h.cfg.metrics != nil {
		h.cfg.metrics.PublishTotal.WithLabelValues(env.Type).Inc()
	}

	matches := h.index.Match(env.Type, env.Flavor)
	if len(matches) == 0 {
		return
	}

	var decoded types.Value
	var decodedOnce bool
	decode := func() types.Value {
		if !decodedOnce {
			decodedOnce = true
			decoded, _ = types.DecodeValueFromBytes(env.Payload)
		}
		return decoded
	}

	for _, sub := range matches {
		if sub.Predicate != nil && !sub.Predicate.Matches(decode()) {
			continue
		}
		if sub.Remote != nil {
			h.deliverRemote(sub, env)
			continue
		}
		h.deliverLocal(sub, env)
	}
}

func (h *Hub) deliverLocal(sub *core.Subscriber, env types.Envelope) {
	if sub.LocalFn == nil {
		return
	}
	sub.LocalFn(env)
	if h.cfg.metrics != nil {
		h.cfg.metrics.PublishDeliveredTotal.WithLabelValues(env.Type, "local").Inc()
	}
}

func (h *Hub) deliverRemote(sub *core.Subscriber, env types.Envelope) {
	if err := sub.Remote.Transmit(env); err != nil {
		h.log.WithError(err).WithField("peer", sub.Remote.HostPort()).
			Warn("transmit failed during publish fan-out, tearing down connection")
		go sub.Remote.Shutdown("write failure during publish fan-out")
		return
	}
	if h.cfg.metrics != nil {
		h.cfg.metrics.PublishDeliveredTotal.WithLabelValues(env.Type, "remote").Inc()
	}
}

// SubscriptionReceipt reverses a Subscribe call: Cancel removes the local
// subscriber and, for a subscription that also reached a remote peer,
// transmits the matching cancel control.
type SubscriptionReceipt struct {
	hub    *Hub
	id     string
	typ    string
	flavor *string
	peer   string
	conn   *core.PeerConnection
}

// Cancel reverses both actions a Subscribe performed: it is safe to call
// more than once, and safe to call after the hub or the remote connection
// has already gone away.
func (r *SubscriptionReceipt) Cancel() {
	if r.hub.index.Remove(r.typ, r.flavor, r.id) == nil {
		return
	}
	if r.hub.cfg.metrics != nil {
		r.hub.cfg.metrics.SubscriptionsActive.Dec()
	}
	if r.conn == nil {
		return
	}
	payload, err := encodeSubscriberControl(types.SubscriberControl{Type: r.typ, Flavor: r.flavor, Intent: types.IntentCancel})
	if err != nil {
		r.hub.log.WithError(err).Warn("failed encoding cancel control, remote subscription left dangling")
		return
	}
	if err := r.conn.Transmit(types.Envelope{Type: types.TypeSubscriberRemote, Payload: payload}); err != nil {
		r.hub.log.WithError(err).Warn("failed transmitting cancel control")
	}
}

// Subscribe installs a local subscriber for (typeName, flavor) and, when
// peer is non-empty, also asks peer to forward its matching local
// publishes back over the connection. delivery runs synchronously on
// whichever goroutine is publishing; abort is invoked with a reason
// string if the remote connection this subscription depends on tears
// down.
func (h *Hub) Subscribe(typeName string, flavor *string, predicate *types.RemotePredicate, delivery core.Delivery, abort core.Abort, peer string) (*SubscriptionReceipt, error) {
	id := newSubscriberID()
	local := &core.Subscriber{
		ID:        id,
		Type:      typeName,
		Flavor:    flavor,
		Predicate: predicate,
		LocalFn:   delivery,
		AbortFn:   abort,
	}
	receipt := &SubscriptionReceipt{hub: h, id: id, typ: typeName, flavor: flavor, peer: peer}

	var pc *core.PeerConnection
	if peer != "" {
		var err error
		pc, err = h.dialOrReuse(peer)
		if err != nil {
			return nil, err
		}
		// Tie the local subscriber's lifetime to the connection its remote
		// registration travels over, so teardown of that peer aborts it.
		local.Bound = pc
	}

	h.index.Add(local)
	if h.cfg.metrics != nil {
		h.cfg.metrics.SubscriptionsActive.Inc()
	}

	if pc == nil {
		return receipt, nil
	}

	payload, err := encodeSubscriberControl(types.SubscriberControl{
		Type:   typeName,
		Flavor: flavor,
		Intent: types.IntentSubscribe,
		Remote: predicate,
	})
	if err != nil {
		// The predicate itself isn't representable on the wire: demote it
		// to nil and let it filter locally only, instead of failing the
		// whole subscription.
		h.log.WithFields(logrus.Fields{"type": typeName, "peer": peer}).
			WithError(err).Warn("predicate is not transportable, demoting remote subscription to local-only filtering")
		payload, err = encodeSubscriberControl(types.SubscriberControl{Type: typeName, Flavor: flavor, Intent: types.IntentSubscribe})
		if err != nil {
			h.removeSubscriber(typeName, flavor, id)
			return nil, types.NewArmiError(types.KindInvocation, err)
		}
	}

	if err := pc.Transmit(types.Envelope{Type: types.TypeSubscriberRemote, Payload: payload}); err != nil {
		h.removeSubscriber(typeName, flavor, id)
		return nil, err
	}

	receipt.conn = pc
	return receipt, nil
}

func (h *Hub) removeSubscriber(typeName string, flavor *string, id string) {
	if h.index.Remove(typeName, flavor, id) != nil && h.cfg.metrics != nil {
		h.cfg.metrics.SubscriptionsActive.Dec()
	}
}

func encodeSubscriberControl(c types.SubscriberControl) ([]byte, error) {
	var buf bytes.Buffer
	if err := types.EncodeSubscriberControl(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
