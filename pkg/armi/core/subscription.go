package core

import (
	"sync"

	"github.com/jabolina/armi/pkg/armi/types"
)

// Delivery is how a local subscriber receives a matching envelope. It
// runs synchronously on the publishing goroutine, so a slow subscriber is
// the caller's problem, not the hub's.
type Delivery func(types.Envelope)

// Abort notifies a subscriber that its owning connection has gone away.
type Abort func(reason string)

// Subscriber is one entry in the subscription index: either local (LocalFn
// is set) or remote (Remote is set), never both. Bound ties the
// subscriber's lifetime to a connection without making it the delivery
// target: a local subscriber whose remote registration travelled over a
// peer connection is evicted, and aborted, when that connection dies.
type Subscriber struct {
	ID        string
	Type      string
	Flavor    *string
	Predicate *types.RemotePredicate
	LocalFn   Delivery
	AbortFn   Abort
	Remote    *PeerConnection
	Bound     *PeerConnection
}

// subscriberList is the ordered, lock-protected list of subscribers under
// one (type, flavor) bucket. Traversal for fan-out always goes through
// Snapshot so a concurrent Remove triggered mid-traversal (e.g. by a
// transmit failure tearing down a peer connection) can never mutate the
// slice a publisher is actively ranging over.
type subscriberList struct {
	mu      sync.Mutex
	entries []*Subscriber
}

func (l *subscriberList) append(s *Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *subscriberList) remove(id string) *Subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.entries {
		if s.ID == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return s
		}
	}
	return nil
}

func (l *subscriberList) snapshot() []*Subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Subscriber, len(l.entries))
	copy(out, l.entries)
	return out
}

// flavorBucket holds the per-flavor lists for one type: a map of pinned
// flavors plus the single "any flavor" list for null-flavor subscribers.
type flavorBucket struct {
	specific  map[string]*subscriberList
	anyFlavor *subscriberList
}

// SubscriptionIndex is the authoritative type -> (flavor -> subscribers)
// map: structural mutation guarded by one mutex, traversal guarded by
// each list's own mutex.
type SubscriptionIndex struct {
	mu     sync.Mutex
	byType map[string]*flavorBucket
	count  int
}

func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{byType: make(map[string]*flavorBucket)}
}

func (idx *SubscriptionIndex) bucketFor(typ string, createIfMissing bool) *flavorBucket {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	b, ok := idx.byType[typ]
	if !ok {
		if !createIfMissing {
			return nil
		}
		b = &flavorBucket{specific: make(map[string]*subscriberList)}
		idx.byType[typ] = b
	}
	return b
}

func (idx *SubscriptionIndex) listFor(b *flavorBucket, flavor *string, createIfMissing bool) *subscriberList {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if flavor == nil {
		if b.anyFlavor == nil && createIfMissing {
			b.anyFlavor = &subscriberList{}
		}
		return b.anyFlavor
	}
	l, ok := b.specific[*flavor]
	if !ok {
		if !createIfMissing {
			return nil
		}
		l = &subscriberList{}
		b.specific[*flavor] = l
	}
	return l
}

// Add installs a subscriber, lazily creating its (type, flavor) list.
func (idx *SubscriptionIndex) Add(s *Subscriber) {
	b := idx.bucketFor(s.Type, true)
	l := idx.listFor(b, s.Flavor, true)
	l.append(s)
	idx.mu.Lock()
	idx.count++
	idx.mu.Unlock()
}

// Remove reverses Add for the given (type, flavor, id). Returns the
// removed subscriber, or nil when none matched.
func (idx *SubscriptionIndex) Remove(typ string, flavor *string, id string) *Subscriber {
	b := idx.bucketFor(typ, false)
	if b == nil {
		return nil
	}
	l := idx.listFor(b, flavor, false)
	if l == nil {
		return nil
	}
	removed := l.remove(id)
	if removed != nil {
		idx.mu.Lock()
		idx.count--
		idx.mu.Unlock()
	}
	return removed
}

// Match implements the publish algorithm's two lookups: the exact
// (type, flavor) list, plus the type's any-flavor list when flavor is
// non-nil. Both lists are returned as independent snapshots.
func (idx *SubscriptionIndex) Match(typ string, flavor *string) []*Subscriber {
	b := idx.bucketFor(typ, false)
	if b == nil {
		return nil
	}

	var out []*Subscriber
	if l := idx.listFor(b, flavor, false); l != nil {
		out = append(out, l.snapshot()...)
	}
	if flavor != nil {
		if l := idx.listFor(b, nil, false); l != nil {
			out = append(out, l.snapshot()...)
		}
	}
	return out
}

// RemoveRemote reverses the installation a SubscriberRemote cancel control
// asks for: unlike Remove, the wire control carries no subscriber ID, so
// the match is by (type, flavor, connection identity) instead.
func (idx *SubscriptionIndex) RemoveRemote(typ string, flavor *string, conn *PeerConnection) *Subscriber {
	b := idx.bucketFor(typ, false)
	if b == nil {
		return nil
	}
	l := idx.listFor(b, flavor, false)
	if l == nil {
		return nil
	}
	for _, s := range l.snapshot() {
		if s.Remote == conn {
			if removed := l.remove(s.ID); removed != nil {
				idx.mu.Lock()
				idx.count--
				idx.mu.Unlock()
				return removed
			}
		}
	}
	return nil
}

// RemoveByConnection evicts every subscriber whose lifetime is tied to
// conn (remote subscribers forwarding to it, and local subscribers whose
// registration travelled over it), returning the removed entries so the
// caller can run their abort hooks. Used on peer-connection teardown.
func (idx *SubscriptionIndex) RemoveByConnection(conn *PeerConnection) []*Subscriber {
	idx.mu.Lock()
	var lists []*subscriberList
	for _, b := range idx.byType {
		if b.anyFlavor != nil {
			lists = append(lists, b.anyFlavor)
		}
		for _, l := range b.specific {
			lists = append(lists, l)
		}
	}
	idx.mu.Unlock()

	var removed []*Subscriber
	for _, l := range lists {
		for _, s := range l.snapshot() {
			if s.Remote == conn || s.Bound == conn {
				if l.remove(s.ID) != nil {
					removed = append(removed, s)
					idx.mu.Lock()
					idx.count--
					idx.mu.Unlock()
				}
			}
		}
	}
	return removed
}

// Clear drops every subscriber, used on hub shutdown.
func (idx *SubscriptionIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byType = make(map[string]*flavorBucket)
	idx.count = 0
}

// Count returns the number of currently-installed subscribers.
func (idx *SubscriptionIndex) Count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.count
}
