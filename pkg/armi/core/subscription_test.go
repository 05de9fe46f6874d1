package core

import (
	"testing"
)

func flavor(s string) *string { return &s }

func TestSubscriptionIndex_FlavoredSubscriberSeesOnlyItsFlavor(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Add(&Subscriber{ID: "s1", Type: "Date", Flavor: flavor("1sec")})

	if got := idx.Match("Date", flavor("1sec")); len(got) != 1 {
		t.Fatalf("expected exact flavor match, got %d", len(got))
	}
	if got := idx.Match("Date", flavor("5sec")); len(got) != 0 {
		t.Fatalf("expected zero matches for a different flavor, got %d", len(got))
	}
}

func TestSubscriptionIndex_NullFlavorSeesEveryFlavor(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Add(&Subscriber{ID: "any", Type: "Date", Flavor: nil})

	if got := idx.Match("Date", flavor("1sec")); len(got) != 1 {
		t.Fatalf("expected null-flavor subscriber to see flavor '1sec', got %d", len(got))
	}
	if got := idx.Match("Date", flavor("5sec")); len(got) != 1 {
		t.Fatalf("expected null-flavor subscriber to see flavor '5sec', got %d", len(got))
	}
	if got := idx.Match("Date", nil); len(got) != 1 {
		t.Fatalf("expected null-flavor publish to reach null-flavor subscriber, got %d", len(got))
	}
}

func TestSubscriptionIndex_FlavoredAndNullBothFire(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Add(&Subscriber{ID: "b", Type: "Date", Flavor: flavor("1sec")})
	idx.Add(&Subscriber{ID: "c", Type: "Date", Flavor: nil})
	idx.Add(&Subscriber{ID: "d", Type: "Date", Flavor: flavor("5sec")})

	got := idx.Match("Date", flavor("1sec"))
	if len(got) != 2 {
		t.Fatalf("expected both the pinned and null-flavor subscriber, got %d", len(got))
	}
	ids := map[string]bool{}
	for _, s := range got {
		ids[s.ID] = true
	}
	if !ids["b"] || !ids["c"] || ids["d"] {
		t.Fatalf("unexpected match set: %+v", ids)
	}
}

func TestSubscriptionIndex_AddRemoveRestoresState(t *testing.T) {
	idx := NewSubscriptionIndex()
	before := idx.Count()
	idx.Add(&Subscriber{ID: "x", Type: "Date", Flavor: flavor("1sec")})
	idx.Remove("Date", flavor("1sec"), "x")
	if idx.Count() != before {
		t.Fatalf("expected count restored to %d, got %d", before, idx.Count())
	}
	if got := idx.Match("Date", flavor("1sec")); len(got) != 0 {
		t.Fatalf("expected no matches after removal, got %d", len(got))
	}
}

func TestSubscriptionIndex_RemoveByConnectionEvictsOnlyThatConnectionsSubscribers(t *testing.T) {
	idx := NewSubscriptionIndex()
	connA := &PeerConnection{hostPort: "a:1"}
	connB := &PeerConnection{hostPort: "b:1"}
	idx.Add(&Subscriber{ID: "1", Type: "Date", Flavor: flavor("1sec"), Remote: connA})
	idx.Add(&Subscriber{ID: "2", Type: "Date", Flavor: nil, Remote: connB})

	removed := idx.RemoveByConnection(connA)
	if len(removed) != 1 || removed[0].ID != "1" {
		t.Fatalf("expected exactly subscriber 1 removed, got %+v", removed)
	}
	if got := idx.Match("Date", flavor("1sec")); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected connA's subscriber gone and only connB's null-flavor subscriber left, got %+v", got)
	}
	if got := idx.Match("Date", flavor("9sec")); len(got) != 1 {
		t.Fatalf("expected connB's null-flavor subscriber to remain, got %d", len(got))
	}
}

func TestSubscriptionIndex_RemoveByConnectionEvictsBoundLocalSubscribers(t *testing.T) {
	idx := NewSubscriptionIndex()
	conn := &PeerConnection{hostPort: "a:1"}
	idx.Add(&Subscriber{ID: "dependent", Type: "Date", Flavor: nil, Bound: conn})
	idx.Add(&Subscriber{ID: "standalone", Type: "Date", Flavor: nil})

	removed := idx.RemoveByConnection(conn)
	if len(removed) != 1 || removed[0].ID != "dependent" {
		t.Fatalf("expected only the bound local subscriber removed, got %+v", removed)
	}
	if got := idx.Match("Date", nil); len(got) != 1 || got[0].ID != "standalone" {
		t.Fatalf("expected the standalone subscriber to remain, got %+v", got)
	}
}

func TestSubscriptionIndex_RemoveRemoteMatchesByConnectionNotID(t *testing.T) {
	idx := NewSubscriptionIndex()
	conn := &PeerConnection{hostPort: "a:1"}
	idx.Add(&Subscriber{ID: "generated-id", Type: "Date", Flavor: flavor("1sec"), Remote: conn})

	removed := idx.RemoveRemote("Date", flavor("1sec"), conn)
	if removed == nil || removed.ID != "generated-id" {
		t.Fatalf("expected the connection-bound subscriber to be found and removed, got %+v", removed)
	}
	if got := idx.Match("Date", flavor("1sec")); len(got) != 0 {
		t.Fatalf("expected no matches left, got %d", len(got))
	}
}
