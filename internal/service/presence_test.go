package service

import "testing"

func TestPresenceIncrementDecrement(t *testing.T) {
	p := NewPresenceTracker()

	p.Increment("alice")
	p.Increment("alice")
	p.Increment("bob")

	if got := p.Count("alice"); got != 2 {
		t.Fatalf("expected alice count 2, got %d", got)
	}
	if got := p.Count("bob"); got != 1 {
		t.Fatalf("expected bob count 1, got %d", got)
	}

	p.Decrement("alice")
	if got := p.Count("alice"); got != 1 {
		t.Fatalf("expected alice count 1 after one decrement, got %d", got)
	}

	p.Decrement("alice")
	if got := p.Count("alice"); got != 0 {
		t.Fatalf("expected alice count 0, got %d", got)
	}

	users := p.Snapshot()
	if len(users) != 1 || users[0] != "bob" {
		t.Fatalf("expected snapshot [bob], got %v", users)
	}
}

func TestPresenceNeverNegative(t *testing.T) {
	p := NewPresenceTracker()

	p.Decrement("ghost")
	if got := p.Count("ghost"); got != 0 {
		t.Fatalf("decrementing absent user gave count %d, want 0", got)
	}

	p.Increment("ghost")
	p.Decrement("ghost")
	p.Decrement("ghost")
	if got := p.Count("ghost"); got != 0 {
		t.Fatalf("extra decrement gave count %d, want 0", got)
	}
	if users := p.Snapshot(); len(users) != 0 {
		t.Fatalf("expected empty snapshot, got %v", users)
	}
}

func TestPresenceSnapshotMembership(t *testing.T) {
	p := NewPresenceTracker()

	// count > 0 iff present in snapshot
	p.Increment("a")
	p.Increment("b")
	p.Decrement("b")

	users := p.Snapshot()
	if len(users) != 1 || users[0] != "a" {
		t.Fatalf("expected [a], got %v", users)
	}

	p.Decrement("a")
	if users := p.Snapshot(); len(users) != 0 {
		t.Fatalf("expected empty snapshot after final decrement, got %v", users)
	}
}
