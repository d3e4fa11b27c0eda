package queue

import (
	"testing"
	"time"
)

func TestClaimRefPrefersClaimTime(t *testing.T) {
	now := time.Now().UTC()
	cutoff := now.Add(-10 * time.Minute)

	// Claimed recently after a long queue wait: not stale, however old
	// the enqueue is.
	msg := &Message{
		EnqueuedAt: now.Add(-2 * time.Hour),
		ClaimedAt:  now.Add(-1 * time.Minute),
	}
	if !msg.claimRef().After(cutoff) {
		t.Fatal("recently claimed message judged stale by enqueue time")
	}

	// Claimed long ago: stale.
	msg = &Message{
		EnqueuedAt: now.Add(-1 * time.Minute),
		ClaimedAt:  now.Add(-30 * time.Minute),
	}
	if msg.claimRef().After(cutoff) {
		t.Fatal("abandoned claim not judged stale")
	}

	// No claim stamp at all, the worker died between the list move and
	// the restamp: fall back to enqueue time.
	msg = &Message{EnqueuedAt: now.Add(-30 * time.Minute)}
	if !msg.claimRef().Equal(msg.EnqueuedAt) {
		t.Fatalf("unstamped claimRef = %s, want enqueue time", msg.claimRef())
	}
	if msg.claimRef().After(cutoff) {
		t.Fatal("orphaned unstamped message not judged stale")
	}
}
