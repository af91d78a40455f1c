package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return Open(db, nil)
}

func TestEnqueueClaimComplete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, "spec", "WS-001"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	it, ok, err := s.Claim(ctx, "spec", "worker-1")
	if err != nil || !ok {
		t.Fatalf("claim: %v ok=%v", err, ok)
	}
	if it.FeatureID != "WS-001" || it.ClaimedBy != "worker-1" || it.Attempts != 1 {
		t.Fatalf("item: %+v", it)
	}
	if err := s.Complete(ctx, "spec", "WS-001", "worker-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	depth, _ := s.Depth("spec")
	if depth != 0 {
		t.Fatalf("depth after complete: %d", depth)
	}
}

func TestEnqueueDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, "spec", "WS-001"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.Enqueue(ctx, "spec", "WS-001"); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("want ErrAlreadyQueued, got %v", err)
	}
	// Same feature in a different stage queue is fine.
	if _, err := s.Enqueue(ctx, "review", "WS-001"); err != nil {
		t.Fatalf("other stage: %v", err)
	}
	// Claimed items still block re-enqueue.
	if _, ok, err := s.Claim(ctx, "spec", "worker-1"); err != nil || !ok {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.Enqueue(ctx, "spec", "WS-001"); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("want ErrAlreadyQueued while claimed, got %v", err)
	}
}

func TestClaimFIFOOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"WS-030", "WS-010", "WS-020"} {
		if _, err := s.Enqueue(ctx, "spec", id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	for _, want := range []string{"WS-030", "WS-010", "WS-020"} {
		it, ok, err := s.Claim(ctx, "spec", "worker-1")
		if err != nil || !ok {
			t.Fatalf("claim: %v ok=%v", err, ok)
		}
		if it.FeatureID != want {
			t.Fatalf("claim order: got %s, want %s", it.FeatureID, want)
		}
	}
	if _, ok, err := s.Claim(ctx, "spec", "worker-1"); err != nil || ok {
		t.Fatalf("drained queue must return ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestRequeuePreservesPosition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Enqueue(ctx, "spec", "WS-001")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := s.Enqueue(ctx, "spec", "WS-002"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	it, ok, _ := s.Claim(ctx, "spec", "worker-1")
	if !ok || it.FeatureID != "WS-001" {
		t.Fatalf("claim: %+v", it)
	}
	back, err := s.Requeue(ctx, "spec", "WS-001")
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if back.EnqueuedAtMs != first.EnqueuedAtMs || back.Claimed() {
		t.Fatalf("requeued item: %+v", back)
	}

	// Requeued first, so it is claimed again ahead of WS-002.
	it, ok, _ = s.Claim(ctx, "spec", "worker-2")
	if !ok || it.FeatureID != "WS-001" {
		t.Fatalf("claim after requeue: %+v", it)
	}
	if it.Attempts != 2 {
		t.Fatalf("attempts: %d", it.Attempts)
	}
}

func TestCompleteRequiresClaimHolder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _ = s.Enqueue(ctx, "spec", "WS-001")
	if err := s.Complete(ctx, "spec", "WS-001", "worker-1"); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("unclaimed complete: want ErrNotClaimed, got %v", err)
	}
	if _, err := s.Requeue(ctx, "spec", "WS-001"); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("unclaimed requeue: want ErrNotClaimed, got %v", err)
	}

	_, _, _ = s.Claim(ctx, "spec", "worker-1")
	if err := s.Complete(ctx, "spec", "WS-001", "worker-2"); !errors.Is(err, ErrNotClaimed) {
		t.Fatalf("wrong worker: want ErrNotClaimed, got %v", err)
	}
	if err := s.Complete(ctx, "spec", "WS-001", "worker-1"); err != nil {
		t.Fatalf("holder complete: %v", err)
	}
}

func TestDepthCountsClaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"WS-001", "WS-002", "WS-003"} {
		_, _ = s.Enqueue(ctx, "spec", id)
	}
	_, _, _ = s.Claim(ctx, "spec", "worker-1")

	depth, err := s.Depth("spec")
	if err != nil || depth != 3 {
		t.Fatalf("depth: %d %v", depth, err)
	}
	claimed, err := s.ClaimedCount("spec")
	if err != nil || claimed != 1 {
		t.Fatalf("claimed: %d %v", claimed, err)
	}
}

func TestReclaimExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _ = s.Enqueue(ctx, "spec", "WS-001")
	_, _ = s.Enqueue(ctx, "spec", "WS-002")
	_, _, _ = s.Claim(ctx, "spec", "worker-1")
	_, _, _ = s.Claim(ctx, "spec", "worker-1")

	// Nothing expires under a generous timeout.
	reclaimed, err := s.ReclaimExpired(ctx, "spec", time.Hour)
	if err != nil || len(reclaimed) != 0 {
		t.Fatalf("reclaim: %v %v", reclaimed, err)
	}

	// A zero timeout expires every outstanding claim.
	reclaimed, err = s.ReclaimExpired(ctx, "spec", 0)
	if err != nil || len(reclaimed) != 2 {
		t.Fatalf("reclaim: %v %v", reclaimed, err)
	}
	claimed, _ := s.ClaimedCount("spec")
	if claimed != 0 {
		t.Fatalf("claimed after reclaim: %d", claimed)
	}
	it, ok, _ := s.Claim(ctx, "spec", "worker-2")
	if !ok || it.FeatureID != "WS-001" {
		t.Fatalf("claim after reclaim: %+v ok=%v", it, ok)
	}
}
