package registry

import (
	"context"
	"errors"
	"testing"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	r, err := Open(db, nil)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	return r
}

func TestRegisterAndGet(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	f, err := r.Register(ctx, "WS-047", "batch-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.Stage != StageRegistered || f.ShardKey == "" || f.Seq == 0 {
		t.Fatalf("unexpected feature: %+v", f)
	}
	got, err := r.Get("WS-047")
	if err != nil || got.ID != "WS-047" || got.BatchID != "batch-1" {
		t.Fatalf("get: %+v %v", got, err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	if _, err := r.Register(ctx, "WS-001", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register(ctx, "WS-001", ""); !errors.Is(err, ErrDuplicateFeature) {
		t.Fatalf("want ErrDuplicateFeature, got %v", err)
	}
}

func TestTransitionForwardOnly(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	_, _ = r.Register(ctx, "WS-002", "")

	if _, err := r.Transition(ctx, "WS-002", StageSpecified); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if _, err := r.Transition(ctx, "WS-002", StageRegistered); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition going backward, got %v", err)
	}
}

func TestTransitionCannotSkipInProgress(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	_, _ = r.Register(ctx, "WS-003", "")
	_, _ = r.Transition(ctx, "WS-003", StageSpecified)
	_, _ = r.Transition(ctx, "WS-003", StageDispatched)

	if _, err := r.Transition(ctx, "WS-003", StageReviewed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Dispatched->Reviewed must be rejected, got %v", err)
	}
	if _, err := r.Transition(ctx, "WS-003", StageInProgress); err != nil {
		t.Fatalf("Dispatched->InProgress: %v", err)
	}
	if _, err := r.Transition(ctx, "WS-003", StageReviewed); err != nil {
		t.Fatalf("InProgress->Reviewed: %v", err)
	}
}

func TestRejectedTerminalFromAnywhere(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	_, _ = r.Register(ctx, "WS-004", "")
	if _, err := r.Transition(ctx, "WS-004", StageRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := r.Transition(ctx, "WS-004", StageApplied); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal feature must not move, got %v", err)
	}
}

func TestListByStageInsertionOrder(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	for _, id := range []string{"WS-010", "WS-002", "WS-205"} {
		if _, err := r.Register(ctx, id, ""); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	feats, err := r.ListByStage(StageRegistered)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"WS-010", "WS-002", "WS-205"}
	if len(feats) != len(want) {
		t.Fatalf("len: %d", len(feats))
	}
	for i, f := range feats {
		if f.ID != want[i] {
			t.Fatalf("order: got %s at %d, want %s", f.ID, i, want[i])
		}
	}

	// Transitioned feature leaves the old stage listing.
	_, _ = r.Transition(ctx, "WS-002", StageSpecified)
	feats, _ = r.ListByStage(StageRegistered)
	if len(feats) != 2 {
		t.Fatalf("want 2 after transition, got %d", len(feats))
	}
}

func TestShardKeyStable(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	f, _ := r.Register(ctx, "WS-047", "")
	f2, _ := r.Transition(ctx, "WS-047", StageSpecified)
	if f.ShardKey != f2.ShardKey {
		t.Fatalf("shard key changed across transition")
	}
}

func TestBatchCloseRequiresTerminalMembers(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()
	_, _ = r.Register(ctx, "WS-100", "b1")
	_, _ = r.Register(ctx, "WS-101", "b1")

	if _, err := r.CloseBatch(ctx, "b1"); !errors.Is(err, ErrBatchOpen) {
		t.Fatalf("want ErrBatchOpen, got %v", err)
	}

	_, _ = r.Transition(ctx, "WS-100", StageRejected)
	_, _ = r.Transition(ctx, "WS-101", StageRejected)
	batch, err := r.CloseBatch(ctx, "b1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if batch.ClosedAtMs == 0 || len(batch.FeatureIDs) != 2 {
		t.Fatalf("batch: %+v", batch)
	}
}

func TestReopenRestoresSequence(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	r1, _ := Open(db, nil)
	f1, _ := r1.Register(ctx, "WS-001", "")

	r2, _ := Open(db, nil)
	f2, err := r2.Register(ctx, "WS-002", "")
	if err != nil {
		t.Fatalf("register after reopen: %v", err)
	}
	if f2.Seq != f1.Seq+1 {
		t.Fatalf("sequence not restored: %d then %d", f1.Seq, f2.Seq)
	}
}
