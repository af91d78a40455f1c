package journal

import (
	"context"
	"testing"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l, err := OpenLog(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func TestAppendAssignsSequences(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	s1, err := l.Append(ctx, Event{Kind: KindRegistered, FeatureID: "WS-001", AtMs: 1000})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	s2, _ := l.Append(ctx, Event{Kind: KindTransitioned, FeatureID: "WS-001", From: "registered", To: "specified", AtMs: 1001})
	if s2 != s1+1 {
		t.Fatalf("want consecutive seqs, got %d then %d", s1, s2)
	}
	evs, err := l.ReadFrom(1, 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(evs) != 2 || evs[0].ID == "" || evs[0].ID == evs[1].ID {
		t.Fatalf("want distinct non-empty event ids, got %+v", evs)
	}
}

func TestReadFrom(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := l.Append(ctx, Event{Kind: KindRegistered, AtMs: int64(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	evs, err := l.ReadFrom(3, 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(evs) != 3 || evs[0].Seq != 3 {
		t.Fatalf("want seqs 3..5, got %+v", evs)
	}
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = l.Append(ctx, Event{Kind: KindAlertRaised, Stage: "manager", Depth: i, AtMs: int64(i)})
	}
	evs, err := l.Recent(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(evs) != 3 || evs[0].Seq != 8 || evs[2].Seq != 10 {
		t.Fatalf("want seqs 8,9,10 got %+v", evs)
	}
}

func TestReopenRestoresLastSeq(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	defer db.Close()
	l, _ := OpenLog(db)
	ctx := context.Background()
	_, _ = l.Append(ctx, Event{Kind: KindRegistered, AtMs: 1})
	_, _ = l.Append(ctx, Event{Kind: KindRegistered, AtMs: 2})

	l2, _ := OpenLog(db)
	seq, err := l2.Append(ctx, Event{Kind: KindRegistered, AtMs: 3})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seq != 3 {
		t.Fatalf("want seq 3 after reopen, got %d", seq)
	}
}
