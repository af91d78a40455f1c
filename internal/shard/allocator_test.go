package shard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

func testFeatures(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("WS-%03d", i)
	}
	return out
}

func openTestAllocator(t *testing.T, features []string) *Allocator {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	a, err := Open(db, nil, nil, func() ([]string, error) { return features, nil })
	if err != nil {
		t.Fatalf("open allocator: %v", err)
	}
	return a
}

func TestPartitionTotalAndDisjoint(t *testing.T) {
	features := testFeatures(200)
	a := openTestAllocator(t, features)

	asn, err := a.Partition(context.Background(), []string{"d1", "d2", "d3"})
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(asn.ByFeature) != len(features) {
		t.Fatalf("assignment not total: %d of %d", len(asn.ByFeature), len(features))
	}
	counts := map[string]int{}
	for fid, d := range asn.ByFeature {
		if d != "d1" && d != "d2" && d != "d3" {
			t.Fatalf("feature %s assigned to unknown dispatcher %s", fid, d)
		}
		counts[d]++
	}
	// Rendezvous over 200 features should land work on every dispatcher.
	for _, d := range []string{"d1", "d2", "d3"} {
		if counts[d] == 0 {
			t.Fatalf("dispatcher %s got nothing: %v", d, counts)
		}
	}
}

func TestPartitionDeterministic(t *testing.T) {
	features := testFeatures(100)
	a1 := openTestAllocator(t, features)
	a2 := openTestAllocator(t, features)

	asn1, _ := a1.Partition(context.Background(), []string{"d1", "d2", "d3"})
	asn2, _ := a2.Partition(context.Background(), []string{"d3", "d1", "d2"})
	for fid, d := range asn1.ByFeature {
		if asn2.ByFeature[fid] != d {
			t.Fatalf("assignment depends on dispatcher order: %s -> %s vs %s", fid, d, asn2.ByFeature[fid])
		}
	}
}

func TestReshardMinimalMovement(t *testing.T) {
	features := testFeatures(300)
	a := openTestAllocator(t, features)
	ctx := context.Background()

	before, _ := a.Partition(ctx, []string{"d1", "d2", "d3"})
	after, moved, err := a.Reshard(ctx, []string{"d1", "d2", "d3", "d4"})
	if err != nil {
		t.Fatalf("reshard: %v", err)
	}

	// Only features now owned by the newcomer may move.
	for _, fid := range moved {
		if after.ByFeature[fid] != "d4" {
			t.Fatalf("moved feature %s went to %s, not the new dispatcher", fid, after.ByFeature[fid])
		}
	}
	for fid, d := range after.ByFeature {
		if d != "d4" && before.ByFeature[fid] != d {
			t.Fatalf("feature %s moved between surviving dispatchers: %s -> %s", fid, before.ByFeature[fid], d)
		}
	}
	if len(moved) == 0 || len(moved) == len(features) {
		t.Fatalf("implausible movement: %d of %d", len(moved), len(features))
	}

	// Removing the newcomer restores the original assignment exactly.
	restored, moved2, err := a.Reshard(ctx, []string{"d1", "d2", "d3"})
	if err != nil {
		t.Fatalf("reshard back: %v", err)
	}
	if len(moved2) != len(moved) {
		t.Fatalf("shrink moved %d, grow moved %d", len(moved2), len(moved))
	}
	for fid, d := range before.ByFeature {
		if restored.ByFeature[fid] != d {
			t.Fatalf("feature %s not restored: %s vs %s", fid, restored.ByFeature[fid], d)
		}
	}
}

func TestDispatcherFor(t *testing.T) {
	a := openTestAllocator(t, testFeatures(10))
	ctx := context.Background()

	if _, ok := a.DispatcherFor("WS-001"); ok {
		t.Fatal("no assignment before first partition")
	}
	asn, _ := a.Partition(ctx, []string{"d1", "d2"})
	d, ok := a.DispatcherFor("WS-001")
	if !ok || d != asn.ByFeature["WS-001"] {
		t.Fatalf("dispatcher for WS-001: %s ok=%v", d, ok)
	}
	// Feature not in the published assignment still resolves.
	if _, ok := a.DispatcherFor("WS-999"); !ok {
		t.Fatal("late feature must resolve against current dispatchers")
	}
}

func TestAssignmentSurvivesRestart(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	defer db.Close()
	features := testFeatures(20)
	list := func() ([]string, error) { return features, nil }

	a1, _ := Open(db, nil, nil, list)
	asn, err := a1.Partition(context.Background(), []string{"d1", "d2"})
	if err != nil {
		t.Fatalf("partition: %v", err)
	}

	a2, err := Open(db, nil, nil, list)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cur := a2.Current()
	if cur == nil || cur.Version != asn.Version || len(cur.ByFeature) != len(asn.ByFeature) {
		t.Fatalf("restored assignment: %+v", cur)
	}
}

func TestPartitionValidation(t *testing.T) {
	a := openTestAllocator(t, testFeatures(5))
	ctx := context.Background()

	if _, err := a.Partition(ctx, nil); !errors.Is(err, ErrNoDispatchers) {
		t.Fatalf("want ErrNoDispatchers, got %v", err)
	}
	if _, err := a.Partition(ctx, []string{"d1", "d1"}); err == nil {
		t.Fatal("duplicate dispatcher must be rejected")
	}
	if a.State() != StateStable {
		t.Fatalf("state: %s", a.State())
	}
}
