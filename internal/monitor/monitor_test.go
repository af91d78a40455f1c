package monitor

import (
	"context"
	"testing"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHysteresis(t *testing.T) {
	db := openTestDB(t)
	rules := map[string]Rule{"spec": {Raise: 20, Clear: 10}}
	m, err := Open(db, nil, nil, rules, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	// Depth sequence with dips between the thresholds; the alert must raise
	// at 22, stay open through 18, clear at 9, and re-raise at 21.
	wantOpen := map[int]bool{5: false, 15: false, 22: true, 18: true, 9: false, 21: true}
	for _, depth := range []int{5, 15, 22, 18, 9, 21} {
		if err := m.Observe(ctx, "spec", depth); err != nil {
			t.Fatalf("observe %d: %v", depth, err)
		}
		open := len(m.OpenAlerts()) == 1
		if open != wantOpen[depth] {
			t.Fatalf("after depth %d: open=%v, want %v", depth, open, wantOpen[depth])
		}
	}
}

func TestRaiseAtExactThreshold(t *testing.T) {
	db := openTestDB(t)
	m, _ := Open(db, nil, nil, map[string]Rule{"spec": {Raise: 20, Clear: 10}}, nil)
	ctx := context.Background()

	_ = m.Observe(ctx, "spec", 19)
	if len(m.OpenAlerts()) != 0 {
		t.Fatal("19 must not raise with threshold 20")
	}
	_ = m.Observe(ctx, "spec", 20)
	alerts := m.OpenAlerts()
	if len(alerts) != 1 || alerts[0].Threshold != 20 || alerts[0].Depth != 20 {
		t.Fatalf("alerts: %+v", alerts)
	}
	// Clearing happens at <= clear, not below raise.
	_ = m.Observe(ctx, "spec", 11)
	if len(m.OpenAlerts()) != 1 {
		t.Fatal("11 must not clear with clear threshold 10")
	}
	_ = m.Observe(ctx, "spec", 10)
	if len(m.OpenAlerts()) != 0 {
		t.Fatal("10 must clear")
	}
}

func TestAtMostOneAlertPerStage(t *testing.T) {
	db := openTestDB(t)
	m, _ := Open(db, nil, nil, map[string]Rule{"spec": {Raise: 20, Clear: 10}}, nil)
	ctx := context.Background()

	_ = m.Observe(ctx, "spec", 25)
	raised := m.OpenAlerts()[0].RaisedAtMs
	_ = m.Observe(ctx, "spec", 40)
	alerts := m.OpenAlerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts: %+v", alerts)
	}
	if alerts[0].RaisedAtMs != raised {
		t.Fatal("open alert must not re-raise")
	}
	if alerts[0].Depth != 40 {
		t.Fatalf("open alert must track latest depth, got %d", alerts[0].Depth)
	}
}

func TestSampleUsesDepthFunc(t *testing.T) {
	db := openTestDB(t)
	depths := map[string]int{"spec": 30, "review": 5}
	rules := map[string]Rule{
		"spec":   {Raise: 20, Clear: 10},
		"review": {Raise: 20, Clear: 10},
	}
	m, _ := Open(db, nil, nil, rules, func(stage string) (int, error) {
		return depths[stage], nil
	})
	if err := m.Sample(context.Background()); err != nil {
		t.Fatalf("sample: %v", err)
	}
	alerts := m.OpenAlerts()
	if len(alerts) != 1 || alerts[0].Stage != "spec" {
		t.Fatalf("alerts: %+v", alerts)
	}
}

func TestOpenAlertsSurviveRestart(t *testing.T) {
	db := openTestDB(t)
	rules := map[string]Rule{"spec": {Raise: 20, Clear: 10}}

	m1, _ := Open(db, nil, nil, rules, nil)
	_ = m1.Observe(context.Background(), "spec", 25)

	m2, err := Open(db, nil, nil, rules, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	alerts := m2.OpenAlerts()
	if len(alerts) != 1 || alerts[0].Stage != "spec" {
		t.Fatalf("restored alerts: %+v", alerts)
	}
}

func TestInvalidRule(t *testing.T) {
	db := openTestDB(t)
	if _, err := Open(db, nil, nil, map[string]Rule{"spec": {Raise: 10, Clear: 10}}, nil); err == nil {
		t.Fatal("raise must exceed clear")
	}
}
