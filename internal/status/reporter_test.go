package status

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/conveyorhq/conveyor/internal/monitor"
	"github.com/conveyorhq/conveyor/internal/registry"
)

type fakeFeatures []registry.Feature

func (f fakeFeatures) All() ([]registry.Feature, error) { return f, nil }

type fakeQueues map[string][2]int // stage -> {depth, claimed}

func (q fakeQueues) Depth(stage string) (int, error)        { return q[stage][0], nil }
func (q fakeQueues) ClaimedCount(stage string) (int, error) { return q[stage][1], nil }

type fakeAlerts []monitor.Alert

func (a fakeAlerts) OpenAlerts() []monitor.Alert { return a }

type fakeShards map[string][]string

func (s fakeShards) Map() map[string][]string { return s }

func testReporter() *Reporter {
	feats := fakeFeatures{
		{ID: "WS-001", StageName: "registered", ShardKey: "aa", CreatedAtMs: 1000},
		{ID: "WS-002", StageName: "review", BatchID: "b1", ShardKey: "bb", CreatedAtMs: 2000},
		{ID: "WS-003", StageName: "review", ShardKey: "cc", CreatedAtMs: 3000},
	}
	queues := fakeQueues{"spec": {3, 1}, "review": {25, 5}}
	alerts := fakeAlerts{{Stage: "review", Depth: 25, Threshold: 20, RaisedAtMs: 1700000000000}}
	shards := fakeShards{"d1": {"WS-001"}, "d2": {"WS-002", "WS-003"}}
	return New(feats, queues, alerts, shards, nil, []string{"spec", "review"})
}

func TestSnapshotShape(t *testing.T) {
	snap, err := testReporter().Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Features) != 3 || snap.Queues["review"] != 25 || len(snap.Alerts) != 1 {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.Alerts[0].RaisedAt == "" || !strings.HasSuffix(snap.Alerts[0].RaisedAt, "Z") {
		t.Fatalf("raisedAt must be RFC3339 UTC: %q", snap.Alerts[0].RaisedAt)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"features", "queues", "alerts", "shardMap"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("snapshot JSON missing %q", key)
		}
	}
}

func TestFeaturesFilter(t *testing.T) {
	r := testReporter()

	all, err := r.Features("")
	if err != nil || len(all) != 3 {
		t.Fatalf("unfiltered: %v %v", all, err)
	}

	reviews, err := r.Features(`stage == "review"`)
	if err != nil || len(reviews) != 2 {
		t.Fatalf("stage filter: %v %v", reviews, err)
	}

	batched, err := r.Features(`stage == "review" && batch_id != ""`)
	if err != nil || len(batched) != 1 || batched[0].ID != "WS-002" {
		t.Fatalf("batch filter: %v %v", batched, err)
	}

	recent, err := r.Features("registered_at_ms >= 2000")
	if err != nil || len(recent) != 2 {
		t.Fatalf("time filter: %v %v", recent, err)
	}

	if _, err := r.Features("not valid cel ((("); err == nil {
		t.Fatal("bad expression must error")
	}
}

func TestQueueSummaryRecommendations(t *testing.T) {
	sum, err := testReporter().QueueSummary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got := sum.Queues["review"]; got.Depth != 25 || got.Claimed != 5 || got.Ready != 20 {
		t.Fatalf("review stat: %+v", got)
	}
	if len(sum.Recommendations) != 1 || !strings.Contains(sum.Recommendations[0], "review") {
		t.Fatalf("recommendations: %v", sum.Recommendations)
	}
}
