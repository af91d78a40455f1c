package status

import (
	"fmt"
	"sort"
	"time"

	"github.com/conveyorhq/conveyor/internal/journal"
	"github.com/conveyorhq/conveyor/internal/monitor"
	"github.com/conveyorhq/conveyor/internal/registry"
)

// FeatureSource lists every known feature.
type FeatureSource interface {
	All() ([]registry.Feature, error)
}

// QueueSource reads per-stage queue counters.
type QueueSource interface {
	Depth(stage string) (int, error)
	ClaimedCount(stage string) (int, error)
}

// AlertSource reads the currently open bottleneck alerts.
type AlertSource interface {
	OpenAlerts() []monitor.Alert
}

// ShardSource reads the published shard assignment grouped by dispatcher.
type ShardSource interface {
	Map() map[string][]string
}

// EventSource reads the tail of the journal.
type EventSource interface {
	Recent(limit int) ([]journal.Event, error)
}

// FeatureView is the wire shape of one feature in a snapshot.
type FeatureView struct {
	ID       string `json:"id"`
	Stage    string `json:"stage"`
	BatchID  string `json:"batchId,omitempty"`
	ShardKey string `json:"shardKey"`
}

// AlertView is the wire shape of one open alert.
type AlertView struct {
	Stage    string `json:"stage"`
	Depth    int    `json:"depth"`
	RaisedAt string `json:"raisedAt"`
}

// Snapshot is the read-only aggregate view of the pipeline.
type Snapshot struct {
	Features []FeatureView       `json:"features"`
	Queues   map[string]int      `json:"queues"`
	Alerts   []AlertView         `json:"alerts"`
	ShardMap map[string][]string `json:"shardMap"`
}

// QueueStat is one stage's queue counters in a summary.
type QueueStat struct {
	Depth   int `json:"depth"`
	Claimed int `json:"claimed"`
	Ready   int `json:"ready"`
}

// Summary is the operator-facing queue overview with recommendations derived
// from open alerts.
type Summary struct {
	Queues          map[string]QueueStat `json:"queues"`
	Recommendations []string             `json:"recommendations"`
}

// Reporter aggregates reads across the pipeline components. Each sub-read is
// independently consistent; the whole snapshot is not atomic across
// components, which is fine for a monitoring view.
type Reporter struct {
	features FeatureSource
	queues   QueueSource
	alerts   AlertSource
	shards   ShardSource
	events   EventSource
	stages   []string
}

// New builds a Reporter over the given sources. stages is the ordered list of
// queue stage names to report on. events may be nil.
func New(features FeatureSource, queues QueueSource, alerts AlertSource, shards ShardSource, events EventSource, stages []string) *Reporter {
	return &Reporter{
		features: features,
		queues:   queues,
		alerts:   alerts,
		shards:   shards,
		events:   events,
		stages:   append([]string(nil), stages...),
	}
}

// Snapshot aggregates the current pipeline state. No side effects; callable
// at any rate.
func (r *Reporter) Snapshot() (Snapshot, error) {
	feats, err := r.features.All()
	if err != nil {
		return Snapshot{}, fmt.Errorf("status: features: %w", err)
	}
	views := make([]FeatureView, 0, len(feats))
	for _, f := range feats {
		views = append(views, FeatureView{
			ID:       f.ID,
			Stage:    f.StageName,
			BatchID:  f.BatchID,
			ShardKey: f.ShardKey,
		})
	}

	queues := make(map[string]int, len(r.stages))
	for _, stage := range r.stages {
		depth, err := r.queues.Depth(stage)
		if err != nil {
			return Snapshot{}, fmt.Errorf("status: depth of %s: %w", stage, err)
		}
		queues[stage] = depth
	}

	open := r.alerts.OpenAlerts()
	alerts := make([]AlertView, 0, len(open))
	for _, a := range open {
		alerts = append(alerts, AlertView{
			Stage:    a.Stage,
			Depth:    a.Depth,
			RaisedAt: time.UnixMilli(a.RaisedAtMs).UTC().Format(time.RFC3339),
		})
	}

	return Snapshot{
		Features: views,
		Queues:   queues,
		Alerts:   alerts,
		ShardMap: r.shards.Map(),
	}, nil
}

// Features returns all features passing the optional CEL filter expression,
// e.g. `stage == "review" && batch_id != ""`.
func (r *Reporter) Features(filterExpr string) ([]FeatureView, error) {
	filter, err := newCELFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("status: filter: %w", err)
	}
	feats, err := r.features.All()
	if err != nil {
		return nil, fmt.Errorf("status: features: %w", err)
	}
	out := make([]FeatureView, 0, len(feats))
	for _, f := range feats {
		if !filter.Eval(f) {
			continue
		}
		out = append(out, FeatureView{
			ID:       f.ID,
			Stage:    f.StageName,
			BatchID:  f.BatchID,
			ShardKey: f.ShardKey,
		})
	}
	return out, nil
}

// QueueSummary reports per-stage counters plus operator recommendations for
// every stage with an open alert.
func (r *Reporter) QueueSummary() (Summary, error) {
	sum := Summary{Queues: make(map[string]QueueStat, len(r.stages))}
	for _, stage := range r.stages {
		depth, err := r.queues.Depth(stage)
		if err != nil {
			return Summary{}, fmt.Errorf("status: depth of %s: %w", stage, err)
		}
		claimed, err := r.queues.ClaimedCount(stage)
		if err != nil {
			return Summary{}, fmt.Errorf("status: claimed of %s: %w", stage, err)
		}
		sum.Queues[stage] = QueueStat{Depth: depth, Claimed: claimed, Ready: depth - claimed}
	}

	open := r.alerts.OpenAlerts()
	sort.Slice(open, func(i, j int) bool { return open[i].Stage < open[j].Stage })
	for _, a := range open {
		sum.Recommendations = append(sum.Recommendations,
			fmt.Sprintf("%s backlog at %d (threshold %d): add capacity or pause upstream dispatch", a.Stage, a.Depth, a.Threshold))
	}
	return sum, nil
}

// Events returns the newest journal entries, up to limit.
func (r *Reporter) Events(limit int) ([]journal.Event, error) {
	if r.events == nil {
		return nil, nil
	}
	return r.events.Recent(limit)
}
