package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/internal/journal"
	"github.com/conveyorhq/conveyor/pkg/log"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Rule is the hysteresis pair for one stage. An alert raises when depth
// reaches Raise and clears only once depth falls to Clear, so depths
// oscillating between the two don't flap.
type Rule struct {
	Raise int
	Clear int
}

// Alert is one open bottleneck alert. At most one exists per stage.
type Alert struct {
	Stage      string `json:"stage"`
	Depth      int    `json:"depth"`
	Threshold  int    `json:"threshold"`
	RaisedAtMs int64  `json:"raisedAtMs"`
}

// DepthFunc reports the current queue depth of a stage.
type DepthFunc func(stage string) (int, error)

// Monitor samples queue depths against per-stage hysteresis rules. Open
// alerts persist so they survive a restart; raise and clear events go to the
// journal.
type Monitor struct {
	db     *pebblestore.DB
	events *journal.Log
	logger log.Logger
	rules  map[string]Rule
	depth  DepthFunc

	mu   sync.Mutex
	open map[string]Alert

	sampleOnce sync.Once
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Open initializes a Monitor and restores open alerts from storage. events
// and logger may be nil.
func Open(db *pebblestore.DB, events *journal.Log, logger log.Logger, rules map[string]Rule, depth DepthFunc) (*Monitor, error) {
	for stage, rule := range rules {
		if rule.Raise <= rule.Clear {
			return nil, fmt.Errorf("monitor: stage %s: raise %d must exceed clear %d", stage, rule.Raise, rule.Clear)
		}
	}
	if logger == nil {
		logger = log.NewLogger()
	}
	m := &Monitor{
		db:     db,
		events: events,
		logger: logger.With(log.Component("monitor")),
		rules:  rules,
		depth:  depth,
		open:   make(map[string]Alert),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	iter, err := db.PrefixIter([]byte(prefixAlert))
	if err != nil {
		return nil, fmt.Errorf("%w: alert scan: %v", pebblestore.ErrUnavailable, err)
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		var a Alert
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			return nil, err
		}
		m.open[a.Stage] = a
	}
	return m, nil
}

// Sample evaluates every configured stage once. Stages are visited in name
// order so journal entries are deterministic for a given set of depths.
func (m *Monitor) Sample(ctx context.Context) error {
	stages := make([]string, 0, len(m.rules))
	for stage := range m.rules {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	for _, stage := range stages {
		depth, err := m.depth(stage)
		if err != nil {
			return fmt.Errorf("monitor: depth of %s: %w", stage, err)
		}
		if err := m.Observe(ctx, stage, depth); err != nil {
			return err
		}
	}
	return nil
}

// Observe applies one depth reading for a stage. Exposed so depth changes
// can be evaluated inline rather than waiting for the next sampler tick.
func (m *Monitor) Observe(ctx context.Context, stage string, depth int) error {
	rule, ok := m.rules[stage]
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alert, isOpen := m.open[stage]
	switch {
	case !isOpen && depth >= rule.Raise:
		alert = Alert{Stage: stage, Depth: depth, Threshold: rule.Raise, RaisedAtMs: time.Now().UnixMilli()}
		val, err := json.Marshal(alert)
		if err != nil {
			return err
		}
		if err := m.db.Set(alertKey(stage), val); err != nil {
			return fmt.Errorf("%w: alert write: %v", pebblestore.ErrUnavailable, err)
		}
		m.open[stage] = alert
		m.logger.Warn("bottleneck alert raised",
			log.Str("stage", stage), log.Int("depth", depth), log.Int("threshold", rule.Raise))
		if m.events != nil {
			_, _ = m.events.Append(ctx, journal.Event{
				Kind:      journal.KindAlertRaised,
				Stage:     stage,
				Depth:     depth,
				Threshold: rule.Raise,
				AtMs:      alert.RaisedAtMs,
			})
		}

	case isOpen && depth <= rule.Clear:
		if err := m.db.Delete(alertKey(stage)); err != nil {
			return fmt.Errorf("%w: alert delete: %v", pebblestore.ErrUnavailable, err)
		}
		delete(m.open, stage)
		m.logger.Info("bottleneck alert cleared",
			log.Str("stage", stage), log.Int("depth", depth), log.Int("threshold", rule.Clear))
		if m.events != nil {
			_, _ = m.events.Append(ctx, journal.Event{
				Kind:      journal.KindAlertCleared,
				Stage:     stage,
				Depth:     depth,
				Threshold: rule.Clear,
				AtMs:      time.Now().UnixMilli(),
			})
		}

	case isOpen:
		// Open alert tracks the latest depth without re-raising.
		alert.Depth = depth
		val, err := json.Marshal(alert)
		if err != nil {
			return err
		}
		if err := m.db.Set(alertKey(stage), val); err != nil {
			return fmt.Errorf("%w: alert write: %v", pebblestore.ErrUnavailable, err)
		}
		m.open[stage] = alert
	}
	return nil
}

// OpenAlerts returns the open alerts sorted by stage name.
func (m *Monitor) OpenAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.open))
	for _, a := range m.open {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// StartSampler launches the periodic sampling goroutine. Safe to call once;
// Stop shuts it down.
func (m *Monitor) StartSampler(interval time.Duration) {
	m.sampleOnce.Do(func() {
		go m.sampleLoop(interval)
	})
}

// Stop terminates the sampler goroutine, if started, and waits for it to
// exit.
func (m *Monitor) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	m.sampleOnce.Do(func() { close(m.doneCh) })
	<-m.doneCh
}

func (m *Monitor) sampleLoop(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := m.Sample(ctx); err != nil {
			m.logger.Warn("sample failed", log.Err(err))
		}
		cancel()

		select {
		case <-ticker.C:
		case <-m.stopCh:
			return
		}
	}
}
