package shard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conveyorhq/conveyor/internal/journal"
	"github.com/conveyorhq/conveyor/pkg/log"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// ErrNoDispatchers is returned when an assignment is requested with an empty
// dispatcher set.
var ErrNoDispatchers = errors.New("no dispatchers")

// State of the allocator. Readers always see a whole assignment regardless
// of state; Resharding only marks that a writer is computing the next one.
const (
	StateStable     = "stable"
	StateResharding = "resharding"
)

// Assignment is one immutable feature-to-dispatcher mapping. Never mutated
// after publication; Reshard builds a fresh one and swaps the pointer.
type Assignment struct {
	Dispatchers []string          `json:"dispatchers"`
	ByFeature   map[string]string `json:"byFeature"`
	Version     uint64            `json:"version"`
	ComputedAt  int64             `json:"computedAtMs"`
}

// FeaturesFunc lists every feature id that must be assigned.
type FeaturesFunc func() ([]string, error)

// Allocator assigns features to dispatchers with rendezvous hashing, so a
// membership change moves only the features whose winning dispatcher left or
// lost. One writer at a time; readers go through an atomic pointer and are
// never blocked.
type Allocator struct {
	db       *pebblestore.DB
	events   *journal.Log
	logger   log.Logger
	features FeaturesFunc

	mu      sync.Mutex
	current atomic.Pointer[Assignment]
	state   atomic.Value
}

// Open initializes an Allocator and restores the persisted assignment if one
// exists. events and logger may be nil.
func Open(db *pebblestore.DB, events *journal.Log, logger log.Logger, features FeaturesFunc) (*Allocator, error) {
	if logger == nil {
		logger = log.NewLogger()
	}
	a := &Allocator{
		db:       db,
		events:   events,
		logger:   logger.With(log.Component("shard")),
		features: features,
	}
	a.state.Store(StateStable)

	val, err := db.Get(assignmentKey())
	if err == nil {
		var saved Assignment
		if err := json.Unmarshal(val, &saved); err != nil {
			return nil, err
		}
		a.current.Store(&saved)
	} else if !pebblestore.IsNotFound(err) {
		return nil, fmt.Errorf("%w: assignment read: %v", pebblestore.ErrUnavailable, err)
	}
	return a, nil
}

// Partition computes and publishes a full assignment of every known feature
// across the given dispatchers.
func (a *Allocator) Partition(ctx context.Context, dispatcherIDs []string) (*Assignment, error) {
	next, _, err := a.swap(ctx, dispatcherIDs)
	return next, err
}

// Reshard recomputes the assignment for a new dispatcher set and returns the
// feature ids whose dispatcher changed, sorted.
func (a *Allocator) Reshard(ctx context.Context, dispatcherIDs []string) (*Assignment, []string, error) {
	next, moved, err := a.swap(ctx, dispatcherIDs)
	if err != nil {
		return nil, nil, err
	}
	if a.events != nil {
		_, _ = a.events.Append(ctx, journal.Event{
			Kind:  journal.KindResharded,
			Moved: len(moved),
			AtMs:  next.ComputedAt,
		})
	}
	a.logger.Info("resharded",
		log.Int("dispatchers", len(dispatcherIDs)),
		log.Int("moved", len(moved)))
	return next, moved, nil
}

func (a *Allocator) swap(ctx context.Context, dispatcherIDs []string) (*Assignment, []string, error) {
	if len(dispatcherIDs) == 0 {
		return nil, nil, ErrNoDispatchers
	}
	seen := make(map[string]bool, len(dispatcherIDs))
	for _, d := range dispatcherIDs {
		if d == "" {
			return nil, nil, fmt.Errorf("shard: empty dispatcher id")
		}
		if seen[d] {
			return nil, nil, fmt.Errorf("shard: duplicate dispatcher id %q", d)
		}
		seen[d] = true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Store(StateResharding)
	defer a.state.Store(StateStable)

	featureIDs, err := a.features()
	if err != nil {
		return nil, nil, fmt.Errorf("shard: list features: %w", err)
	}

	dispatchers := append([]string(nil), dispatcherIDs...)
	sort.Strings(dispatchers)

	prev := a.current.Load()
	next := &Assignment{
		Dispatchers: dispatchers,
		ByFeature:   make(map[string]string, len(featureIDs)),
		ComputedAt:  time.Now().UnixMilli(),
	}
	if prev != nil {
		next.Version = prev.Version + 1
	} else {
		next.Version = 1
	}

	var moved []string
	for _, fid := range featureIDs {
		winner := rendezvous(fid, dispatchers)
		next.ByFeature[fid] = winner
		if prev != nil {
			if old, ok := prev.ByFeature[fid]; ok && old != winner {
				moved = append(moved, fid)
			}
		}
	}
	sort.Strings(moved)

	val, err := json.Marshal(next)
	if err != nil {
		return nil, nil, err
	}
	if err := a.db.Set(assignmentKey(), val); err != nil {
		return nil, nil, fmt.Errorf("%w: assignment write: %v", pebblestore.ErrUnavailable, err)
	}
	a.current.Store(next)
	return next, moved, nil
}

// DispatcherFor returns the dispatcher owning a feature. Features registered
// after the last partition are resolved against the current dispatcher set
// on the fly; the next Partition folds them into the published assignment.
func (a *Allocator) DispatcherFor(featureID string) (string, bool) {
	cur := a.current.Load()
	if cur == nil {
		return "", false
	}
	if d, ok := cur.ByFeature[featureID]; ok {
		return d, true
	}
	if len(cur.Dispatchers) == 0 {
		return "", false
	}
	return rendezvous(featureID, cur.Dispatchers), true
}

// Current returns the published assignment, or nil before the first
// Partition.
func (a *Allocator) Current() *Assignment {
	return a.current.Load()
}

// State reports stable or resharding.
func (a *Allocator) State() string {
	return a.state.Load().(string)
}

// Map groups the current assignment by dispatcher, feature ids sorted.
func (a *Allocator) Map() map[string][]string {
	cur := a.current.Load()
	out := make(map[string][]string)
	if cur == nil {
		return out
	}
	for _, d := range cur.Dispatchers {
		out[d] = nil
	}
	for fid, d := range cur.ByFeature {
		out[d] = append(out[d], fid)
	}
	for d := range out {
		sort.Strings(out[d])
	}
	return out
}

// rendezvous picks the dispatcher with the highest hash weight for the
// feature. Deterministic for a given (feature, dispatcher set); ties break
// toward the lexically smaller dispatcher via the sorted scan order.
func rendezvous(featureID string, dispatchers []string) string {
	var winner string
	var best uint64
	for _, d := range dispatchers {
		h := fnv.New64a()
		h.Write([]byte(d))
		h.Write([]byte{0})
		h.Write([]byte(featureID))
		if w := h.Sum64(); winner == "" || w > best {
			winner = d
			best = w
		}
	}
	return winner
}
