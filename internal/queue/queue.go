package queue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/pkg/log"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Caller errors.
var (
	ErrAlreadyQueued = errors.New("feature already queued")
	ErrNotClaimed    = errors.New("feature not claimed")
)

// Item is a single queued unit of work. A feature has at most one live item
// per stage queue; the item survives claim and is removed only on Complete.
type Item struct {
	FeatureID    string `json:"featureId"`
	Stage        string `json:"stage"`
	EnqueuedAtMs int64  `json:"enqueuedAtMs"`
	ClaimedBy    string `json:"claimedBy,omitempty"`
	ClaimedAtMs  int64  `json:"claimedAtMs,omitempty"`
	Attempts     int    `json:"attempts"`
}

// Claimed reports whether the item is currently held by a worker.
func (it Item) Claimed() bool { return it.ClaimedBy != "" }

// Store manages per-stage FIFO work queues backed by pebble. Claim order is
// enqueue time, feature id as tie-break. All mutations commit atomically.
type Store struct {
	db     *pebblestore.DB
	logger log.Logger

	mu sync.Mutex

	sweepOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Open initializes a queue store. logger may be nil.
func Open(db *pebblestore.DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Store{
		db:     db,
		logger: logger.With(log.Component("queue")),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Enqueue adds a feature to a stage queue. A feature already queued or
// claimed in the same stage is rejected with ErrAlreadyQueued.
func (s *Store) Enqueue(ctx context.Context, stage, featureID string) (Item, error) {
	if stage == "" || featureID == "" {
		return Item{}, fmt.Errorf("queue: stage and feature id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Get(itemKey(stage, featureID)); err == nil {
		return Item{}, fmt.Errorf("%w: %s in %s", ErrAlreadyQueued, featureID, stage)
	} else if !pebblestore.IsNotFound(err) {
		return Item{}, fmt.Errorf("%w: queue read: %v", pebblestore.ErrUnavailable, err)
	}

	it := Item{
		FeatureID:    featureID,
		Stage:        stage,
		EnqueuedAtMs: time.Now().UnixMilli(),
	}
	if err := s.writeReady(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Claim hands the oldest unclaimed item in the stage queue to workerID.
// Returns ok=false when the queue has no unclaimed items.
func (s *Store) Claim(ctx context.Context, stage, workerID string) (Item, bool, error) {
	if workerID == "" {
		return Item{}, false, fmt.Errorf("queue: worker id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.PrefixIter(readyPrefix(stage))
	if err != nil {
		return Item{}, false, fmt.Errorf("%w: queue scan: %v", pebblestore.ErrUnavailable, err)
	}
	if !iter.First() {
		iter.Close()
		return Item{}, false, nil
	}
	featureID := string(iter.Value())
	readyK := append([]byte(nil), iter.Key()...)
	iter.Close()

	it, err := s.getLocked(stage, featureID)
	if err != nil {
		return Item{}, false, err
	}
	it.ClaimedBy = workerID
	it.ClaimedAtMs = time.Now().UnixMilli()
	it.Attempts++

	b := s.db.NewBatch()
	defer b.Close()
	val, err := json.Marshal(it)
	if err != nil {
		return Item{}, false, err
	}
	if err := b.Set(itemKey(stage, featureID), val, nil); err != nil {
		return Item{}, false, err
	}
	if err := b.Delete(readyK, nil); err != nil {
		return Item{}, false, err
	}
	var claimedAt [8]byte
	binary.BigEndian.PutUint64(claimedAt[:], uint64(it.ClaimedAtMs))
	if err := b.Set(claimedKey(stage, featureID), claimedAt[:], nil); err != nil {
		return Item{}, false, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return Item{}, false, fmt.Errorf("%w: queue commit: %v", pebblestore.ErrUnavailable, err)
	}
	return it, true, nil
}

// Complete removes a claimed item from the queue. The caller must be the
// worker holding the claim.
func (s *Store) Complete(ctx context.Context, stage, featureID, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.getLocked(stage, featureID)
	if err != nil {
		return err
	}
	if !it.Claimed() || it.ClaimedBy != workerID {
		return fmt.Errorf("%w: %s in %s", ErrNotClaimed, featureID, stage)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(itemKey(stage, featureID), nil); err != nil {
		return err
	}
	if err := b.Delete(claimedKey(stage, featureID), nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("%w: queue commit: %v", pebblestore.ErrUnavailable, err)
	}
	return nil
}

// Requeue returns a claimed item to the ready index, clearing the claim and
// preserving the original enqueue time so the item keeps its place in line.
func (s *Store) Requeue(ctx context.Context, stage, featureID string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requeueLocked(ctx, stage, featureID)
}

func (s *Store) requeueLocked(ctx context.Context, stage, featureID string) (Item, error) {
	it, err := s.getLocked(stage, featureID)
	if err != nil {
		return Item{}, err
	}
	if !it.Claimed() {
		return Item{}, fmt.Errorf("%w: %s in %s", ErrNotClaimed, featureID, stage)
	}
	it.ClaimedBy = ""
	it.ClaimedAtMs = 0
	if err := s.writeReady(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// writeReady persists the item record plus its ready index entry and drops
// any claimed index entry, as one batch. Caller holds s.mu.
func (s *Store) writeReady(ctx context.Context, it Item) error {
	b := s.db.NewBatch()
	defer b.Close()
	val, err := json.Marshal(it)
	if err != nil {
		return err
	}
	if err := b.Set(itemKey(it.Stage, it.FeatureID), val, nil); err != nil {
		return err
	}
	if err := b.Set(readyKey(it.Stage, it.EnqueuedAtMs, it.FeatureID), []byte(it.FeatureID), nil); err != nil {
		return err
	}
	if err := b.Delete(claimedKey(it.Stage, it.FeatureID), nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("%w: queue commit: %v", pebblestore.ErrUnavailable, err)
	}
	return nil
}

// Get returns the live item for a feature in a stage queue.
func (s *Store) Get(stage, featureID string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(stage, featureID)
}

func (s *Store) getLocked(stage, featureID string) (Item, error) {
	val, err := s.db.Get(itemKey(stage, featureID))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Item{}, fmt.Errorf("%w: %s in %s", ErrNotClaimed, featureID, stage)
		}
		return Item{}, fmt.Errorf("%w: queue read: %v", pebblestore.ErrUnavailable, err)
	}
	var it Item
	if err := json.Unmarshal(val, &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Depth counts every live item in a stage queue, claimed items included.
func (s *Store) Depth(stage string) (int, error) {
	return s.countPrefix(itemPrefix(stage))
}

// ClaimedCount counts items currently held by workers in a stage queue.
func (s *Store) ClaimedCount(stage string) (int, error) {
	return s.countPrefix(claimedPrefix(stage))
}

func (s *Store) countPrefix(prefix []byte) (int, error) {
	iter, err := s.db.PrefixIter(prefix)
	if err != nil {
		return 0, fmt.Errorf("%w: queue scan: %v", pebblestore.ErrUnavailable, err)
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}

// Items returns every live item in a stage queue in claim order: unclaimed
// items first by enqueue time, then claimed items by claim time.
func (s *Store) Items(stage string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.PrefixIter(itemPrefix(stage))
	if err != nil {
		return nil, fmt.Errorf("%w: queue scan: %v", pebblestore.ErrUnavailable, err)
	}
	defer iter.Close()

	var out []Item
	for ok := iter.First(); ok; ok = iter.Next() {
		var it Item
		if err := json.Unmarshal(iter.Value(), &it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}
