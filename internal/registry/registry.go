package registry

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/internal/journal"
	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Caller errors. All are recoverable by the collaborator; none are fatal.
var (
	ErrDuplicateFeature  = errors.New("duplicate feature")
	ErrUnknownFeature    = errors.New("unknown feature")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Feature is the unit of work tracked end-to-end through the pipeline.
type Feature struct {
	ID                 string `json:"id"`
	Stage              Stage  `json:"-"`
	StageName          string `json:"stage"`
	BatchID            string `json:"batchId,omitempty"`
	ShardKey           string `json:"shardKey"`
	Seq                uint64 `json:"seq"`
	CreatedAtMs        int64  `json:"createdAtMs"`
	LastTransitionAtMs int64  `json:"lastTransitionAtMs"`
}

// Registry is the source of truth for feature identity, stage, and batch
// membership. All mutations commit as single atomic batches.
type Registry struct {
	db     *pebblestore.DB
	events *journal.Log

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Registry and restores the registration sequence from
// metadata if present. events may be nil in tests.
func Open(db *pebblestore.DB, events *journal.Log) (*Registry, error) {
	r := &Registry{db: db, events: events}
	if meta, err := db.Get(metaKey()); err == nil && len(meta) >= 8 {
		r.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return r, nil
}

// Register creates a feature in StageRegistered. The shard key is derived
// from the id once and never changes. If batchID is non-empty the batch is
// ensured and membership recorded.
func (r *Registry) Register(ctx context.Context, id, batchID string) (Feature, error) {
	if id == "" {
		return Feature{}, fmt.Errorf("registry: feature id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Get(featKey(id)); err == nil {
		return Feature{}, fmt.Errorf("%w: %s", ErrDuplicateFeature, id)
	} else if !pebblestore.IsNotFound(err) {
		return Feature{}, fmt.Errorf("%w: registry read: %v", pebblestore.ErrUnavailable, err)
	}

	now := time.Now().UnixMilli()
	r.lastSeq++
	f := Feature{
		ID:                 id,
		Stage:              StageRegistered,
		StageName:          StageRegistered.String(),
		BatchID:            batchID,
		ShardKey:           shardKeyFor(id),
		Seq:                r.lastSeq,
		CreatedAtMs:        now,
		LastTransitionAtMs: now,
	}

	b := r.db.NewBatch()
	defer b.Close()
	val, err := json.Marshal(f)
	if err != nil {
		return Feature{}, err
	}
	if err := b.Set(featKey(id), val, nil); err != nil {
		return Feature{}, err
	}
	if err := b.Set(seqKey(f.Seq), []byte(id), nil); err != nil {
		return Feature{}, err
	}
	if err := b.Set(stageKey(StageRegistered, f.Seq), []byte(id), nil); err != nil {
		return Feature{}, err
	}
	if batchID != "" {
		if err := r.addToBatchLocked(b, batchID, id, now); err != nil {
			return Feature{}, err
		}
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], r.lastSeq)
	if err := b.Set(metaKey(), meta[:], nil); err != nil {
		return Feature{}, err
	}
	if err := r.db.CommitBatch(ctx, b); err != nil {
		return Feature{}, fmt.Errorf("%w: registry commit: %v", pebblestore.ErrUnavailable, err)
	}

	if r.events != nil {
		_, _ = r.events.Append(ctx, journal.Event{
			Kind:      journal.KindRegistered,
			FeatureID: id,
			Stage:     f.StageName,
			AtMs:      now,
		})
	}
	return f, nil
}

// Transition moves a feature to a later stage, or to StageRejected from any
// non-terminal stage. The old stage index entry is replaced atomically with
// the feature record update.
func (r *Registry) Transition(ctx context.Context, id string, to Stage) (Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.getLocked(id)
	if err != nil {
		return Feature{}, err
	}
	if !CanTransition(f.Stage, to) {
		return Feature{}, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, f.Stage, to, id)
	}

	from := f.Stage
	now := time.Now().UnixMilli()
	f.Stage = to
	f.StageName = to.String()
	f.LastTransitionAtMs = now

	b := r.db.NewBatch()
	defer b.Close()
	val, err := json.Marshal(f)
	if err != nil {
		return Feature{}, err
	}
	if err := b.Set(featKey(id), val, nil); err != nil {
		return Feature{}, err
	}
	if err := b.Delete(stageKey(from, f.Seq), nil); err != nil {
		return Feature{}, err
	}
	if err := b.Set(stageKey(to, f.Seq), []byte(id), nil); err != nil {
		return Feature{}, err
	}
	if err := r.db.CommitBatch(ctx, b); err != nil {
		return Feature{}, fmt.Errorf("%w: registry commit: %v", pebblestore.ErrUnavailable, err)
	}

	if r.events != nil {
		_, _ = r.events.Append(ctx, journal.Event{
			Kind:      journal.KindTransitioned,
			FeatureID: id,
			From:      from.String(),
			To:        to.String(),
			AtMs:      now,
		})
	}
	return f, nil
}

// Get returns a feature by id.
func (r *Registry) Get(id string) (Feature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *Registry) getLocked(id string) (Feature, error) {
	val, err := r.db.Get(featKey(id))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Feature{}, fmt.Errorf("%w: %s", ErrUnknownFeature, id)
		}
		return Feature{}, fmt.Errorf("%w: registry read: %v", pebblestore.ErrUnavailable, err)
	}
	return decodeFeature(val)
}

func decodeFeature(val []byte) (Feature, error) {
	var f Feature
	if err := json.Unmarshal(val, &f); err != nil {
		return Feature{}, err
	}
	stage, err := ParseStage(f.StageName)
	if err != nil {
		return Feature{}, err
	}
	f.Stage = stage
	return f, nil
}

// ListByStage returns features in the given stage in registration order.
func (r *Registry) ListByStage(stage Stage) ([]Feature, error) {
	it, err := r.db.PrefixIter(stagePrefix(stage))
	if err != nil {
		return nil, fmt.Errorf("%w: registry scan: %v", pebblestore.ErrUnavailable, err)
	}
	defer it.Close()

	var out []Feature
	for ok := it.First(); ok; ok = it.Next() {
		f, err := r.Get(string(it.Value()))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// All returns every known feature in registration order.
func (r *Registry) All() ([]Feature, error) {
	it, err := r.db.PrefixIter(seqPrefix())
	if err != nil {
		return nil, fmt.Errorf("%w: registry scan: %v", pebblestore.ErrUnavailable, err)
	}
	defer it.Close()

	var out []Feature
	for ok := it.First(); ok; ok = it.Next() {
		f, err := r.Get(string(it.Value()))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// shardKeyFor derives the stable shard key for a feature id. Set once at
// registration, immutable after.
func shardKeyFor(id string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(id)))
}
