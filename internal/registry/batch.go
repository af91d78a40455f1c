package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Batch errors.
var (
	ErrUnknownBatch = errors.New("unknown batch")
	ErrBatchOpen    = errors.New("batch has non-terminal features")
)

// Batch groups features registered together. A batch closes only when every
// member feature is terminal.
type Batch struct {
	ID         string   `json:"id"`
	FeatureIDs []string `json:"featureIds"`
	OpenedAtMs int64    `json:"openedAtMs"`
	ClosedAtMs int64    `json:"closedAtMs,omitempty"`
}

// addToBatchLocked ensures the batch record exists and appends the feature id
// to its membership, writing into the caller's batch. Idempotent for existing
// members. Caller holds r.mu.
func (r *Registry) addToBatchLocked(b *pebble.Batch, batchID, featureID string, nowMs int64) error {
	batch, err := r.getBatchLocked(batchID)
	if err != nil {
		if !errors.Is(err, ErrUnknownBatch) {
			return err
		}
		batch = Batch{ID: batchID, OpenedAtMs: nowMs}
	}
	if batch.ClosedAtMs != 0 {
		return fmt.Errorf("registry: batch %s already closed", batchID)
	}
	for _, id := range batch.FeatureIDs {
		if id == featureID {
			return nil
		}
	}
	batch.FeatureIDs = append(batch.FeatureIDs, featureID)
	val, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return b.Set(batchKey(batchID), val, nil)
}

// GetBatch returns a batch by id.
func (r *Registry) GetBatch(id string) (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getBatchLocked(id)
}

func (r *Registry) getBatchLocked(id string) (Batch, error) {
	val, err := r.db.Get(batchKey(id))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Batch{}, fmt.Errorf("%w: %s", ErrUnknownBatch, id)
		}
		return Batch{}, fmt.Errorf("%w: batch read: %v", pebblestore.ErrUnavailable, err)
	}
	var batch Batch
	if err := json.Unmarshal(val, &batch); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// CloseBatch closes a batch once every member feature is terminal. Returns
// ErrBatchOpen otherwise, naming nothing about which member blocked it; use
// Get for that.
func (r *Registry) CloseBatch(ctx context.Context, id string) (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, err := r.getBatchLocked(id)
	if err != nil {
		return Batch{}, err
	}
	if batch.ClosedAtMs != 0 {
		return batch, nil
	}
	for _, fid := range batch.FeatureIDs {
		f, err := r.getLocked(fid)
		if err != nil {
			return Batch{}, err
		}
		if !f.Stage.Terminal() {
			return Batch{}, fmt.Errorf("%w: %s in %s", ErrBatchOpen, fid, f.Stage)
		}
	}
	batch.ClosedAtMs = time.Now().UnixMilli()
	val, err := json.Marshal(batch)
	if err != nil {
		return Batch{}, err
	}
	if err := r.db.Set(batchKey(id), val); err != nil {
		return Batch{}, fmt.Errorf("%w: batch commit: %v", pebblestore.ErrUnavailable, err)
	}
	return batch, nil
}
