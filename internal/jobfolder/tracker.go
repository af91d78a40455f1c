package jobfolder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Caller errors.
var (
	ErrAlreadyOpen   = errors.New("folder already open")
	ErrUnknownFolder = errors.New("unknown folder")
	ErrUnknownSlot   = errors.New("unknown slot")
	ErrAlreadyFilled = errors.New("slot already filled")
	ErrIncomplete    = errors.New("folder incomplete")
)

// Folder tracks fan-out work for one feature: a fixed set of required slots,
// each filled exactly once by a contributor. A folder is complete when the
// filled set equals the required set, nothing less and nothing more.
type Folder struct {
	FeatureID  string           `json:"featureId"`
	Required   []string         `json:"required"`
	Filled     map[string]int64 `json:"filled"` // slot -> filledAtMs
	OpenedAtMs int64            `json:"openedAtMs"`
	ClosedAtMs int64            `json:"closedAtMs,omitempty"`
	Forced     bool             `json:"forced,omitempty"`
}

// Complete reports whether every required slot is filled.
func (f Folder) Complete() bool { return len(f.Missing()) == 0 }

// Missing returns the required slots not yet filled, sorted.
func (f Folder) Missing() []string {
	var out []string
	for _, slot := range f.Required {
		if _, ok := f.Filled[slot]; !ok {
			out = append(out, slot)
		}
	}
	sort.Strings(out)
	return out
}

// FilledSlots returns the filled slot names, sorted.
func (f Folder) FilledSlots() []string {
	out := make([]string, 0, len(f.Filled))
	for slot := range f.Filled {
		out = append(out, slot)
	}
	sort.Strings(out)
	return out
}

// Tracker manages job folders, one live folder per feature at a time. Closed
// folders move to an archive keyspace and stay readable.
type Tracker struct {
	db *pebblestore.DB
	mu sync.Mutex
}

// Open initializes a Tracker.
func Open(db *pebblestore.DB) *Tracker {
	return &Tracker{db: db}
}

// OpenFolder creates a live folder for the feature with the given required
// slots. Slot names must be non-empty and unique. A feature can have only one
// live folder; closing it frees the id for a new one.
func (t *Tracker) OpenFolder(ctx context.Context, featureID string, requiredSlots []string) (Folder, error) {
	if featureID == "" {
		return Folder{}, fmt.Errorf("jobfolder: feature id required")
	}
	if len(requiredSlots) == 0 {
		return Folder{}, fmt.Errorf("jobfolder: at least one required slot")
	}
	seen := make(map[string]bool, len(requiredSlots))
	for _, slot := range requiredSlots {
		if slot == "" {
			return Folder{}, fmt.Errorf("jobfolder: empty slot name")
		}
		if seen[slot] {
			return Folder{}, fmt.Errorf("jobfolder: duplicate slot %q", slot)
		}
		seen[slot] = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.db.Get(openKey(featureID)); err == nil {
		return Folder{}, fmt.Errorf("%w: %s", ErrAlreadyOpen, featureID)
	} else if !pebblestore.IsNotFound(err) {
		return Folder{}, fmt.Errorf("%w: folder read: %v", pebblestore.ErrUnavailable, err)
	}

	f := Folder{
		FeatureID:  featureID,
		Required:   append([]string(nil), requiredSlots...),
		Filled:     make(map[string]int64),
		OpenedAtMs: time.Now().UnixMilli(),
	}
	if err := t.putLocked(openKey(featureID), f); err != nil {
		return Folder{}, err
	}
	return f, nil
}

// Fill marks a slot filled. Unknown slots are rejected; filling a slot twice
// is rejected unless overwrite is set, in which case the fill time updates.
// Returns the folder after the fill so callers can check Complete.
func (t *Tracker) Fill(ctx context.Context, featureID, slot string, overwrite bool) (Folder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := t.getLocked(openKey(featureID))
	if err != nil {
		return Folder{}, err
	}
	known := false
	for _, s := range f.Required {
		if s == slot {
			known = true
			break
		}
	}
	if !known {
		return Folder{}, fmt.Errorf("%w: %q for %s", ErrUnknownSlot, slot, featureID)
	}
	if _, filled := f.Filled[slot]; filled && !overwrite {
		return Folder{}, fmt.Errorf("%w: %q for %s", ErrAlreadyFilled, slot, featureID)
	}
	f.Filled[slot] = time.Now().UnixMilli()

	if err := t.putLocked(openKey(featureID), f); err != nil {
		return Folder{}, err
	}
	return f, nil
}

// Status returns the live folder for a feature, falling back to the archived
// one if the folder was closed.
func (t *Tracker) Status(featureID string) (Folder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := t.getLocked(openKey(featureID))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrUnknownFolder) {
		return Folder{}, err
	}
	return t.getLocked(archiveKey(featureID))
}

// Close archives a folder. An incomplete folder is rejected with
// ErrIncomplete unless force is set; forced closes are flagged on the
// archived record.
func (t *Tracker) Close(ctx context.Context, featureID string, force bool) (Folder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := t.getLocked(openKey(featureID))
	if err != nil {
		return Folder{}, err
	}
	if missing := f.Missing(); len(missing) > 0 {
		if !force {
			return Folder{}, fmt.Errorf("%w: %s missing %v", ErrIncomplete, featureID, missing)
		}
		f.Forced = true
	}
	f.ClosedAtMs = time.Now().UnixMilli()

	val, err := json.Marshal(f)
	if err != nil {
		return Folder{}, err
	}
	b := t.db.NewBatch()
	defer b.Close()
	if err := b.Set(archiveKey(featureID), val, nil); err != nil {
		return Folder{}, err
	}
	if err := b.Delete(openKey(featureID), nil); err != nil {
		return Folder{}, err
	}
	if err := t.db.CommitBatch(ctx, b); err != nil {
		return Folder{}, fmt.Errorf("%w: folder commit: %v", pebblestore.ErrUnavailable, err)
	}
	return f, nil
}

// OpenFolders returns every live folder.
func (t *Tracker) OpenFolders() ([]Folder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	iter, err := t.db.PrefixIter([]byte(prefixOpen))
	if err != nil {
		return nil, fmt.Errorf("%w: folder scan: %v", pebblestore.ErrUnavailable, err)
	}
	defer iter.Close()

	var out []Folder
	for ok := iter.First(); ok; ok = iter.Next() {
		var f Folder
		if err := json.Unmarshal(iter.Value(), &f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (t *Tracker) getLocked(key []byte) (Folder, error) {
	val, err := t.db.Get(key)
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Folder{}, fmt.Errorf("%w: %s", ErrUnknownFolder, string(key))
		}
		return Folder{}, fmt.Errorf("%w: folder read: %v", pebblestore.ErrUnavailable, err)
	}
	var f Folder
	if err := json.Unmarshal(val, &f); err != nil {
		return Folder{}, err
	}
	return f, nil
}

func (t *Tracker) putLocked(key []byte, f Folder) error {
	val, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := t.db.Set(key, val); err != nil {
		return fmt.Errorf("%w: folder write: %v", pebblestore.ErrUnavailable, err)
	}
	return nil
}
