package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
	"github.com/conveyorhq/conveyor/pkg/id"
)

// Kind labels a journal event.
type Kind string

// Event kinds appended by the registry, monitor, and allocator.
const (
	KindRegistered   Kind = "registered"
	KindTransitioned Kind = "transitioned"
	KindAlertRaised  Kind = "alert_raised"
	KindAlertCleared Kind = "alert_cleared"
	KindResharded    Kind = "resharded"
)

// Event is a single append-only pipeline event. ID is a sortable hex id
// assigned at append time.
type Event struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Kind      Kind   `json:"kind"`
	FeatureID string `json:"featureId,omitempty"`
	Stage     string `json:"stage,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Threshold int    `json:"threshold,omitempty"`
	Moved     int    `json:"moved,omitempty"`
	AtMs      int64  `json:"atMs"`
}

// Log provides append-only event operations over the shared store.
type Log struct {
	db  *pebblestore.DB
	ids *id.Generator

	mu      sync.Mutex
	lastSeq uint64
}

// OpenLog initializes a Log and loads the last sequence from metadata (if any).
func OpenLog(db *pebblestore.DB) (*Log, error) {
	l := &Log{db: db, ids: id.NewGenerator()}
	meta, err := db.Get(metaKey())
	if err == nil && len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return l, nil
}

// Append writes the event as a single atomic batch and returns its sequence.
func (l *Log) Append(ctx context.Context, ev Event) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	l.lastSeq++
	ev.Seq = l.lastSeq
	ev.ID = l.ids.Next().String()
	val, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}
	if err := b.Set(entryKey(ev.Seq), val, nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(metaKey(), meta[:], nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("%w: journal append: %v", pebblestore.ErrUnavailable, err)
	}
	return ev.Seq, nil
}

// ReadFrom returns up to limit events with Seq >= from, in sequence order.
func (l *Log) ReadFrom(from uint64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	it, err := l.db.PrefixIter(entryPrefix())
	if err != nil {
		return nil, fmt.Errorf("%w: journal read: %v", pebblestore.ErrUnavailable, err)
	}
	defer it.Close()

	out := make([]Event, 0, limit)
	for ok := it.SeekGE(entryKey(from)); ok && len(out) < limit; ok = it.Next() {
		var ev Event
		if err := json.Unmarshal(it.Value(), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Recent returns up to limit of the newest events, oldest first.
func (l *Log) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	it, err := l.db.PrefixIter(entryPrefix())
	if err != nil {
		return nil, fmt.Errorf("%w: journal read: %v", pebblestore.ErrUnavailable, err)
	}
	defer it.Close()

	rev := make([]Event, 0, limit)
	for ok := it.Last(); ok && len(rev) < limit; ok = it.Prev() {
		var ev Event
		if err := json.Unmarshal(it.Value(), &ev); err != nil {
			continue
		}
		rev = append(rev, ev)
	}
	out := make([]Event, len(rev))
	for i := range rev {
		out[len(rev)-1-i] = rev[i]
	}
	return out, nil
}

// LastSeq returns the most recently assigned sequence.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}
