package queue

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/conveyorhq/conveyor/pkg/log"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// ReclaimExpired requeues every claimed item in the stage whose claim is
// older than timeout, preserving each item's original enqueue time. Returns
// the feature ids reclaimed.
func (s *Store) ReclaimExpired(ctx context.Context, stage string, timeout time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout).UnixMilli()

	iter, err := s.db.PrefixIter(claimedPrefix(stage))
	if err != nil {
		return nil, fmt.Errorf("%w: queue scan: %v", pebblestore.ErrUnavailable, err)
	}
	prefixLen := len(claimedPrefix(stage))
	var expired []string
	for ok := iter.First(); ok; ok = iter.Next() {
		if len(iter.Value()) < 8 {
			continue
		}
		claimedAt := int64(binary.BigEndian.Uint64(iter.Value()[:8]))
		if claimedAt <= cutoff {
			expired = append(expired, string(iter.Key()[prefixLen:]))
		}
	}
	iter.Close()

	for _, featureID := range expired {
		if _, err := s.requeueLocked(ctx, stage, featureID); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

// StartSweeper launches the background goroutine that periodically reclaims
// expired claims across the given stages. Safe to call once; Stop shuts it
// down.
func (s *Store) StartSweeper(stages []string, interval, claimTimeout time.Duration) {
	s.sweepOnce.Do(func() {
		go s.sweepLoop(stages, interval, claimTimeout)
	})
}

// Stop terminates the sweeper goroutine, if started, and waits for it to
// exit.
func (s *Store) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.sweepOnce.Do(func() { close(s.doneCh) })
	<-s.doneCh
}

func (s *Store) sweepLoop(stages []string, interval, claimTimeout time.Duration) {
	defer close(s.doneCh)

	// Jitter the first sweep so multiple stores on one host don't sync up.
	select {
	case <-time.After(time.Duration(rand.Int63n(int64(interval) + 1))):
	case <-s.stopCh:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.sweepAll(stages, claimTimeout)
		select {
		case <-ticker.C:
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) sweepAll(stages []string, claimTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stage := range stages {
		reclaimed, err := s.ReclaimExpired(ctx, stage, claimTimeout)
		if err != nil {
			s.logger.Warn("sweep failed", log.Str("stage", stage), log.Err(err))
			continue
		}
		if len(reclaimed) > 0 {
			s.logger.Info("reclaimed expired claims",
				log.Str("stage", stage),
				log.Int("count", len(reclaimed)))
		}
	}
}
