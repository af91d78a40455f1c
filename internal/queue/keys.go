package queue

import "encoding/binary"

// Key layout, per stage queue:
//
//	q/{stage}/item/{featureId}             -> Item JSON (present while queued or claimed)
//	q/{stage}/ready/{enqMs8}{featureId}    -> feature id (FIFO index, BE timestamp)
//	q/{stage}/claimed/{featureId}          -> claimedAtMs (8B BE)
//
// The ready index orders by enqueue time first and feature id second, so a
// plain forward scan yields claim order.
func itemKey(stage, featureID string) []byte {
	return []byte("q/" + stage + "/item/" + featureID)
}

func itemPrefix(stage string) []byte {
	return []byte("q/" + stage + "/item/")
}

func readyPrefix(stage string) []byte {
	return []byte("q/" + stage + "/ready/")
}

func readyKey(stage string, enqueuedAtMs int64, featureID string) []byte {
	prefix := "q/" + stage + "/ready/"
	key := make([]byte, len(prefix)+8+len(featureID))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(enqueuedAtMs))
	copy(key[len(prefix)+8:], featureID)
	return key
}

func claimedPrefix(stage string) []byte {
	return []byte("q/" + stage + "/claimed/")
}

func claimedKey(stage, featureID string) []byte {
	return []byte("q/" + stage + "/claimed/" + featureID)
}
