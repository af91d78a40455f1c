package shard

// The published assignment persists whole at a single key; it is small and
// swapped atomically, so there is nothing to scan.
func assignmentKey() []byte { return []byte("shard/assignment") }
