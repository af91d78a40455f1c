// Package shard assigns features to dispatchers with rendezvous hashing.
// Assignments are immutable and published through an atomic pointer, so a
// reshard moves the minimum set of features and never shows readers a torn
// mapping.
package shard
