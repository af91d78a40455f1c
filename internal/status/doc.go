// Package status aggregates read-only views over the pipeline: the snapshot
// served by the HTTP API, CEL-filtered feature listings, and the queue
// summary with operator recommendations.
package status
