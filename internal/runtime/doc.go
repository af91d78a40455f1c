// Package runtime wires storage, configuration, and the pipeline components
// into a single-node instance, and owns the background goroutines.
package runtime
