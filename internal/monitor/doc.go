// Package monitor raises and clears per-stage bottleneck alerts from queue
// depth readings, with hysteresis between the raise and clear thresholds.
package monitor
