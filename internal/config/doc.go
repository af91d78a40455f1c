// Package config loads the conveyor configuration: the ordered stage list
// with per-stage alert thresholds and required deliverable slots, dispatcher
// count, and sampler/sweeper intervals. Files may be JSON or YAML; CONVEYOR_*
// environment variables overlay the file.
package config
