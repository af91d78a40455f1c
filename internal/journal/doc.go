// Package journal is the append-only event log of pipeline activity:
// feature registrations and transitions, bottleneck alert raises/clears, and
// reshard operations. The status API reads it; nothing in the core depends on
// reading it back.
package journal
