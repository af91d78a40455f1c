// Package id generates sortable identifiers used for batch ids and claim
// tokens. IDs order by creation time first, then per-millisecond sequence.
package id
