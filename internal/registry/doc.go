// Package registry is the source of truth for feature identity and stage.
// Features move forward through an ordered stage enum (Rejected excepted),
// every transition is journaled, and per-stage listings preserve registration
// order.
package registry
