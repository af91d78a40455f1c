// Package pebblestore wraps Pebble with the durability policy and batch
// helpers shared by the registry, queue, job-folder, and journal stores.
package pebblestore
