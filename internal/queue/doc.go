// Package queue implements durable per-stage work queues. Items are claimed
// in FIFO order by enqueue time, requeue keeps the original position, and a
// background sweeper reclaims claims whose workers went silent.
package queue
