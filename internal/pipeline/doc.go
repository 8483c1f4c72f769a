// Package pipeline is the concurrent worker that drives a session's actors.
//
// A Pipeline partitions the actors into shards and runs one goroutine per
// shard. Every tick each shard runs its configured stages over its actors.
// Panics on shard goroutines are recovered and handed to the panic handler
// supplied by the session, which is the session's fault trap.
package pipeline
