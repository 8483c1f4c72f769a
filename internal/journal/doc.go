// Package journal keeps a durable record of the actors each session
// spawned, so actors that survive a hard kill can be destroyed by the next
// run.
//
// A journal is one SQLite file per simulation endpoint. Opening it takes an
// exclusive file lock next to the database, which also guarantees that only
// one supervisor owns a given endpoint at a time.
package journal
