package core

import (
	"context"
	"strconv"
)

// ActorID identifies one actor on the remote simulation endpoint.
type ActorID uint64

// String renders the ID in decimal, the form used in URLs and logs.
func (id ActorID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SpawnRequest describes one actor to create on the endpoint.
type SpawnRequest struct {
	// Blueprint is a blueprint filter such as "vehicle.*".
	Blueprint string
	// SpawnPoint is an index into the endpoint's spawn points.
	SpawnPoint int
}

// Endpoint is the remote simulation endpoint as seen by the supervisor.
//
// Implementations apply their own per-request timeout. Every method must be
// safe for concurrent use: the fault trap can call IsAlive and Destroy from
// any goroutine while the supervisor is polling.
type Endpoint interface {
	// Ping is the liveness query. Any error is a connection failure.
	Ping(ctx context.Context) error

	// SpawnPoints returns how many spawn points the loaded map offers.
	SpawnPoints(ctx context.Context) (int, error)

	// Spawn creates one actor and returns its ID. Implementations return an
	// error wrapping ErrSpawnCollision when the spawn point is occupied.
	Spawn(ctx context.Context, req SpawnRequest) (ActorID, error)

	// IsAlive reports whether the actor still exists on the endpoint.
	IsAlive(ctx context.Context, id ActorID) (bool, error)

	// Destroy removes the actor. Destroying an actor that is already gone
	// returns nil.
	Destroy(ctx context.Context, id ActorID) error
}

// Worker is the concurrent control engine driving the registered actors.
// The supervisor knows nothing about its internals beyond these two calls.
type Worker interface {
	// Start blocks until the worker is running. An error is fatal to the
	// session.
	Start(ctx context.Context) error

	// Stop blocks until the worker has fully halted. It must be safe to
	// call more than once and after the worker halted on its own.
	Stop()
}

// WorkerFactory builds the Worker for the published actors. onPanic must be
// called with the recovered value of any panic raised on a goroutine the
// worker owns.
type WorkerFactory func(actors []ActorID, onPanic func(any)) (Worker, error)

// Recorder persists what the session spawned and what it reclaimed so that
// a later run can sweep leftovers. A nil Recorder disables journaling.
type Recorder interface {
	RecordSpawned(ctx context.Context, sessionID string, actors []ActorID) error
	RecordReclaimed(ctx context.Context, sessionID string, report Report) error
}
