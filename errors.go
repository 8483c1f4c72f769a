package simguard

import (
	"github.com/giantswarm/simguard/internal/core"
	"github.com/giantswarm/simguard/internal/journal"
	"github.com/giantswarm/simguard/internal/simclient"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrConnect is returned when the endpoint never answered at startup.
	ErrConnect = simclient.ErrConnect

	// ErrEndpointLocked is returned when another supervisor owns the
	// endpoint's journal.
	ErrEndpointLocked = journal.ErrEndpointLocked

	// ErrSpawn is returned by Run when the actors could not be spawned.
	// Everything spawned before the failure has been destroyed.
	ErrSpawn = core.ErrSpawn

	// ErrSpawnCollision marks an occupied spawn point. Endpoint
	// implementations wrap it; Run retries on another point.
	ErrSpawnCollision = core.ErrSpawnCollision

	// ErrWorkerStart is returned by Run when the worker failed to start.
	// The actors have been destroyed.
	ErrWorkerStart = core.ErrWorkerStart

	// ErrConnectionLost marks a failed liveness query. Run reports it
	// through Result.Reason rather than as an error.
	ErrConnectionLost = core.ErrConnectionLost

	// ErrSessionUsed is returned by a second call to Run.
	ErrSessionUsed = core.ErrSessionUsed

	// ErrFault is returned by Run after the fault trap handled a panic
	// with an exit function that returned.
	ErrFault = core.ErrFault
)
