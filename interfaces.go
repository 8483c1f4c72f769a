package simguard

import (
	"context"

	"github.com/giantswarm/simguard/internal/core"
)

// Types shared with the internal packages. They are aliases so values move
// between the public API and the worker and endpoint implementations
// without conversion.
type (
	// ActorID identifies one actor on the endpoint.
	ActorID = core.ActorID
	// SpawnRequest describes one actor to create.
	SpawnRequest = core.SpawnRequest
	// Endpoint is the remote simulation endpoint.
	Endpoint = core.Endpoint
	// Worker is the concurrent engine driving the actors.
	Worker = core.Worker
	// WorkerFactory builds the Worker once the actors exist.
	WorkerFactory = core.WorkerFactory
	// Recorder journals spawned and reclaimed actors.
	Recorder = core.Recorder
	// Report summarizes one reclamation pass.
	Report = core.Report
	// PassKind tells graceful and emergency passes apart.
	PassKind = core.PassKind
	// Result is the outcome of Session.Run.
	Result = core.Result
	// State is a session lifecycle state.
	State = core.State
	// StopReason explains why a session stopped.
	StopReason = core.StopReason
	// ShutdownFlag is the one-way flag every shutdown trigger raises.
	ShutdownFlag = core.ShutdownFlag
)

// Session lifecycle states.
const (
	StateNotStarted = core.StateNotStarted
	StateRunning    = core.StateRunning
	StateStopping   = core.StateStopping
	StateStopped    = core.StateStopped
)

// Stop reasons.
const (
	StopInterrupt      = core.StopInterrupt
	StopConnectionLost = core.StopConnectionLost
	StopStartFailure   = core.StopStartFailure
	StopFault          = core.StopFault
)

// Reclamation pass kinds.
const (
	PassGraceful  = core.PassGraceful
	PassEmergency = core.PassEmergency
)

// Session supervises one population of actors.
//
// Run may be called once. All other methods are safe for concurrent use,
// including from signal handlers and worker goroutines.
type Session interface {
	// ID returns the session's unique identifier.
	ID() string

	// State returns the current lifecycle state.
	State() State

	// Run spawns the actors, starts the worker and supervises until the
	// shutdown flag is raised or the endpoint stops answering. It then
	// stops the worker and destroys every actor before returning.
	//
	// Interrupts and connection loss are normal terminations: the error is
	// nil and Result.Reason says why. Startup failures return an error
	// after destroying whatever was spawned.
	Run(ctx context.Context) (Result, error)

	// Interrupt raises the shutdown flag.
	Interrupt()

	// Flag returns the session's shutdown flag.
	Flag() *ShutdownFlag

	// Actors returns the spawned actor IDs in spawn order. It is empty
	// until Run has spawned them.
	Actors() []ActorID

	// Guard recovers a panic on the calling goroutine and hands it to the
	// fault trap. It must be deferred directly.
	Guard()

	// HandleFault passes an already recovered panic value to the fault
	// trap. It does not return in production.
	HandleFault(r any)
}
