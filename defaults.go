package simguard

import "github.com/giantswarm/simguard/internal/core"

// Default configuration values for NewSession.
const (
	// DefaultActorCount is the number of actors spawned when
	// WithActorCount is not given.
	DefaultActorCount = core.DefaultActorCount

	// DefaultSeed selects a clock-based spawn point shuffle.
	DefaultSeed = core.DefaultSeed

	// DefaultBlueprint spawns any vehicle.
	DefaultBlueprint = core.DefaultBlueprint

	// DefaultSpawnConcurrency bounds in-flight spawn calls.
	DefaultSpawnConcurrency = core.DefaultSpawnConcurrency

	// DefaultPollInterval is the delay between liveness queries. It is
	// also the worst-case delay between an interrupt and the start of
	// shutdown.
	DefaultPollInterval = core.DefaultPollInterval

	// DefaultCallTimeout bounds each liveness and destroy call made while
	// reclaiming.
	DefaultCallTimeout = core.DefaultCallTimeout

	// DefaultTakeoverTimeout is how long the fault trap waits for a
	// reclamation already in progress before taking over.
	DefaultTakeoverTimeout = core.DefaultTakeoverTimeout
)

// Process exit statuses returned by Result.ExitCode.
const (
	ExitOK    = core.ExitOK
	ExitFault = core.ExitFault
)
