package core

import (
	"errors"
	"fmt"
	"time"
)

// Defaults shared by the public package and the CLI.
const (
	DefaultActorCount       = 20
	DefaultSeed             = -1
	DefaultBlueprint        = "vehicle.*"
	DefaultSpawnConcurrency = 8
	DefaultPollInterval     = time.Second
	DefaultCallTimeout      = 2 * time.Second
	DefaultTakeoverTimeout  = 10 * time.Second
)

// SessionConfig holds the tunables of a Session. All fields are immutable
// after NewSession.
type SessionConfig struct {
	// ActorCount is the number of actors to spawn. Zero runs a session
	// without actors.
	ActorCount int
	// Seed drives spawn point selection; negative means time-based.
	Seed int64
	// Blueprint filters which blueprints the endpoint may spawn.
	Blueprint string
	// SpawnConcurrency bounds in-flight Spawn calls.
	SpawnConcurrency int
	// SpawnRate limits Spawn calls per second; zero is unlimited.
	SpawnRate float64

	// PollInterval is the sleep between liveness queries. It bounds how
	// long the supervisor takes to notice an interrupt.
	PollInterval time.Duration
	// CallTimeout bounds each liveness and destroy call made during
	// reclamation.
	CallTimeout time.Duration
	// TakeoverTimeout bounds how long the fault trap waits for a graceful
	// pass before claiming the remaining actors itself.
	TakeoverTimeout time.Duration
}

// DefaultSessionConfig returns a SessionConfig with every default applied.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ActorCount:       DefaultActorCount,
		Seed:             DefaultSeed,
		Blueprint:        DefaultBlueprint,
		SpawnConcurrency: DefaultSpawnConcurrency,
		PollInterval:     DefaultPollInterval,
		CallTimeout:      DefaultCallTimeout,
		TakeoverTimeout:  DefaultTakeoverTimeout,
	}
}

// Validate reports every invalid field at once.
func (c SessionConfig) Validate() error {
	var errs []error

	if c.ActorCount < 0 {
		errs = append(errs, fmt.Errorf("actor count must not be negative, got %d", c.ActorCount))
	}
	if c.Blueprint == "" {
		errs = append(errs, errors.New("blueprint must not be empty"))
	}
	if c.SpawnConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("spawn concurrency must be greater than 0, got %d", c.SpawnConcurrency))
	}
	if c.SpawnRate < 0 {
		errs = append(errs, fmt.Errorf("spawn rate must not be negative, got %v", c.SpawnRate))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be greater than 0, got %s", c.PollInterval))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("call timeout must be greater than 0, got %s", c.CallTimeout))
	}
	if c.TakeoverTimeout <= 0 {
		errs = append(errs, fmt.Errorf("takeover timeout must be greater than 0, got %s", c.TakeoverTimeout))
	}

	return errors.Join(errs...)
}

func (c SessionConfig) spawnConfig() SpawnConfig {
	return SpawnConfig{
		Count:       c.ActorCount,
		Seed:        c.Seed,
		Blueprint:   c.Blueprint,
		Concurrency: c.SpawnConcurrency,
		Rate:        c.SpawnRate,
		CallTimeout: c.CallTimeout,
	}
}
