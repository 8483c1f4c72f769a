package simguard

import (
	"fmt"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("simguard: %s must be greater than 0, got %v", name, v))
	}
}

// SessionOption configures a Session during construction via NewSession.
//
// Several With* functions panic on invalid input (negative counts, empty
// blueprints, non-positive durations). Option values are normally constants
// or already validated configuration, so an invalid value is a programmer
// error and fails at construction.
type SessionOption func(*sessionConfig)

// WithActorCount sets how many actors Run spawns. The count is clamped to
// the spawn points the endpoint offers. Zero runs the session without
// actors.
//
// Default: 20.
//
// Panics if n < 0.
func WithActorCount(n int) SessionOption {
	if n < 0 {
		panic(fmt.Sprintf("simguard: actor count must not be negative, got %d", n))
	}
	return func(c *sessionConfig) {
		c.ActorCount = n
	}
}

// WithSeed fixes the spawn point shuffle. A negative seed uses the clock.
//
// Default: -1.
func WithSeed(seed int64) SessionOption {
	return func(c *sessionConfig) {
		c.Seed = seed
	}
}

// WithBlueprint sets the blueprint filter passed to every spawn call.
//
// Default: "vehicle.*".
//
// Panics if filter is empty.
func WithBlueprint(filter string) SessionOption {
	if filter == "" {
		panic("simguard: blueprint must not be empty")
	}
	return func(c *sessionConfig) {
		c.Blueprint = filter
	}
}

// WithSpawnConcurrency bounds how many spawn calls are in flight.
//
// Default: 8.
//
// Panics if n <= 0.
func WithSpawnConcurrency(n int) SessionOption {
	requirePositive("spawn concurrency", n)
	return func(c *sessionConfig) {
		c.SpawnConcurrency = n
	}
}

// WithSpawnRate limits spawn calls per second. Zero removes the limit.
//
// Panics if perSecond < 0.
func WithSpawnRate(perSecond float64) SessionOption {
	if perSecond < 0 {
		panic(fmt.Sprintf("simguard: spawn rate must not be negative, got %v", perSecond))
	}
	return func(c *sessionConfig) {
		c.SpawnRate = perSecond
	}
}

// WithPollInterval sets the delay between liveness queries.
//
// Default: 1 second.
//
// Panics if d <= 0.
func WithPollInterval(d time.Duration) SessionOption {
	requirePositive("poll interval", d)
	return func(c *sessionConfig) {
		c.PollInterval = d
	}
}

// WithCallTimeout bounds each liveness and destroy call made while
// reclaiming.
//
// Default: 2 seconds.
//
// Panics if d <= 0.
func WithCallTimeout(d time.Duration) SessionOption {
	requirePositive("call timeout", d)
	return func(c *sessionConfig) {
		c.CallTimeout = d
	}
}

// WithTakeoverTimeout sets how long the fault trap waits for a reclamation
// already in progress before destroying the remaining actors itself.
//
// Default: 10 seconds.
//
// Panics if d <= 0.
func WithTakeoverTimeout(d time.Duration) SessionOption {
	requirePositive("takeover timeout", d)
	return func(c *sessionConfig) {
		c.TakeoverTimeout = d
	}
}

// WithRecorder journals spawned and reclaimed actors to r.
//
// Panics if r is nil.
func WithRecorder(r Recorder) SessionOption {
	if r == nil {
		panic("simguard: recorder must not be nil")
	}
	return func(c *sessionConfig) {
		c.recorder = r
	}
}

// WithShutdownFlag makes the session observe flag instead of a private one.
// Install Relay on the same flag before NewSession so an interrupt during
// spawning is not lost.
//
// Panics if flag is nil.
func WithShutdownFlag(flag *ShutdownFlag) SessionOption {
	if flag == nil {
		panic("simguard: shutdown flag must not be nil")
	}
	return func(c *sessionConfig) {
		c.flag = flag
	}
}

// withExit replaces os.Exit in the fault trap. Tests only.
func withExit(exit func(code int)) SessionOption {
	return func(c *sessionConfig) {
		c.exit = exit
	}
}
