package simguard

import "time"

// WithExitForTesting exposes withExit to the external test package.
func WithExitForTesting(exit func(code int)) SessionOption { return withExit(exit) }

// ConfigSnapshot holds a copy of sessionConfig fields for test assertions.
type ConfigSnapshot struct {
	ActorCount       int
	Seed             int64
	Blueprint        string
	SpawnConcurrency int
	SpawnRate        float64
	PollInterval     time.Duration
	CallTimeout      time.Duration
	TakeoverTimeout  time.Duration
	HasRecorder      bool
	HasFlag          bool
	HasExit          bool
}

// ApplyOptionsForTesting applies opts to the default config and returns a
// snapshot, exercising the option closures without creating a session.
func ApplyOptionsForTesting(opts ...SessionOption) ConfigSnapshot {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return ConfigSnapshot{
		ActorCount:       cfg.ActorCount,
		Seed:             cfg.Seed,
		Blueprint:        cfg.Blueprint,
		SpawnConcurrency: cfg.SpawnConcurrency,
		SpawnRate:        cfg.SpawnRate,
		PollInterval:     cfg.PollInterval,
		CallTimeout:      cfg.CallTimeout,
		TakeoverTimeout:  cfg.TakeoverTimeout,
		HasRecorder:      cfg.recorder != nil,
		HasFlag:          cfg.flag != nil,
		HasExit:          cfg.exit != nil,
	}
}
