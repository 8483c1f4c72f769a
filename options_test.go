package simguard_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/giantswarm/simguard"
)

// panicTestCase defines a test case for option validation panic tests.
type panicTestCase struct {
	name     string
	panics   bool
	panicMsg string
	fn       func()
}

// requirePanics calls fn and verifies it panics (or not) with the expected message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic {
			if msg := fmt.Sprint(r); msg != wantMsg {
				t.Fatalf("expected panic message %q, got %q", wantMsg, msg)
			}
		}
	}()
	fn()
}

func runPanicTests(t *testing.T, tests []panicTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, tt.panics, tt.panicMsg, tt.fn)
		})
	}
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "negative actor count",
			panics:   true,
			panicMsg: "simguard: actor count must not be negative, got -1",
			fn:       func() { simguard.WithActorCount(-1) },
		},
		{name: "zero actor count", fn: func() { simguard.WithActorCount(0) }},
		{
			name:     "empty blueprint",
			panics:   true,
			panicMsg: "simguard: blueprint must not be empty",
			fn:       func() { simguard.WithBlueprint("") },
		},
		{
			name:     "zero spawn concurrency",
			panics:   true,
			panicMsg: "simguard: spawn concurrency must be greater than 0, got 0",
			fn:       func() { simguard.WithSpawnConcurrency(0) },
		},
		{
			name:     "negative spawn rate",
			panics:   true,
			panicMsg: "simguard: spawn rate must not be negative, got -0.5",
			fn:       func() { simguard.WithSpawnRate(-0.5) },
		},
		{
			name:     "zero poll interval",
			panics:   true,
			panicMsg: "simguard: poll interval must be greater than 0, got 0s",
			fn:       func() { simguard.WithPollInterval(0) },
		},
		{
			name:     "negative call timeout",
			panics:   true,
			panicMsg: "simguard: call timeout must be greater than 0, got -1s",
			fn:       func() { simguard.WithCallTimeout(-time.Second) },
		},
		{
			name:     "zero takeover timeout",
			panics:   true,
			panicMsg: "simguard: takeover timeout must be greater than 0, got 0s",
			fn:       func() { simguard.WithTakeoverTimeout(0) },
		},
		{
			name:     "nil recorder",
			panics:   true,
			panicMsg: "simguard: recorder must not be nil",
			fn:       func() { simguard.WithRecorder(nil) },
		},
		{
			name:     "nil flag",
			panics:   true,
			panicMsg: "simguard: shutdown flag must not be nil",
			fn:       func() { simguard.WithShutdownFlag(nil) },
		},
	})
}

type nopRecorder struct{}

func (nopRecorder) RecordSpawned(context.Context, string, []simguard.ActorID) error { return nil }
func (nopRecorder) RecordReclaimed(context.Context, string, simguard.Report) error  { return nil }

func TestOptionsApply(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts  []simguard.SessionOption
		check func(t *testing.T, c simguard.ConfigSnapshot)
	}{
		"defaults": {
			check: func(t *testing.T, c simguard.ConfigSnapshot) {
				if c.ActorCount != simguard.DefaultActorCount || c.Seed != simguard.DefaultSeed ||
					c.Blueprint != simguard.DefaultBlueprint || c.PollInterval != simguard.DefaultPollInterval ||
					c.CallTimeout != simguard.DefaultCallTimeout || c.TakeoverTimeout != simguard.DefaultTakeoverTimeout ||
					c.SpawnConcurrency != simguard.DefaultSpawnConcurrency {
					t.Errorf("defaults = %+v", c)
				}
				if c.HasRecorder || c.HasFlag || c.HasExit {
					t.Errorf("collaborators set by default: %+v", c)
				}
			},
		},
		"spawn options": {
			opts: []simguard.SessionOption{
				simguard.WithActorCount(3),
				simguard.WithSeed(9),
				simguard.WithBlueprint("walker.*"),
				simguard.WithSpawnConcurrency(2),
				simguard.WithSpawnRate(4),
			},
			check: func(t *testing.T, c simguard.ConfigSnapshot) {
				if c.ActorCount != 3 || c.Seed != 9 || c.Blueprint != "walker.*" || c.SpawnConcurrency != 2 || c.SpawnRate != 4 {
					t.Errorf("snapshot = %+v", c)
				}
			},
		},
		"timing options": {
			opts: []simguard.SessionOption{
				simguard.WithPollInterval(time.Millisecond),
				simguard.WithCallTimeout(3 * time.Second),
				simguard.WithTakeoverTimeout(time.Minute),
			},
			check: func(t *testing.T, c simguard.ConfigSnapshot) {
				if c.PollInterval != time.Millisecond || c.CallTimeout != 3*time.Second || c.TakeoverTimeout != time.Minute {
					t.Errorf("snapshot = %+v", c)
				}
			},
		},
		"collaborators": {
			opts: []simguard.SessionOption{
				simguard.WithRecorder(nopRecorder{}),
				simguard.WithShutdownFlag(simguard.NewShutdownFlag()),
				simguard.WithExitForTesting(func(int) {}),
			},
			check: func(t *testing.T, c simguard.ConfigSnapshot) {
				if !c.HasRecorder || !c.HasFlag || !c.HasExit {
					t.Errorf("snapshot = %+v", c)
				}
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tc.check(t, simguard.ApplyOptionsForTesting(tc.opts...))
		})
	}
}
