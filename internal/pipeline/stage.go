package pipeline

import (
	"context"
	"sync"

	"github.com/giantswarm/simguard/internal/core"
	"github.com/giantswarm/simguard/internal/metrics"
)

// Stage is one step a shard runs for every actor on every tick. Process is
// called concurrently for different actors.
type Stage interface {
	Name() string
	Process(ctx context.Context, id core.ActorID) error
}

type funcStage struct {
	name string
	fn   func(ctx context.Context, id core.ActorID) error
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Process(ctx context.Context, id core.ActorID) error {
	return s.fn(ctx, id)
}

// NewStage adapts fn to a Stage.
func NewStage(name string, fn func(ctx context.Context, id core.ActorID) error) Stage {
	return funcStage{name: name, fn: fn}
}

// Liveness is the part of core.Endpoint the observe stage needs.
type Liveness interface {
	IsAlive(ctx context.Context, id core.ActorID) (bool, error)
}

// ObserveStage watches actor liveness and counts actors that disappeared
// from the endpoint while the session was running.
type ObserveStage struct {
	ep Liveness

	mu   sync.Mutex
	lost map[core.ActorID]struct{}
}

var _ Stage = (*ObserveStage)(nil)

// NewObserveStage returns an ObserveStage querying ep.
func NewObserveStage(ep Liveness) *ObserveStage {
	return &ObserveStage{ep: ep, lost: make(map[core.ActorID]struct{})}
}

// Name implements Stage.
func (s *ObserveStage) Name() string { return "observe" }

// Process implements Stage.
func (s *ObserveStage) Process(ctx context.Context, id core.ActorID) error {
	alive, err := s.ep.IsAlive(ctx, id)
	if err != nil || alive {
		return err
	}

	s.mu.Lock()
	_, seen := s.lost[id]
	if !seen {
		s.lost[id] = struct{}{}
	}
	n := len(s.lost)
	s.mu.Unlock()

	if !seen {
		core.Logger().Warn("actor disappeared from the endpoint", "actor", id)
		metrics.SetActorsLost(n)
	}
	return nil
}

// Lost returns how many actors were observed gone.
func (s *ObserveStage) Lost() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lost)
}
