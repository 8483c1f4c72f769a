package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/giantswarm/simguard/internal/core"
	"github.com/giantswarm/simguard/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultTickInterval is the shard tick used when Config.TickInterval is
// zero.
const DefaultTickInterval = 100 * time.Millisecond

// Config configures a Pipeline.
type Config struct {
	// Workers is the number of shards. Zero uses runtime.NumCPU(). It is
	// capped at the number of actors.
	Workers int
	// TickInterval is the period between stage runs on each shard.
	TickInterval time.Duration
	// Stages run in order for each actor on every tick.
	Stages []Stage
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick interval must not be negative, got %s", c.TickInterval))
	}
	for i, s := range c.Stages {
		if s == nil {
			errs = append(errs, fmt.Errorf("stage %d must not be nil", i))
		}
	}
	return errors.Join(errs...)
}

// lifecycle states; transitions are idle → running → stopped or
// idle → stopped.
const (
	stateIdle uint32 = iota
	stateRunning
	stateStopped
)

// Pipeline is a sharded, ticking core.Worker.
type Pipeline struct {
	cfg     Config
	shards  [][]core.ActorID
	onPanic func(any)

	// mu serializes Start and Stop; state and cancel are written under it.
	mu     sync.Mutex
	state  uint32
	cancel context.CancelFunc
	group  errgroup.Group

	log *slog.Logger
}

var _ core.Worker = (*Pipeline)(nil)

// New partitions actors round-robin into shards. onPanic receives the value
// of any panic recovered on a shard goroutine; nil re-panics.
func New(actors []core.ActorID, onPanic func(any), cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(actors))

	shards := make([][]core.ActorID, workers)
	for i, id := range actors {
		shards[i%workers] = append(shards[i%workers], id)
	}

	if onPanic == nil {
		onPanic = func(r any) { panic(r) }
	}
	return &Pipeline{
		cfg:     cfg,
		shards:  shards,
		onPanic: onPanic,
		log:     core.Logger().With("worker", "pipeline"),
	}, nil
}

// Factory returns a core.WorkerFactory building pipelines with cfg.
func Factory(cfg Config) core.WorkerFactory {
	return func(actors []core.ActorID, onPanic func(any)) (core.Worker, error) {
		return New(actors, onPanic, cfg)
	}
}

// Shards returns the number of shard goroutines Start launches.
func (p *Pipeline) Shards() int {
	return len(p.shards)
}

// Start launches every shard and returns once all of them are running. The
// shards outlive ctx; only Stop ends them.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}
	p.state = stateRunning

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel

	var ready sync.WaitGroup
	ready.Add(len(p.shards))
	for i, actors := range p.shards {
		p.group.Go(func() error {
			p.runShard(runCtx, i, actors, &ready)
			return nil
		})
	}
	ready.Wait()

	p.log.Info("pipeline started", "shards", len(p.shards), "tick", p.cfg.TickInterval)
	return nil
}

// Stop cancels every shard and waits for them to return. Safe to call more
// than once, before Start, and concurrently.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	prev := p.state
	p.state = stateStopped
	p.mu.Unlock()

	if prev == stateRunning {
		p.cancel()
		p.log.Info("pipeline stopping")
	}
	// Wait is safe to call repeatedly and concurrently; later callers also
	// block until the shards are gone.
	_ = p.group.Wait()
}

func (p *Pipeline) runShard(ctx context.Context, shard int, actors []core.ActorID, ready *sync.WaitGroup) {
	defer func() {
		if r := recover(); r != nil {
			p.onPanic(r)
		}
	}()
	ready.Done()

	log := p.log.With("shard", shard)
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, id := range actors {
			for _, stage := range p.cfg.Stages {
				if ctx.Err() != nil {
					return
				}
				if err := stage.Process(ctx, id); err != nil {
					metrics.StageFailed(stage.Name())
					log.Debug("stage failed", "stage", stage.Name(), "actor", id, "error", err)
				}
			}
		}
	}
}
