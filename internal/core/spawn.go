package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/simguard/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SpawnConfig controls how the initial actor population is created.
type SpawnConfig struct {
	// Count is the target number of actors. It is clamped to the number of
	// spawn points the endpoint offers.
	Count int
	// Seed drives the spawn point shuffle. A negative seed uses the clock.
	Seed int64
	// Blueprint is the blueprint filter passed to every Spawn call.
	Blueprint string
	// Concurrency bounds in-flight Spawn calls.
	Concurrency int
	// Rate limits Spawn calls per second. Zero means unlimited.
	Rate float64
	// CallTimeout bounds each rollback destroy call.
	CallTimeout time.Duration
}

// SpawnActors creates cfg.Count actors on ep and returns their handles in
// index order.
//
// Spawn points are shuffled with a seeded PCG so a fixed seed reproduces
// the same layout. A Spawn call that reports ErrSpawnCollision moves on to
// the next point nobody has used yet.
//
// On any other failure every actor spawned so far is destroyed before the
// error is returned, so a failed startup leaks nothing.
func SpawnActors(ctx context.Context, ep Endpoint, cfg SpawnConfig) ([]*Handle, error) {
	log := Logger()

	points, err := ep.SpawnPoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query spawn points: %w", ErrSpawn, err)
	}

	count := cfg.Count
	if count > points {
		log.Warn("not enough spawn points for requested actors; clamping",
			"requested", count, "spawn_points", points)
		count = points
	}
	if count <= 0 {
		return nil, nil
	}

	order := shuffledPoints(points, cfg.Seed)
	var next atomic.Int64
	next.Store(int64(count))

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, max(1, cfg.Concurrency))

	ids := make([]ActorID, count)
	spawned := make([]bool, count)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Concurrency))
	for i := range count {
		g.Go(func() error {
			point := order[i]
			for {
				if err := limiter.Wait(gCtx); err != nil {
					return fmt.Errorf("wait for spawn slot: %w", err)
				}
				id, err := ep.Spawn(gCtx, SpawnRequest{Blueprint: cfg.Blueprint, SpawnPoint: point})
				if err == nil {
					ids[i] = id
					spawned[i] = true
					return nil
				}
				if !errors.Is(err, ErrSpawnCollision) {
					return fmt.Errorf("spawn at point %d: %w", point, err)
				}
				n := next.Add(1) - 1
				if n >= int64(points) {
					return fmt.Errorf("spawn at point %d: %w (no free spawn point left)", point, err)
				}
				log.Debug("spawn point occupied, retrying", "point", point, "next", order[n])
				point = order[n]
			}
		})
	}

	if err := g.Wait(); err != nil {
		var leftover []ActorID
		for i, ok := range spawned {
			if ok {
				leftover = append(leftover, ids[i])
			}
		}
		destroyAll(ep, leftover, cfg.CallTimeout)
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	handles := make([]*Handle, count)
	for i, id := range ids {
		handles[i] = NewHandle(id, ep)
	}
	metrics.ActorsSpawned(count)
	log.Info("spawned actors", "count", count, "spawn_points", points)
	return handles, nil
}

// shuffledPoints returns a permutation of [0, n). A negative seed is
// replaced by the current time.
func shuffledPoints(n int, seed int64) []int {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)) //nolint:gosec // G404: layout shuffle, not security
	return rng.Perm(n)
}

// destroyAll destroys ids concurrently. Failures are logged; the actors stay
// behind for the journal sweep.
func destroyAll(ep Endpoint, ids []ActorID, timeout time.Duration) {
	if len(ids) == 0 {
		return
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	Logger().Warn("destroying actors spawned before the failure", "actors", len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := ep.Destroy(ctx, id); err != nil {
				Logger().Warn("failed to destroy actor during rollback", "actor", id, "error", err)
			}
		}()
	}
	wg.Wait()
}
