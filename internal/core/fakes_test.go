package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// errInjected is returned by fakes when a test injects a failure.
//
//nolint:gochecknoglobals // package-level test sentinel
var errInjected = errors.New("injected failure")

// fakeEndpoint is an in-memory Endpoint. Every method is safe for
// concurrent use.
type fakeEndpoint struct {
	mu sync.Mutex

	points   int
	nextID   ActorID
	alive    map[ActorID]bool
	occupied map[int]bool

	spawnCalls   int
	failSpawnAt  int // 1-based Spawn call that fails; 0 disables
	destroyCalls map[ActorID]int
	destroyErr   map[ActorID]error
	pingErr      error
	aliveErr     error

	// beforeAlive and beforeDestroy run before every IsAlive and Destroy,
	// outside the lock.
	beforeAlive   func(id ActorID)
	beforeDestroy func(id ActorID)
}

func newFakeEndpoint(points int) *fakeEndpoint {
	return &fakeEndpoint{
		points:       points,
		nextID:       100,
		alive:        make(map[ActorID]bool),
		occupied:     make(map[int]bool),
		destroyCalls: make(map[ActorID]int),
		destroyErr:   make(map[ActorID]error),
	}
}

func (f *fakeEndpoint) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeEndpoint) SpawnPoints(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.points, nil
}

func (f *fakeEndpoint) Spawn(ctx context.Context, req SpawnRequest) (ActorID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawnCalls++
	if f.failSpawnAt > 0 && f.spawnCalls == f.failSpawnAt {
		return 0, errInjected
	}
	if f.occupied[req.SpawnPoint] {
		return 0, fmt.Errorf("point %d: %w", req.SpawnPoint, ErrSpawnCollision)
	}
	f.occupied[req.SpawnPoint] = true
	id := f.nextID
	f.nextID++
	f.alive[id] = true
	return id, nil
}

func (f *fakeEndpoint) IsAlive(_ context.Context, id ActorID) (bool, error) {
	if f.beforeAlive != nil {
		f.beforeAlive(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aliveErr != nil {
		return false, f.aliveErr
	}
	return f.alive[id], nil
}

func (f *fakeEndpoint) Destroy(_ context.Context, id ActorID) error {
	if f.beforeDestroy != nil {
		f.beforeDestroy(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyCalls[id]++
	if err := f.destroyErr[id]; err != nil {
		return err
	}
	delete(f.alive, id)
	return nil
}

func (f *fakeEndpoint) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeEndpoint) spawns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawnCalls
}

func (f *fakeEndpoint) aliveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alive)
}

// destroys returns a copy of the per-actor destroy call counts.
func (f *fakeEndpoint) destroys() map[ActorID]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[ActorID]int, len(f.destroyCalls))
	for id, n := range f.destroyCalls {
		out[id] = n
	}
	return out
}

// spawnN spawns n actors directly and returns unclaimed handles for them.
func (f *fakeEndpoint) spawnN(t *testing.T, n int) []*Handle {
	t.Helper()
	handles := make([]*Handle, n)
	for i := range n {
		id, err := f.Spawn(context.Background(), SpawnRequest{SpawnPoint: i})
		if err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
		handles[i] = NewHandle(id, f)
	}
	return handles
}

// fakeWorker records Start and Stop calls.
type fakeWorker struct {
	startErr error
	started  atomic.Bool
	stops    atomic.Int32
}

func (w *fakeWorker) Start(_ context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.started.Store(true)
	return nil
}

func (w *fakeWorker) Stop() {
	w.stops.Add(1)
}

// workerFactory returns a factory that hands out w and stores the panic
// handler in onPanic.
func workerFactory(w *fakeWorker, onPanic *atomic.Pointer[func(any)]) WorkerFactory {
	return func(_ []ActorID, handler func(any)) (Worker, error) {
		if onPanic != nil {
			onPanic.Store(&handler)
		}
		return w, nil
	}
}

// fakeRecorder counts journal calls.
type fakeRecorder struct {
	mu        sync.Mutex
	spawned   []ActorID
	reclaimed []Report
}

func (r *fakeRecorder) RecordSpawned(_ context.Context, _ string, actors []ActorID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spawned = append(r.spawned, actors...)
	return nil
}

func (r *fakeRecorder) RecordReclaimed(_ context.Context, _ string, rep Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reclaimed = append(r.reclaimed, rep)
	return nil
}

func (r *fakeRecorder) reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reclaimed...)
}

// exitRecorder replaces os.Exit in tests.
type exitRecorder struct {
	codes chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{codes: make(chan int, 4)}
}

func (e *exitRecorder) exit(code int) {
	e.codes <- code
}

func (e *exitRecorder) wait(t *testing.T) int {
	t.Helper()
	select {
	case code := <-e.codes:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("exit was not called")
		return -1
	}
}

// testSessionConfig returns a fast-polling config for count actors.
func testSessionConfig(count int) SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.ActorCount = count
	cfg.Seed = 7
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CallTimeout = time.Second
	cfg.TakeoverTimeout = 200 * time.Millisecond
	return cfg
}

// waitForState polls s until it reaches want or the deadline passes.
func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("session state = %s, want %s", s.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// assertDestroyedOnce fails unless every id was destroyed exactly once.
func assertDestroyedOnce(t *testing.T, ep *fakeEndpoint, ids []ActorID) {
	t.Helper()
	calls := ep.destroys()
	for _, id := range ids {
		if calls[id] != 1 {
			t.Errorf("actor %s destroyed %d times, want 1", id, calls[id])
		}
	}
}
