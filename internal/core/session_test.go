package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type runOutcome struct {
	res Result
	err error
}

// startSession runs s on a new goroutine and returns the outcome channel.
func startSession(ctx context.Context, s *Session) <-chan runOutcome {
	out := make(chan runOutcome, 1)
	go func() {
		res, err := s.Run(ctx)
		out <- runOutcome{res: res, err: err}
	}()
	return out
}

func awaitOutcome(t *testing.T, out <-chan runOutcome) runOutcome {
	t.Helper()
	select {
	case o := <-out:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return runOutcome{}
	}
}

func TestNewSessionPanics(t *testing.T) {
	t.Parallel()

	valid := testSessionConfig(1)
	bad := valid
	bad.PollInterval = 0

	tests := map[string]struct {
		params SessionParams
	}{
		"nil endpoint": {
			params: SessionParams{NewWorker: workerFactory(&fakeWorker{}, nil), Config: valid},
		},
		"nil worker factory": {
			params: SessionParams{Endpoint: newFakeEndpoint(1), Config: valid},
		},
		"invalid config": {
			params: SessionParams{
				Endpoint:  newFakeEndpoint(1),
				NewWorker: workerFactory(&fakeWorker{}, nil),
				Config:    bad,
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			NewSession(tc.params)
		})
	}
}

// TestSessionInterruptReclaimsEveryActor covers the ten-actor interrupt
// scenario: ten destroy calls, exit code 0.
func TestSessionInterruptReclaimsEveryActor(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(50)
	w := &fakeWorker{}
	rec := &fakeRecorder{}
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(w, nil),
		Recorder:  rec,
		Config:    testSessionConfig(10),
	})
	if got := s.State(); got != StateNotStarted {
		t.Fatalf("initial state = %s, want %s", got, StateNotStarted)
	}

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)
	ids := s.Registry().IDs()
	if len(ids) != 10 {
		t.Fatalf("registry holds %d actors, want 10", len(ids))
	}

	s.Interrupt()
	o := awaitOutcome(t, out)

	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	if o.res.Reason != StopInterrupt {
		t.Errorf("reason = %s, want %s", o.res.Reason, StopInterrupt)
	}
	if code := o.res.ExitCode(); code != ExitOK {
		t.Errorf("exit code = %d, want %d", code, ExitOK)
	}
	if got := o.res.Report.Destroyed(); got != 10 {
		t.Errorf("destroyed = %d, want 10", got)
	}
	assertDestroyedOnce(t, ep, ids)
	if n := ep.aliveCount(); n != 0 {
		t.Errorf("%d actors still alive", n)
	}
	if n := w.stops.Load(); n != 1 {
		t.Errorf("worker stopped %d times, want 1", n)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("final state = %s, want %s", got, StateStopped)
	}
	if s.Trap().Fired() {
		t.Error("trap fired on a graceful shutdown")
	}
	if got := len(rec.spawned); got != 10 {
		t.Errorf("journaled %d spawned actors, want 10", got)
	}
	if reps := rec.reports(); len(reps) != 1 || reps[0].Pass != PassGraceful {
		t.Errorf("journaled reports = %+v, want one graceful report", reps)
	}
}

func TestSessionConnectionLost(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	w := &fakeWorker{}
	exits := newExitRecorder()
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(w, nil),
		Exit:      exits.exit,
		Config:    testSessionConfig(4),
	})

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)
	ids := s.Registry().IDs()
	ep.setPingErr(errInjected)

	o := awaitOutcome(t, out)
	if o.err != nil {
		t.Fatalf("Run: %v", o.err)
	}
	if o.res.Reason != StopConnectionLost {
		t.Errorf("reason = %s, want %s", o.res.Reason, StopConnectionLost)
	}
	if code := o.res.ExitCode(); code != ExitOK {
		t.Errorf("exit code = %d, want %d", code, ExitOK)
	}
	if s.Trap().Fired() {
		t.Error("connection loss must not reach the fault trap")
	}
	if !s.Flag().Raised() {
		t.Error("connection loss must raise the shutdown flag")
	}
	assertDestroyedOnce(t, ep, ids)
	select {
	case code := <-exits.codes:
		t.Errorf("exit(%d) called on connection loss", code)
	default:
	}
}

func TestSessionWorkerFault(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	w := &fakeWorker{}
	exits := newExitRecorder()
	var onPanic atomic.Pointer[func(any)]
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(w, &onPanic),
		Exit:      exits.exit,
		Config:    testSessionConfig(6),
	})

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)
	ids := s.Registry().IDs()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				(*onPanic.Load())(r)
			}
		}()
		panic("worker blew up")
	}()

	if code := exits.wait(t); code != ExitFault {
		t.Errorf("exit code = %d, want %d", code, ExitFault)
	}
	assertDestroyedOnce(t, ep, ids)

	o := awaitOutcome(t, out)
	if !errors.Is(o.err, ErrFault) {
		t.Errorf("Run error = %v, want ErrFault", o.err)
	}
	if o.res.Reason != StopFault {
		t.Errorf("reason = %s, want %s", o.res.Reason, StopFault)
	}
	if o.res.Report.Pass != PassEmergency {
		t.Errorf("report pass = %s, want %s", o.res.Report.Pass, PassEmergency)
	}
	// The supervisor's graceful pass lost the gate; nothing was destroyed
	// twice.
	assertDestroyedOnce(t, ep, ids)
}

// TestSessionFaultDuringGracefulPass panics inside the supervisor's own
// reclamation after the destroy call was issued. The trap's emergency pass
// reclaims the handles nobody claimed and leaves the faulted one alone.
func TestSessionFaultDuringGracefulPass(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	var first atomic.Bool
	ep.beforeDestroy = func(ActorID) {
		if first.CompareAndSwap(false, true) {
			panic("destroy exploded")
		}
	}
	exits := newExitRecorder()
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(&fakeWorker{}, nil),
		Exit:      exits.exit,
		Config:    testSessionConfig(5),
	})

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)
	ids := s.Registry().IDs()
	s.Interrupt()

	if code := exits.wait(t); code != ExitFault {
		t.Errorf("exit code = %d, want %d", code, ExitFault)
	}
	o := awaitOutcome(t, out)
	if !errors.Is(o.err, ErrFault) {
		t.Errorf("Run error = %v, want ErrFault", o.err)
	}

	calls := ep.destroys()
	if n := calls[ids[0]]; n != 0 {
		t.Errorf("panicking actor %s reached Destroy %d times, want 0", ids[0], n)
	}
	assertDestroyedOnce(t, ep, ids[1:])
}

// TestSessionLivenessFaultDuringGracefulPass panics in the liveness check
// of the first actor while the supervisor reclaims. No destroy was issued
// for it, so the emergency pass must still destroy it.
func TestSessionLivenessFaultDuringGracefulPass(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	exits := newExitRecorder()
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(&fakeWorker{}, nil),
		Exit:      exits.exit,
		Config:    testSessionConfig(5),
	})

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)
	ids := s.Registry().IDs()
	ep.beforeAlive = panicOnce(ids[0])
	s.Interrupt()

	if code := exits.wait(t); code != ExitFault {
		t.Errorf("exit code = %d, want %d", code, ExitFault)
	}
	o := awaitOutcome(t, out)
	if !errors.Is(o.err, ErrFault) || o.res.Reason != StopFault {
		t.Errorf("Run = (%s, %v), want fault", o.res.Reason, o.err)
	}
	assertDestroyedOnce(t, ep, ids)
	if n := ep.aliveCount(); n != 0 {
		t.Errorf("%d actors still alive", n)
	}
}

// stoppingFaultWorker panics on one of its own goroutines while Stop waits
// for that goroutine.
type stoppingFaultWorker struct {
	onPanic func(any)
}

func (w *stoppingFaultWorker) Start(context.Context) error { return nil }

func (w *stoppingFaultWorker) Stop() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				w.onPanic(r)
			}
		}()
		panic("worker exploded while stopping")
	}()
	<-done
}

func TestSessionWorkerFaultWhileStopping(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	exits := newExitRecorder()
	cfg := testSessionConfig(4)
	cfg.TakeoverTimeout = 5 * time.Second
	s := NewSession(SessionParams{
		Endpoint: ep,
		NewWorker: func(_ []ActorID, onPanic func(any)) (Worker, error) {
			return &stoppingFaultWorker{onPanic: onPanic}, nil
		},
		Exit:   exits.exit,
		Config: cfg,
	})

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)
	ids := s.Registry().IDs()

	start := time.Now()
	s.Interrupt()
	if code := exits.wait(t); code != ExitFault {
		t.Errorf("exit code = %d, want %d", code, ExitFault)
	}
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("emergency pass finished after %s, want it well before the takeover timeout", elapsed)
	}

	o := awaitOutcome(t, out)
	if !errors.Is(o.err, ErrFault) {
		t.Errorf("Run error = %v, want ErrFault", o.err)
	}
	if o.res.Reason != StopFault {
		t.Errorf("reason = %s, want %s", o.res.Reason, StopFault)
	}
	if o.res.Report.Pass != PassEmergency {
		t.Errorf("report pass = %s, want %s", o.res.Report.Pass, PassEmergency)
	}
	assertDestroyedOnce(t, ep, ids)
}

func TestSessionInterruptDuringSpawn(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(20)
	w := &fakeWorker{}
	cfg := testSessionConfig(20)
	cfg.SpawnConcurrency = 1
	cfg.SpawnRate = 5
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(w, nil),
		Config:    cfg,
	})

	out := startSession(context.Background(), s)
	deadline := time.Now().Add(5 * time.Second)
	for ep.aliveCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no actor spawned")
		}
		time.Sleep(5 * time.Millisecond)
	}

	start := time.Now()
	s.Interrupt()
	o := awaitOutcome(t, out)
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("Run returned %s after the interrupt, want spawning to stop early", elapsed)
	}
	if o.err != nil || o.res.Reason != StopInterrupt {
		t.Errorf("Run = (%+v, %v), want interrupt", o.res, o.err)
	}
	if n := ep.spawns(); n >= 20 {
		t.Errorf("%d spawn calls, want spawning cut short", n)
	}
	if n := ep.aliveCount(); n != 0 {
		t.Errorf("%d actors leaked", n)
	}
	if w.started.Load() {
		t.Error("worker started after an interrupted spawn")
	}
}

func TestSessionWorkerStartFailure(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	w := &fakeWorker{startErr: errInjected}
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(w, nil),
		Config:    testSessionConfig(3),
	})

	res, err := s.Run(context.Background())
	if !errors.Is(err, ErrWorkerStart) {
		t.Fatalf("Run error = %v, want ErrWorkerStart", err)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("Run error = %v, want it to wrap the start error", err)
	}
	if res.Reason != StopStartFailure || res.ExitCode() != ExitFault {
		t.Errorf("result = %+v, want start failure with exit code 1", res)
	}
	assertDestroyedOnce(t, ep, s.Registry().IDs())
	if n := w.stops.Load(); n != 1 {
		t.Errorf("worker stopped %d times, want 1", n)
	}
	if s.State() != StateStopped {
		t.Errorf("state = %s, want %s", s.State(), StateStopped)
	}
}

func TestSessionSpawnFailureLeaksNothing(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(10)
	ep.failSpawnAt = 4
	w := &fakeWorker{}
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(w, nil),
		Config:    testSessionConfig(6),
	})

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("Run error = %v, want ErrSpawn", err)
	}
	if n := ep.aliveCount(); n != 0 {
		t.Errorf("%d actors leaked after spawn failure", n)
	}
	if w.started.Load() {
		t.Error("worker started after spawn failure")
	}
}

func TestSessionParentCancel(t *testing.T) {
	t.Parallel()

	ep := newFakeEndpoint(5)
	s := NewSession(SessionParams{
		Endpoint:  ep,
		NewWorker: workerFactory(&fakeWorker{}, nil),
		Config:    testSessionConfig(2),
	})

	ctx, cancel := context.WithCancel(context.Background())
	out := startSession(ctx, s)
	waitForState(t, s, StateRunning)
	cancel()

	o := awaitOutcome(t, out)
	if o.err != nil || o.res.Reason != StopInterrupt {
		t.Errorf("Run = (%+v, %v), want interrupt", o.res, o.err)
	}
	if n := ep.aliveCount(); n != 0 {
		t.Errorf("%d actors still alive", n)
	}
}

// TestSessionCancellationLatency checks that an interrupt is noticed within
// one poll interval.
func TestSessionCancellationLatency(t *testing.T) {
	t.Parallel()

	const interval = 300 * time.Millisecond
	cfg := testSessionConfig(1)
	cfg.PollInterval = interval
	s := NewSession(SessionParams{
		Endpoint:  newFakeEndpoint(1),
		NewWorker: workerFactory(&fakeWorker{}, nil),
		Config:    cfg,
	})

	out := startSession(context.Background(), s)
	waitForState(t, s, StateRunning)

	start := time.Now()
	s.Interrupt()
	waitForState(t, s, StateStopping)
	if elapsed := time.Since(start); elapsed > interval {
		t.Errorf("interrupt noticed after %s, want at most %s", elapsed, interval)
	}
	awaitOutcome(t, out)
}

func TestSessionRunTwice(t *testing.T) {
	t.Parallel()

	s := NewSession(SessionParams{
		Endpoint:  newFakeEndpoint(1),
		NewWorker: workerFactory(&fakeWorker{}, nil),
		Config:    testSessionConfig(0),
	})
	s.Interrupt()
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrSessionUsed) {
		t.Errorf("second Run error = %v, want ErrSessionUsed", err)
	}
}

func TestSessionZeroActors(t *testing.T) {
	t.Parallel()

	s := NewSession(SessionParams{
		Endpoint:  newFakeEndpoint(3),
		NewWorker: workerFactory(&fakeWorker{}, nil),
		Config:    testSessionConfig(0),
	})
	s.Interrupt()

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Registry().Len() != 0 || len(res.Report.Attempted) != 0 {
		t.Errorf("zero-actor session reclaimed %v", res.Report.Attempted)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		state State
		want  string
	}{
		"not started": {state: StateNotStarted, want: "not-started"},
		"running":     {state: StateRunning, want: "running"},
		"stopping":    {state: StateStopping, want: "stopping"},
		"stopped":     {state: StateStopped, want: "stopped"},
		"unknown":     {state: State(42), want: "State(42)"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := tc.state.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}
