package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/giantswarm/simguard/internal/metrics"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/wait"
)

// State is the lifecycle state of a Session.
type State uint32

const (
	StateNotStarted State = iota // zero value; NewSession returns in this state
	StateRunning                 // worker started, liveness poll active
	StateStopping                // poll ended, worker stopping, reclaiming
	StateStopped                 // terminal
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// StopReason explains why a session left the running state.
type StopReason int

const (
	StopInterrupt      StopReason = iota // shutdown flag raised by a signal or caller
	StopConnectionLost                   // liveness query failed
	StopStartFailure                     // spawn or worker start failed
	StopFault                            // the fault trap handled a panic
)

// String returns the reason name used in logs.
func (r StopReason) String() string {
	switch r {
	case StopInterrupt:
		return "interrupt"
	case StopConnectionLost:
		return "connection-lost"
	case StopStartFailure:
		return "start-failure"
	case StopFault:
		return "fault"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Result is the outcome of Session.Run.
type Result struct {
	SessionID string
	Reason    StopReason
	// Report is the graceful reclamation report, or the emergency report
	// when an emergency pass won the gate.
	Report Report
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	switch r.Reason {
	case StopInterrupt, StopConnectionLost:
		return ExitOK
	default:
		return ExitFault
	}
}

// SessionParams holds the collaborators of a Session.
type SessionParams struct {
	// Endpoint is required.
	Endpoint Endpoint
	// NewWorker is required.
	NewWorker WorkerFactory
	// Recorder is optional.
	Recorder Recorder
	// Flag is optional; a fresh flag is created when nil. Pass a flag to
	// share it with a signal relay installed before the session.
	Flag *ShutdownFlag
	// Exit terminates the process after a fault. Defaults to os.Exit.
	Exit   func(code int)
	Config SessionConfig
}

// Session supervises one population of actors from spawn to release.
//
// Run executes on a single goroutine. Everything else that can end the
// session (signals, liveness failure, parent cancellation) converges on the
// shutdown flag, which the poll loop observes. Faults bypass the flag and go
// straight to the trap.
type Session struct {
	id        string
	cfg       SessionConfig
	ep        Endpoint
	newWorker WorkerFactory
	recorder  Recorder

	flag      *ShutdownFlag
	registry  *Registry
	reclaimer *Reclaimer
	trap      *Trap

	state atomic.Uint32 // State
	used  atomic.Bool

	log *slog.Logger
}

// NewSession wires a session. It performs no I/O.
//
// Panics if Endpoint or NewWorker is nil or if params.Config is invalid.
func NewSession(params SessionParams) *Session {
	if params.Endpoint == nil {
		panic("simguard: session endpoint must not be nil")
	}
	if params.NewWorker == nil {
		panic("simguard: session worker factory must not be nil")
	}
	if err := params.Config.Validate(); err != nil {
		panic(fmt.Sprintf("simguard: invalid session config: %v", err))
	}

	flag := params.Flag
	if flag == nil {
		flag = NewShutdownFlag()
	}
	id := uuid.NewString()
	registry := NewRegistry()
	reclaimer := NewReclaimer(registry, params.Config.CallTimeout)

	return &Session{
		id:        id,
		cfg:       params.Config,
		ep:        params.Endpoint,
		newWorker: params.NewWorker,
		recorder:  params.Recorder,
		flag:      flag,
		registry:  registry,
		reclaimer: reclaimer,
		trap: NewTrap(TrapParams{
			Flag:            flag,
			Reclaimer:       reclaimer,
			Recorder:        params.Recorder,
			SessionID:       id,
			TakeoverTimeout: params.Config.TakeoverTimeout,
			Exit:            params.Exit,
		}),
		log: Logger().With("session", id),
	}
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Flag returns the session's shutdown flag.
func (s *Session) Flag() *ShutdownFlag { return s.flag }

// Registry returns the session's registry. It is empty until Run publishes
// the spawned actors.
func (s *Session) Registry() *Registry { return s.registry }

// Trap returns the session's fault trap. Goroutines started outside the
// worker that touch session state should defer Trap().Guard().
func (s *Session) Trap() *Trap { return s.trap }

// Interrupt raises the shutdown flag. Safe to call from any goroutine.
func (s *Session) Interrupt() { s.flag.Raise() }

func (s *Session) setState(st State) {
	s.state.Store(uint32(st))
	metrics.SetSessionState(int(st))
}

// Run spawns the actors, starts the worker, supervises until the flag is
// raised, then stops the worker and releases every actor.
//
// Run returns an error only for startup failures; interrupt and connection
// loss are normal terminations reported through Result.Reason. A panic on
// the calling goroutine is handled by the trap, which does not return in
// production.
func (s *Session) Run(ctx context.Context) (res Result, err error) {
	if !s.used.CompareAndSwap(false, true) {
		return Result{SessionID: s.id}, ErrSessionUsed
	}
	defer func() {
		if r := recover(); r != nil {
			s.trap.Handle(r)
			s.setState(StateStopped)
			res, err = Result{SessionID: s.id, Reason: StopFault}, ErrFault
		}
	}()

	spawnCtx, cancelSpawn := s.flag.Context(ctx)
	handles, err := SpawnActors(spawnCtx, s.ep, s.cfg.spawnConfig())
	cancelSpawn()
	if err != nil {
		s.setState(StateStopped)
		if s.flag.Raised() {
			s.log.Info("interrupted while spawning actors", "error", err)
			return Result{SessionID: s.id, Reason: StopInterrupt}, nil
		}
		return Result{SessionID: s.id, Reason: StopStartFailure}, err
	}
	if err := s.registry.Publish(handles); err != nil {
		ids := make([]ActorID, len(handles))
		for i, h := range handles {
			ids[i] = h.id
		}
		destroyAll(s.ep, ids, s.cfg.CallTimeout)
		s.setState(StateStopped)
		return Result{SessionID: s.id, Reason: StopStartFailure}, err
	}
	s.recordSpawned()

	worker, err := s.newWorker(s.registry.IDs(), s.trap.Handle)
	if err != nil {
		return s.abort(nil, fmt.Errorf("%w: %w", ErrWorkerStart, err))
	}
	if err := worker.Start(ctx); err != nil {
		return s.abort(worker, fmt.Errorf("%w: %w", ErrWorkerStart, err))
	}

	s.setState(StateRunning)
	s.log.Info("simguard running", "actors", s.registry.Len(), "poll_interval", s.cfg.PollInterval)

	reason := s.poll(ctx)

	s.setState(StateStopping)
	s.log.Info("stopping simguard", "reason", reason.String())
	worker.Stop()

	rep := s.reclaim()
	// The trap may have fired at any point up to here, including while the
	// worker was stopping.
	if s.trap.Fired() {
		reason = StopFault
	}
	s.setState(StateStopped)
	s.log.Info("simguard stopped", "reason", reason.String(), "destroyed", rep.Destroyed())
	res = Result{SessionID: s.id, Reason: reason, Report: rep}
	if reason == StopFault {
		return res, ErrFault
	}
	return res, nil
}

// abort handles a worker construction or start failure. The actors are
// already published, so they go through the regular gate.
func (s *Session) abort(worker Worker, cause error) (Result, error) {
	s.log.Error("failed to start worker", "error", cause)
	s.flag.Raise()
	s.setState(StateStopping)
	if worker != nil {
		worker.Stop()
	}
	rep := s.reclaim()
	s.setState(StateStopped)
	return Result{SessionID: s.id, Reason: StopStartFailure, Report: rep}, cause
}

// poll runs the liveness loop until the flag is raised or the endpoint
// stops answering. The first query happens one interval after start.
func (s *Session) poll(ctx context.Context) StopReason {
	pollCtx, cancel := s.flag.Context(ctx)
	defer cancel()

	err := wait.PollUntilContextCancel(pollCtx, s.cfg.PollInterval, false, func(ctx context.Context) (bool, error) {
		if err := s.ep.Ping(ctx); err != nil {
			if s.flag.Raised() {
				// The ping was canceled by the shutdown itself.
				return true, nil
			}
			metrics.LivenessPolled(false)
			return false, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		metrics.LivenessPolled(true)
		return s.flag.Raised(), nil
	})

	s.flag.Raise()
	if errors.Is(err, ErrConnectionLost) {
		s.log.Error("simulation endpoint stopped responding", "error", err)
		return StopConnectionLost
	}
	return StopInterrupt
}

// reclaim runs the graceful pass. If the trap already holds the gate, the
// trap exits the process when it is done; until then Run waits for its
// report.
func (s *Session) reclaim() Report {
	rep, err := s.reclaimer.Run(PassGraceful)
	if err != nil {
		s.log.Warn("emergency reclamation in progress; waiting for it")
		rep, _ = s.reclaimer.Wait(s.cfg.TakeoverTimeout)
		return rep
	}
	s.recordReclaimed(rep)
	return rep
}

func (s *Session) recordSpawned() {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()
	if err := s.recorder.RecordSpawned(ctx, s.id, s.registry.IDs()); err != nil {
		s.log.Warn("failed to journal spawned actors", "error", err)
	}
}

func (s *Session) recordReclaimed(rep Report) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()
	if err := s.recorder.RecordReclaimed(ctx, s.id, rep); err != nil {
		s.log.Warn("failed to journal reclamation", "error", err)
	}
}
