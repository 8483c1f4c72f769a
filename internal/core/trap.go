package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/giantswarm/simguard/internal/metrics"
)

// Process exit statuses.
const (
	ExitOK    = 0
	ExitFault = 1
)

// TrapParams holds the collaborators of a Trap. Flag and Reclaimer are
// required.
type TrapParams struct {
	Flag      *ShutdownFlag
	Reclaimer *Reclaimer
	// Recorder is optional; the emergency report is recorded best effort.
	Recorder  Recorder
	SessionID string
	// TakeoverTimeout bounds how long the trap waits for a graceful pass
	// already in progress before claiming the remaining handles itself.
	TakeoverTimeout time.Duration
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(code int)
}

// Trap performs emergency reclamation when a goroutine owned by the session
// panics. Go has no process-wide crash hook, so every such goroutine either
// defers Guard or recovers itself and passes the value to Handle.
type Trap struct {
	flag      *ShutdownFlag
	reclaimer *Reclaimer
	recorder  Recorder
	sessionID string
	takeover  time.Duration
	exit      func(code int)

	fired   atomic.Bool
	handled chan struct{}

	log *slog.Logger
}

// NewTrap returns a Trap. Panics if Flag or Reclaimer is nil or
// TakeoverTimeout is not positive.
func NewTrap(params TrapParams) *Trap {
	if params.Flag == nil {
		panic("simguard: trap flag must not be nil")
	}
	if params.Reclaimer == nil {
		panic("simguard: trap reclaimer must not be nil")
	}
	if params.TakeoverTimeout <= 0 {
		panic(fmt.Sprintf("simguard: trap takeover timeout must be greater than 0, got %s", params.TakeoverTimeout))
	}
	exit := params.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &Trap{
		flag:      params.Flag,
		reclaimer: params.Reclaimer,
		recorder:  params.Recorder,
		sessionID: params.SessionID,
		takeover:  params.TakeoverTimeout,
		exit:      exit,
		handled:   make(chan struct{}),
		log:       Logger().With("session", params.SessionID),
	}
}

// Guard recovers a panic on the calling goroutine and handles it. It must be
// deferred directly:
//
//	defer trap.Guard()
func (t *Trap) Guard() {
	if r := recover(); r != nil {
		t.Handle(r)
	}
}

// Handle runs emergency reclamation for a recovered panic value and exits
// with ExitFault. Only the first fault reclaims; a concurrent second fault
// waits for the first to finish.
func (t *Trap) Handle(r any) {
	metrics.FaultTrapped()
	t.log.Error("simguard encountered a problem", "panic", r, "stack", string(debug.Stack()))

	if !t.fired.CompareAndSwap(false, true) {
		<-t.handled
		return
	}
	defer close(t.handled)

	rep := t.reclaim()
	t.record(rep)
	t.exit(ExitFault)
}

// Fired reports whether the trap has handled a fault.
func (t *Trap) Fired() bool {
	return t.fired.Load()
}

func (t *Trap) reclaim() Report {
	// With the flag raised the supervisor may still be stopping the worker,
	// which waits for this very goroutine. Only a pass that holds the gate
	// is worth waiting for.
	if !t.flag.Raised() || !t.reclaimer.Taken() {
		t.log.Info("destroying all spawned actors")
		rep, err := t.reclaimer.Run(PassEmergency)
		t.flag.Raise()
		if err == nil {
			return rep
		}
	}

	// A graceful pass holds the gate; let it finish unless it stalls.
	if rep, ok := t.reclaimer.Wait(t.takeover); ok {
		return rep
	}
	t.log.Warn("graceful reclamation did not finish; taking over", "waited", t.takeover)
	return t.reclaimer.TakeOver(PassEmergency)
}

func (t *Trap) record(rep Report) {
	if t.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.takeover)
	defer cancel()
	if err := t.recorder.RecordReclaimed(ctx, t.sessionID, rep); err != nil {
		t.log.Warn("failed to record emergency reclamation", "error", err)
	}
}
