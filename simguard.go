package simguard

import (
	"context"
	"os"

	"github.com/giantswarm/simguard/internal/core"
)

var _ Session = (*sessionWrapper)(nil)

// sessionWrapper keeps *core.Session out of the public API so callers cannot
// reach internals such as the registry or the reclaimer.
type sessionWrapper struct {
	s *core.Session
}

func (w *sessionWrapper) ID() string                              { return w.s.ID() }
func (w *sessionWrapper) State() State                            { return w.s.State() }
func (w *sessionWrapper) Run(ctx context.Context) (Result, error) { return w.s.Run(ctx) }
func (w *sessionWrapper) Interrupt()                              { w.s.Interrupt() }
func (w *sessionWrapper) Flag() *ShutdownFlag                     { return w.s.Flag() }
func (w *sessionWrapper) Actors() []ActorID                       { return w.s.Registry().IDs() }
func (w *sessionWrapper) HandleFault(r any)                       { w.s.Trap().Handle(r) }

// Guard implements Session. recover only works in the deferred function
// itself, so this cannot delegate to the trap's Guard.
func (w *sessionWrapper) Guard() {
	if r := recover(); r != nil {
		w.s.Trap().Handle(r)
	}
}

// NewSession returns a session that spawns its actors on ep and drives them
// with the worker newWorker builds. It performs no I/O; call Run.
//
// Panics if ep or newWorker is nil.
//
//nolint:ireturn // Returns Session interface so callers can substitute fakes.
func NewSession(ep Endpoint, newWorker WorkerFactory, opts ...SessionOption) Session {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &sessionWrapper{s: core.NewSession(core.SessionParams{
		Endpoint:  ep,
		NewWorker: newWorker,
		Recorder:  cfg.recorder,
		Flag:      cfg.flag,
		Exit:      cfg.exit,
		Config:    cfg.SessionConfig,
	})}
}

// NewShutdownFlag returns a lowered shutdown flag. Share it between Relay
// and WithShutdownFlag so signals arriving before Run are not lost.
func NewShutdownFlag() *ShutdownFlag {
	return core.NewShutdownFlag()
}

// Relay raises flag whenever one of signals arrives; with no signals it
// relays SIGINT and SIGTERM. The returned function stops relaying.
func Relay(flag *ShutdownFlag, signals ...os.Signal) (stop func()) {
	return core.Relay(flag, signals...)
}
