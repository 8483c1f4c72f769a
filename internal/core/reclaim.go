package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/simguard/internal/metrics"
)

// PassKind names the path a reclamation pass was started from.
type PassKind uint32

const (
	// PassGraceful runs on the supervisor after the worker stopped.
	PassGraceful PassKind = iota + 1
	// PassEmergency runs from the fault trap.
	PassEmergency
)

// String returns the pass name used in logs and metric labels.
func (k PassKind) String() string {
	switch k {
	case PassGraceful:
		return "graceful"
	case PassEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("PassKind(%d)", uint32(k))
	}
}

// gateState is the lifecycle of the reclamation gate.
type gateState uint32

const (
	gateOpen gateState = iota
	gateHeld
	gateClosed
)

// Report summarizes one reclamation pass.
type Report struct {
	Pass PassKind
	// Attempted lists every actor a destroy call was issued for, in
	// registry order.
	Attempted []ActorID
	// Failed is the subset of Attempted whose destroy call errored.
	Failed []ActorID
	// Gone lists actors that were already dead; no destroy was issued.
	Gone []ActorID
	// Skipped counts handles another pass had already claimed.
	Skipped int
}

// Destroyed returns how many destroy calls succeeded.
func (r Report) Destroyed() int {
	return len(r.Attempted) - len(r.Failed)
}

// Reclaimer owns the exactly-once reclamation gate.
//
// Two mechanisms stack:
//   - the pass gate (open → held → closed, by CAS) admits one pass, graceful
//     or emergency; the loser gets ErrPassTaken and can Wait for the winner.
//   - every handle carries a claim bit, so even the trap's bounded take-over
//     of a stalled pass can never destroy an actor twice.
//
// Reclamation never mutates the registry.
type Reclaimer struct {
	registry    *Registry
	callTimeout time.Duration

	state atomic.Uint32 // gateState
	last  atomic.Pointer[Report]

	done     chan struct{}
	doneOnce sync.Once

	log *slog.Logger
}

// NewReclaimer returns a reclaimer over registry. callTimeout bounds each
// liveness and destroy call. Panics if registry is nil or callTimeout <= 0.
func NewReclaimer(registry *Registry, callTimeout time.Duration) *Reclaimer {
	if registry == nil {
		panic("simguard: reclaimer registry must not be nil")
	}
	if callTimeout <= 0 {
		panic(fmt.Sprintf("simguard: reclaimer call timeout must be greater than 0, got %s", callTimeout))
	}
	return &Reclaimer{
		registry:    registry,
		callTimeout: callTimeout,
		done:        make(chan struct{}),
		log:         Logger(),
	}
}

// Run takes the gate and reclaims every unclaimed handle. It returns
// ErrPassTaken without touching any handle if another pass already took the
// gate.
func (r *Reclaimer) Run(kind PassKind) (Report, error) {
	if !r.state.CompareAndSwap(uint32(gateOpen), uint32(gateHeld)) {
		return Report{Pass: kind}, ErrPassTaken
	}
	defer func() {
		// A pass that faulted reopens the gate so the trap's emergency pass
		// can take it without waiting for the takeover timeout.
		if rec := recover(); rec != nil {
			r.state.CompareAndSwap(uint32(gateHeld), uint32(gateOpen))
			panic(rec)
		}
	}()
	rep := r.sweep(kind)
	r.finish(rep)
	return rep, nil
}

// TakeOver reclaims whatever handles are still unclaimed, ignoring the gate.
// Only the fault trap calls it, after the pass holding the gate failed to
// finish in time.
func (r *Reclaimer) TakeOver(kind PassKind) Report {
	r.state.Store(uint32(gateHeld))
	rep := r.sweep(kind)
	r.finish(rep)
	return rep
}

// Wait blocks until a pass has finished or timeout elapses. It returns the
// finished pass's report and true, or false on timeout.
func (r *Reclaimer) Wait(timeout time.Duration) (Report, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.done:
		if p := r.last.Load(); p != nil {
			return *p, true
		}
		return Report{}, true
	case <-t.C:
		return Report{}, false
	}
}

// Done returns a channel closed after the first pass finishes.
func (r *Reclaimer) Done() <-chan struct{} {
	return r.done
}

// Taken reports whether a pass has taken the gate.
func (r *Reclaimer) Taken() bool {
	return gateState(r.state.Load()) != gateOpen
}

func (r *Reclaimer) finish(rep Report) {
	r.last.Store(&rep)
	r.state.Store(uint32(gateClosed))
	r.doneOnce.Do(func() { close(r.done) })
}

// sweep visits every handle in registry order. A failure on one handle never
// stops the sweep.
func (r *Reclaimer) sweep(kind PassKind) Report {
	rep := Report{Pass: kind}
	log := r.log.With("pass", kind.String())
	log.Info("destroying spawned actors", "actors", r.registry.Len())

	r.registry.ForEach(func(h *Handle) {
		r.reclaimOne(kind, h, &rep, log)
	})

	log.Info("reclamation finished",
		"attempted", len(rep.Attempted),
		"failed", len(rep.Failed),
		"gone", len(rep.Gone),
		"skipped", rep.Skipped)
	return rep
}

// reclaimOne claims h and destroys it unless it is already gone.
//
// A panic in a graceful pass propagates to the trap. If no destroy call was
// issued yet the claim is released first, so the emergency pass still
// reaches the actor. An emergency pass runs inside the trap and cannot
// propagate; it logs the panic and records the actor as failed.
func (r *Reclaimer) reclaimOne(kind PassKind, h *Handle, rep *Report, log *slog.Logger) {
	if !h.claim() {
		rep.Skipped++
		return
	}

	issued := false
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if kind == PassGraceful {
			if !issued {
				h.claimed.Store(false)
			}
			panic(rec)
		}
		log.Error("fault while reclaiming actor", "actor", h.id, "panic", rec)
		if !issued {
			rep.Attempted = append(rep.Attempted, h.id)
		}
		rep.Failed = append(rep.Failed, h.id)
		metrics.DestroyFailed(kind.String())
	}()

	alive, err := r.alive(h)
	switch {
	case err != nil:
		log.Warn("liveness check failed; destroying anyway", "actor", h.id, "error", err)
	case !alive:
		rep.Gone = append(rep.Gone, h.id)
		return
	}

	rep.Attempted = append(rep.Attempted, h.id)
	metrics.DestroyAttempted(kind.String())
	issued = true
	if err := r.destroy(h); err != nil {
		rep.Failed = append(rep.Failed, h.id)
		metrics.DestroyFailed(kind.String())
		log.Warn("failed to destroy actor", "actor", h.id, "error", err)
	}
}

func (r *Reclaimer) alive(h *Handle) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
	defer cancel()
	return h.Alive(ctx)
}

func (r *Reclaimer) destroy(h *Handle) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.callTimeout)
	defer cancel()
	return h.ep.Destroy(ctx, h.id)
}
