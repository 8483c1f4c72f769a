package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// ShutdownFlag is the single coordination primitive between the signal
// relay, the fault trap and the supervisor. It starts false, moves to true
// once, and is never reset.
//
// Raise only performs an atomic store and a channel close, so it is safe to
// call from the signal relay goroutine while the supervisor is anywhere in
// its loop.
type ShutdownFlag struct {
	raised atomic.Bool
	done   chan struct{}
	once   sync.Once
}

// NewShutdownFlag returns a lowered flag.
func NewShutdownFlag() *ShutdownFlag {
	return &ShutdownFlag{done: make(chan struct{})}
}

// Raise sets the flag. It reports true only for the call that performed the
// false→true transition.
func (f *ShutdownFlag) Raise() bool {
	if !f.raised.CompareAndSwap(false, true) {
		return false
	}
	f.once.Do(func() { close(f.done) })
	return true
}

// Raised reports whether the flag has been set.
func (f *ShutdownFlag) Raised() bool {
	return f.raised.Load()
}

// Done returns a channel closed when the flag is raised.
func (f *ShutdownFlag) Done() <-chan struct{} {
	return f.done
}

// Context returns a child of parent that is canceled when the flag is
// raised. Canceling parent raises the flag, so every trigger converges on
// the same observation point.
func (f *ShutdownFlag) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-f.done:
			cancel()
		case <-ctx.Done():
			if parent.Err() != nil {
				f.Raise()
			}
		}
	}()
	return ctx, cancel
}
