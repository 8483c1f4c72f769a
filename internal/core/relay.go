package core

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// DefaultRelaySignals are the operator interrupts relayed when Relay is
// called without explicit signals.
var DefaultRelaySignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Relay translates operator interrupts into a raise of flag. The relay
// goroutine does nothing else. The returned stop function deregisters the signals
// and ends the goroutine; it is safe to call more than once.
func Relay(flag *ShutdownFlag, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = DefaultRelaySignals
	}
	ch := make(chan os.Signal, 1)
	quit := make(chan struct{})
	signal.Notify(ch, signals...)

	go func() {
		for {
			select {
			case <-ch:
				flag.Raise()
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
