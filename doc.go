// Package simguard supervises a population of actors spawned on a remote
// simulation endpoint and guarantees they are destroyed however the process
// ends.
//
// Three things can end a session: an operator interrupt, the endpoint
// failing a liveness query, and a panic on any goroutine the session owns.
// Interrupts and connection loss raise the session's shutdown flag; the
// supervisor notices it within one poll interval, stops the worker and
// destroys every actor. A panic goes to the session's fault trap, which
// destroys the actors itself and exits with status 1. A reclamation gate
// ensures each actor is destroyed at most once even when both paths run.
//
// # Basic Usage
//
//	ep := simclient.New("localhost", 2000, 2*time.Second)
//
//	flag := simguard.NewShutdownFlag()
//	stop := simguard.Relay(flag)
//	defer stop()
//
//	s := simguard.NewSession(ep, pipeline.Factory(pipeline.Config{}),
//	    simguard.WithActorCount(10),
//	    simguard.WithShutdownFlag(flag),
//	)
//	res, err := s.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(res.ExitCode())
//
// # Faults
//
// Go has no process-wide panic hook. Goroutines started by the worker must
// recover and pass the value to the handler they were given; any other
// goroutine touching session state should defer Session.Guard.
//
// # Logging
//
// simguard logs through log/slog. Use SetLogger to route its output.
package simguard
