// Command simguard spawns actors on a simulation endpoint, drives them with
// the worker pipeline and destroys every one of them on exit, whether the
// run ends by interrupt, by losing the endpoint or by a crash.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/giantswarm/simguard"
	"github.com/giantswarm/simguard/internal/config"
	"github.com/giantswarm/simguard/internal/journal"
	"github.com/giantswarm/simguard/internal/metrics"
	"github.com/giantswarm/simguard/internal/pipeline"
	"github.com/giantswarm/simguard/internal/simclient"
	"github.com/gorilla/mux"
)

// exitUsage is returned for command line errors.
const exitUsage = 2

// journalLockTimeout bounds the wait for another supervisor to release the
// endpoint.
const journalLockTimeout = time.Second

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without os.Exit so deferred cleanup always runs. It returns
// the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	simguard.SetLogger(logger.With("component", "simguard"))
	defer simguard.SetLogger(nil)

	// Relay before anything else so an interrupt during startup is not
	// lost; the session observes the same flag.
	flag := simguard.NewShutdownFlag()
	stopRelay := simguard.Relay(flag)
	defer stopRelay()

	parser := config.NewParser(logger)
	cfg, err := parser.Parse(args)
	if err != nil {
		logger.Error("invalid command line", "error", err)
		parser.Usage(stderr)
		return exitUsage
	}
	if cfg.Help {
		parser.Usage(stdout)
		return simguard.ExitOK
	}
	if l, err := config.ParseLevel(cfg.LogLevel); err == nil {
		level.Set(l)
	}

	ep := simclient.New(cfg.Host, cfg.Port, cfg.Timeout)
	dialCtx, cancelDial := flag.Context(ctx)
	err = ep.Dial(dialCtx, simclient.DefaultDialBackoff())
	cancelDial()
	if err != nil {
		logger.Error("simulation endpoint unreachable", "endpoint", cfg.Address(), "error", err)
		return simguard.ExitFault
	}

	opts := []simguard.SessionOption{
		simguard.WithActorCount(cfg.Count),
		simguard.WithSeed(cfg.Seed),
		simguard.WithBlueprint(cfg.Blueprint),
		simguard.WithSpawnConcurrency(cfg.SpawnConcurrency),
		simguard.WithSpawnRate(cfg.SpawnRate),
		simguard.WithPollInterval(cfg.PollInterval),
		simguard.WithCallTimeout(cfg.Timeout),
		simguard.WithTakeoverTimeout(cfg.TakeoverTimeout),
		simguard.WithShutdownFlag(flag),
	}

	if cfg.JournalDir != "" {
		j, err := openJournal(ctx, cfg, ep, logger)
		if err != nil {
			logger.Error("failed to open journal", "dir", cfg.JournalDir, "error", err)
			return simguard.ExitFault
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Warn("failed to close journal", "error", err)
			}
		}()
		opts = append(opts, simguard.WithRecorder(j))
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
		defer stopMetrics()
	}

	pcfg := cfg.Pipeline()
	pcfg.Stages = []pipeline.Stage{pipeline.NewObserveStage(ep)}
	session := simguard.NewSession(ep, pipeline.Factory(pcfg), opts...)
	defer session.Guard()

	logger.Info("starting simguard",
		"session", session.ID(),
		"endpoint", cfg.Address(),
		"actors", cfg.Count,
		"seed", cfg.Seed)

	res, err := session.Run(ctx)
	if err != nil {
		logger.Error("simguard failed", "session", session.ID(), "error", err)
	}
	return res.ExitCode()
}

// openJournal locks the endpoint's journal and destroys actors an earlier
// run left behind.
func openJournal(ctx context.Context, cfg config.Config, ep *simclient.Client, logger *slog.Logger) (*journal.Journal, error) {
	lockCtx, cancel := context.WithTimeout(ctx, journalLockTimeout)
	defer cancel()
	j, err := journal.Open(lockCtx, cfg.JournalDir, cfg.Address())
	if err != nil {
		return nil, err
	}

	rep, err := j.Sweep(ctx, ep, cfg.Timeout)
	if err != nil {
		logger.Warn("orphan sweep incomplete", "error", err)
	}
	if rep != (journal.SweepReport{}) {
		logger.Info("swept orphaned actors",
			"destroyed", rep.Destroyed,
			"gone", rep.Gone,
			"failed", rep.Failed)
	}
	return j, nil
}

// serveMetrics exposes /metrics on addr until the returned function is
// called.
func serveMetrics(addr string, logger *slog.Logger) (stop func()) {
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", fmt.Sprintf("http://%s/metrics", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
