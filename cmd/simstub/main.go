// Command simstub serves an in-memory simulation endpoint for developing and
// testing simguard without a simulator.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/giantswarm/simguard/internal/config"
	"github.com/giantswarm/simguard/internal/simstub"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("simstub", pflag.ContinueOnError)
	host := fs.String("host", "127.0.0.1", "listen host")
	port := fs.IntP("port", "p", config.DefaultPort, "listen port")
	points := fs.Int("spawn-points", 200, "number of spawn points in the world")
	mapName := fs.String("map", "Town01", "map name reported by the world settings")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		return 2
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           simstub.NewServer(simstub.NewWorld(*mapName, *points), log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving simulation stub", "addr", addr, "map", *mapName, "spawn_points", *points)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		log.Error("server failed", "error", err)
		return 1
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
		return 1
	}
	return 0
}
