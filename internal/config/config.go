package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/simguard/internal/core"
	"github.com/giantswarm/simguard/internal/fileutil"
	"github.com/giantswarm/simguard/internal/pipeline"
	"github.com/giantswarm/simguard/internal/simclient"
	"github.com/spf13/pflag"
)

// EnvLogLevel overrides the default log level when --log-level is not set.
const EnvLogLevel = "SIMGUARD_LOG_LEVEL"

// Defaults for the endpoint address.
const (
	DefaultHost = "localhost"
	DefaultPort = 2000
)

// Config is the complete runtime configuration of the simguard binary.
type Config struct {
	Host string
	Port int

	Count            int
	Seed             int64
	Blueprint        string
	SpawnConcurrency int
	SpawnRate        float64

	PollInterval    time.Duration
	Timeout         time.Duration
	TakeoverTimeout time.Duration

	Workers int
	Tick    time.Duration

	// JournalDir holds the orphan journal. Empty disables journaling.
	JournalDir string
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
	LogLevel    string

	ConfigFile string
	Help       bool
}

// Default returns the configuration used when no flag is given.
func Default() Config {
	s := core.DefaultSessionConfig()
	return Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		Count:            s.ActorCount,
		Seed:             s.Seed,
		Blueprint:        s.Blueprint,
		SpawnConcurrency: s.SpawnConcurrency,
		PollInterval:     s.PollInterval,
		Timeout:          simclient.DefaultTimeout,
		TakeoverTimeout:  s.TakeoverTimeout,
		Tick:             pipeline.DefaultTickInterval,
		JournalDir:       fileutil.StateDir(),
		LogLevel:         "info",
	}
}

// Address returns host:port for logs and journal naming.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session returns the core session configuration.
func (c Config) Session() core.SessionConfig {
	return core.SessionConfig{
		ActorCount:       c.Count,
		Seed:             c.Seed,
		Blueprint:        c.Blueprint,
		SpawnConcurrency: c.SpawnConcurrency,
		SpawnRate:        c.SpawnRate,
		PollInterval:     c.PollInterval,
		CallTimeout:      c.Timeout,
		TakeoverTimeout:  c.TakeoverTimeout,
	}
}

// Pipeline returns the worker configuration. Stages are added by the
// caller since they need the endpoint.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{Workers: c.Workers, TickInterval: c.Tick}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be greater than 0, got %s", c.Timeout))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be greater than 0, got %s", c.Tick))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := c.Session().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps debug, info, warn or error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// Parser parses the simguard command line.
type Parser struct {
	fs      *pflag.FlagSet
	cfg     Config
	log     *slog.Logger
	lenient map[string]explicitValue
}

// NewParser registers every flag on a fresh flag set. Warnings about
// ignored values go to log.
func NewParser(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	p := &Parser{
		fs:      pflag.NewFlagSet("simguard", pflag.ContinueOnError),
		cfg:     Default(),
		log:     log,
		lenient: make(map[string]explicitValue),
	}
	p.fs.SetOutput(io.Discard)
	p.fs.SortFlags = false

	c := &p.cfg
	fs := p.fs
	fs.StringVar(&c.Host, "host", c.Host, "simulation endpoint host")
	p.varP(lenientInt(&c.Port, "port", between(1, 65535), log), "port", "p", "simulation endpoint port")
	p.varP(lenientInt(&c.Count, "count", atLeast(0), log), "count", "n", "number of actors to spawn")
	p.varP(lenientInt64(&c.Seed, "seed", log), "seed", "s", "spawn point shuffle seed; negative uses the clock")
	fs.StringVar(&c.Blueprint, "blueprint", c.Blueprint, "blueprint filter for spawned actors")
	p.varP(lenientInt(&c.SpawnConcurrency, "spawn-concurrency", atLeast(1), log), "spawn-concurrency", "", "maximum in-flight spawn calls")
	p.varP(lenientFloat(&c.SpawnRate, "spawn-rate", atLeast(0.0), log), "spawn-rate", "", "spawn calls per second; 0 is unlimited")
	p.varP(lenientDuration(&c.PollInterval, "poll-interval", above[time.Duration](0), log), "poll-interval", "", "delay between liveness queries")
	p.varP(lenientDuration(&c.Timeout, "timeout", above[time.Duration](0), log), "timeout", "", "timeout of each endpoint request")
	p.varP(lenientDuration(&c.TakeoverTimeout, "takeover-timeout", above[time.Duration](0), log), "takeover-timeout", "", "how long a fault waits for a running reclamation")
	p.varP(lenientInt(&c.Workers, "workers", atLeast(0), log), "workers", "", "worker shards; 0 uses the number of CPUs")
	p.varP(lenientDuration(&c.Tick, "tick", above[time.Duration](0), log), "tick", "", "worker tick interval")
	fs.StringVar(&c.JournalDir, "journal-dir", c.JournalDir, "directory of the orphan journal; empty disables it")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "address to serve /metrics on; empty disables it")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error (env "+EnvLogLevel+")")
	fs.StringVar(&c.ConfigFile, "config", "", "TOML file with defaults for any flag not given")
	fs.BoolVarP(&c.Help, "help", "h", false, "show this help")
	return p
}

func (p *Parser) varP(v interface {
	pflag.Value
	explicitValue
}, name, shorthand, usage string,
) {
	p.fs.VarP(v, name, shorthand, usage)
	p.lenient[name] = v
}

// explicit reports whether the flag name was given with a value that was
// kept. An ignored lenient value does not count, so the config file can
// still supply it.
func (p *Parser) explicit(name string) bool {
	if v, ok := p.lenient[name]; ok {
		return v.explicit()
	}
	return p.fs.Changed(name)
}

// Parse parses args (without the program name). The error is a usage error:
// an unknown flag, a missing flag argument, an unreadable config file or an
// invalid configuration.
func (p *Parser) Parse(args []string) (Config, error) {
	if err := p.fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if p.cfg.Help {
		return p.cfg, nil
	}
	if p.cfg.ConfigFile != "" {
		if err := applyFile(p.cfg.ConfigFile, &p.cfg, p.explicit); err != nil {
			return Config{}, err
		}
	}
	if !p.fs.Changed("log-level") {
		if env := os.Getenv(EnvLogLevel); env != "" {
			p.cfg.LogLevel = env
		}
	}
	if err := p.cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return p.cfg, nil
}

// Usage writes the flag summary to w.
func (p *Parser) Usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: simguard [flags]\n\nSpawns actors on a simulation endpoint and guarantees their release on exit.\n\nFlags:\n%s", p.fs.FlagUsages())
}
