package config

import (
	"cmp"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// lenient wraps a parse function as a pflag.Value that never rejects
// input. A value that does not parse, or parses outside the allowed range,
// is logged and the destination keeps its current value.
type lenient[T any] struct {
	dst      *T
	name     string
	typeName string
	parse    func(string) (T, error)
	check    func(T) error
	format   func(T) string
	log      *slog.Logger

	// accepted is true once Set stored a value. pflag marks a flag as
	// changed even when Set ignored the input.
	accepted bool
}

var _ pflag.Value = (*lenient[int])(nil)

func (v *lenient[T]) String() string {
	if v.dst == nil {
		return ""
	}
	return v.format(*v.dst)
}

func (v *lenient[T]) Set(s string) error {
	parsed, err := v.parse(s)
	if err == nil && v.check != nil {
		err = v.check(parsed)
	}
	if err != nil {
		v.log.Warn("ignoring invalid flag value; keeping default",
			"flag", v.name, "value", s, "default", v.format(*v.dst), "error", err)
		return nil
	}
	*v.dst = parsed
	v.accepted = true
	return nil
}

func (v *lenient[T]) Type() string { return v.typeName }

func (v *lenient[T]) explicit() bool { return v.accepted }

// explicitValue is implemented by every lenient flag value.
type explicitValue interface {
	explicit() bool
}

func atLeast[T cmp.Ordered](lo T) func(T) error {
	return func(v T) error {
		if v < lo {
			return fmt.Errorf("must be at least %v", lo)
		}
		return nil
	}
}

func above[T cmp.Ordered](lo T) func(T) error {
	return func(v T) error {
		if v <= lo {
			return fmt.Errorf("must be greater than %v", lo)
		}
		return nil
	}
}

func between(lo, hi int) func(int) error {
	return func(v int) error {
		if v < lo || v > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func lenientInt(dst *int, name string, check func(int) error, log *slog.Logger) *lenient[int] {
	return &lenient[int]{
		dst: dst, name: name, typeName: "int", log: log, check: check,
		parse:  strconv.Atoi,
		format: strconv.Itoa,
	}
}

func lenientInt64(dst *int64, name string, log *slog.Logger) *lenient[int64] {
	return &lenient[int64]{
		dst: dst, name: name, typeName: "int", log: log,
		parse:  func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		format: func(n int64) string { return strconv.FormatInt(n, 10) },
	}
}

func lenientFloat(dst *float64, name string, check func(float64) error, log *slog.Logger) *lenient[float64] {
	return &lenient[float64]{
		dst: dst, name: name, typeName: "float", log: log, check: check,
		parse:  func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		format: func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) },
	}
}

func lenientDuration(dst *time.Duration, name string, check func(time.Duration) error, log *slog.Logger) *lenient[time.Duration] {
	return &lenient[time.Duration]{
		dst: dst, name: name, typeName: "duration", log: log, check: check,
		parse:  time.ParseDuration,
		format: time.Duration.String,
	}
}
