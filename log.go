package simguard

import (
	"log/slog"

	"github.com/giantswarm/simguard/internal/core"
)

// SetLogger replaces the package-level logger used by simguard and its
// internal packages. The logger should already carry any attributes the
// application wants; simguard adds per-session attributes only.
//
// If l is nil, the logger resets to slog.Default() with a "component"
// attribute, re-derived on the next use. Call SetLogger(nil) after
// slog.SetDefault() to pick up the change.
//
// SetLogger is safe to call concurrently, but sessions capture the logger
// when they are created. Call it before NewSession.
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
