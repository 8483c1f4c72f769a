package pipeline

import "github.com/giantswarm/simguard/internal/sentinel"

// ErrAlreadyStarted is returned by Start on a pipeline that already started.
const ErrAlreadyStarted = sentinel.Error("pipeline already started")

// ErrStopped is returned by Start after Stop.
const ErrStopped = sentinel.Error("pipeline stopped")
