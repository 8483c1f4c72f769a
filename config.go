package simguard

import "github.com/giantswarm/simguard/internal/core"

// sessionConfig embeds core.SessionConfig and adds the collaborators the
// options can inject.
type sessionConfig struct {
	core.SessionConfig

	recorder Recorder
	flag     *ShutdownFlag
	exit     func(code int)
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{SessionConfig: core.DefaultSessionConfig()}
}
