// Package metrics holds the Prometheus collectors simguard exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simguard"

var (
	// Registry holds the simguard collectors. It is separate from the
	// global default registry so embedding programs keep control of theirs.
	Registry = prometheus.NewRegistry()

	actorsSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actors",
			Name:      "spawned_total",
			Help:      "Total number of actors spawned on the simulation endpoint.",
		},
	)

	destroyAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actors",
			Name:      "destroy_attempts_total",
			Help:      "Total number of destroy calls issued during reclamation.",
		},
		[]string{"pass"},
	)

	destroyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actors",
			Name:      "destroy_failures_total",
			Help:      "Total number of destroy calls that failed during reclamation.",
		},
		[]string{"pass"},
	)

	livenessPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "liveness_polls_total",
			Help:      "Total number of liveness queries against the endpoint.",
		},
		[]string{"result"},
	)

	faults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "faults_total",
			Help:      "Total number of unhandled faults caught by the fault trap.",
		},
	)

	sessionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (0 not started, 1 running, 2 stopping, 3 stopped).",
		},
	)

	stageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_errors_total",
			Help:      "Total number of worker stage errors.",
		},
		[]string{"stage"},
	)

	actorsLost = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "actors_lost",
			Help:      "Number of driven actors the endpoint no longer reports alive.",
		},
	)
)

func init() {
	Registry.MustRegister(
		actorsSpawned,
		destroyAttempts,
		destroyFailures,
		livenessPolls,
		faults,
		sessionState,
		stageErrors,
		actorsLost,
	)
}

// Handler serves the simguard registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ActorsSpawned adds n spawned actors.
func ActorsSpawned(n int) {
	actorsSpawned.Add(float64(n))
}

// DestroyAttempted counts one destroy call issued by the named pass.
func DestroyAttempted(pass string) {
	destroyAttempts.WithLabelValues(pass).Inc()
}

// DestroyFailed counts one failed destroy call issued by the named pass.
func DestroyFailed(pass string) {
	destroyFailures.WithLabelValues(pass).Inc()
}

// LivenessPolled counts one liveness query.
func LivenessPolled(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	livenessPolls.WithLabelValues(result).Inc()
}

// FaultTrapped counts one fault caught by the trap.
func FaultTrapped() {
	faults.Inc()
}

// SetSessionState records the session lifecycle state.
func SetSessionState(state int) {
	sessionState.Set(float64(state))
}

// StageFailed counts one stage error.
func StageFailed(stage string) {
	stageErrors.WithLabelValues(stage).Inc()
}

// SetActorsLost records how many driven actors are gone.
func SetActorsLost(n int) {
	actorsLost.Set(float64(n))
}
