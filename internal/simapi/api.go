// Package simapi defines the JSON-over-HTTP surface of the simulation
// endpoint shared by the client and the development stub.
package simapi

// Routes, relative to the endpoint base URL.
const (
	PathSettings    = "/v1/world/settings"
	PathSpawnPoints = "/v1/world/spawn_points"
	PathActors      = "/v1/actors"
	PathActor       = "/v1/actors/{id}"
)

// Settings is the body of GET /v1/world/settings. A successful response is
// the endpoint's liveness signal.
type Settings struct {
	Map         string `json:"map"`
	Synchronous bool   `json:"synchronous"`
}

// SpawnPoints is the body of GET /v1/world/spawn_points.
type SpawnPoints struct {
	Count int `json:"count"`
}

// SpawnRequest is the body of POST /v1/actors.
type SpawnRequest struct {
	Blueprint  string `json:"blueprint"`
	SpawnPoint int    `json:"spawn_point"`
}

// Actor is returned by POST /v1/actors and GET /v1/actors/{id}.
type Actor struct {
	ID         uint64 `json:"id"`
	Blueprint  string `json:"blueprint"`
	SpawnPoint int    `json:"spawn_point"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}
