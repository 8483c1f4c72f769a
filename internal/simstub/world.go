package simstub

import (
	"path"
	"sync"
)

// World is the simulated state. All methods are safe for concurrent use.
type World struct {
	mu sync.Mutex

	mapName     string
	spawnPoints int
	nextID      uint64
	actors      map[uint64]actor
	occupied    map[int]uint64

	pingDown     bool
	destroyFails map[uint64]bool
	destroyCalls map[uint64]int
}

type actor struct {
	blueprint string
	point     int
}

// NewWorld returns an empty world with spawnPoints spawn points.
func NewWorld(mapName string, spawnPoints int) *World {
	return &World{
		mapName:      mapName,
		spawnPoints:  spawnPoints,
		nextID:       1,
		actors:       make(map[uint64]actor),
		occupied:     make(map[int]uint64),
		destroyFails: make(map[uint64]bool),
		destroyCalls: make(map[uint64]int),
	}
}

// SetDown makes liveness queries fail (down=true) or succeed again.
func (w *World) SetDown(down bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pingDown = down
}

// FailDestroy makes every destroy of id fail with a server error.
func (w *World) FailDestroy(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyFails[id] = true
}

// Occupy marks a spawn point as taken by something the supervisor does not
// own.
func (w *World) Occupy(point int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.occupied[point] = 0
}

// Kill removes an actor as if the simulation had despawned it.
func (w *World) Kill(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remove(id)
}

// Alive reports whether id exists.
func (w *World) Alive(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.actors[id]
	return ok
}

// Actors returns the number of live actors.
func (w *World) Actors() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.actors)
}

// DestroyCalls returns how many destroy requests named id, successful or
// not.
func (w *World) DestroyCalls(id uint64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyCalls[id]
}

func (w *World) settings() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mapName, !w.pingDown
}

func (w *World) points() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spawnPoints
}

type spawnResult int

const (
	spawned spawnResult = iota
	spawnOutOfRange
	spawnOccupied
	spawnNoMatch
)

// knownBlueprints is the stub's blueprint library.
//
//nolint:gochecknoglobals // immutable lookup table
var knownBlueprints = []string{
	"vehicle.audi.a2",
	"vehicle.tesla.model3",
	"vehicle.toyota.prius",
	"walker.pedestrian.0001",
}

// matchBlueprint returns the first blueprint matching the glob filter.
func matchBlueprint(filter string) (string, bool) {
	if filter == "" {
		filter = "*"
	}
	for _, bp := range knownBlueprints {
		if ok, _ := path.Match(filter, bp); ok {
			return bp, true
		}
	}
	return "", false
}

func (w *World) spawn(filter string, point int) (uint64, string, spawnResult) {
	bp, ok := matchBlueprint(filter)
	if !ok {
		return 0, "", spawnNoMatch
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if point < 0 || point >= w.spawnPoints {
		return 0, "", spawnOutOfRange
	}
	if _, taken := w.occupied[point]; taken {
		return 0, "", spawnOccupied
	}
	id := w.nextID
	w.nextID++
	w.actors[id] = actor{blueprint: bp, point: point}
	w.occupied[point] = id
	return id, bp, spawned
}

func (w *World) lookup(id uint64) (actor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	return a, ok
}

type destroyResult int

const (
	destroyed destroyResult = iota
	destroyUnknown
	destroyFailed
)

func (w *World) destroy(id uint64) destroyResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyCalls[id]++
	if w.destroyFails[id] {
		return destroyFailed
	}
	if _, ok := w.actors[id]; !ok {
		return destroyUnknown
	}
	w.remove(id)
	return destroyed
}

// remove must be called with mu held.
func (w *World) remove(id uint64) {
	a, ok := w.actors[id]
	if !ok {
		return
	}
	delete(w.actors, id)
	delete(w.occupied, a.point)
}
