package simstub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/giantswarm/simguard/internal/simapi"
	"github.com/gorilla/mux"
)

// Server exposes a World over HTTP.
type Server struct {
	world  *World
	router *mux.Router
	log    *slog.Logger
}

// NewServer returns a Server for world. A nil log uses slog.Default().
func NewServer(world *World, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{world: world, router: mux.NewRouter(), log: log.With("component", "simstub")}

	s.router.HandleFunc(simapi.PathSettings, s.handleSettings).Methods(http.MethodGet)
	s.router.HandleFunc(simapi.PathSpawnPoints, s.handleSpawnPoints).Methods(http.MethodGet)
	s.router.HandleFunc(simapi.PathActors, s.handleSpawn).Methods(http.MethodPost)
	s.router.HandleFunc(simapi.PathActor, s.handleGetActor).Methods(http.MethodGet)
	s.router.HandleFunc(simapi.PathActor, s.handleDestroy).Methods(http.MethodDelete)
	return s
}

// World returns the served world.
func (s *Server) World() *World { return s.world }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	name, up := s.world.settings()
	if !up {
		writeError(w, http.StatusServiceUnavailable, "simulation not responding")
		return
	}
	writeJSON(w, http.StatusOK, simapi.Settings{Map: name})
}

func (s *Server) handleSpawnPoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, simapi.SpawnPoints{Count: s.world.points()})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req simapi.SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid spawn request")
		return
	}

	id, bp, res := s.world.spawn(req.Blueprint, req.SpawnPoint)
	switch res {
	case spawnNoMatch:
		writeError(w, http.StatusBadRequest, "no blueprint matches "+strconv.Quote(req.Blueprint))
	case spawnOutOfRange:
		writeError(w, http.StatusBadRequest, "spawn point out of range")
	case spawnOccupied:
		writeError(w, http.StatusConflict, "spawn point occupied")
	default:
		s.log.Debug("spawned actor", "actor", id, "blueprint", bp, "point", req.SpawnPoint)
		writeJSON(w, http.StatusCreated, simapi.Actor{ID: id, Blueprint: bp, SpawnPoint: req.SpawnPoint})
	}
}

func (s *Server) handleGetActor(w http.ResponseWriter, r *http.Request) {
	id, ok := actorID(w, r)
	if !ok {
		return
	}
	a, found := s.world.lookup(id)
	if !found {
		writeError(w, http.StatusNotFound, "actor not found")
		return
	}
	writeJSON(w, http.StatusOK, simapi.Actor{ID: id, Blueprint: a.blueprint, SpawnPoint: a.point})
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	id, ok := actorID(w, r)
	if !ok {
		return
	}
	switch s.world.destroy(id) {
	case destroyFailed:
		writeError(w, http.StatusInternalServerError, "destroy failed")
	case destroyUnknown:
		writeError(w, http.StatusNotFound, "actor not found")
	default:
		s.log.Debug("destroyed actor", "actor", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func actorID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, simapi.Error{Error: msg})
}
