package core

import "github.com/giantswarm/simguard/internal/sentinel"

// ErrConnectionLost marks a liveness query failure after the session started
// running. It ends the session gracefully.
const ErrConnectionLost = sentinel.Error("connection to simulation endpoint lost")

// ErrSpawn is returned when the initial actor population cannot be spawned.
// Actors spawned before the failure have already been destroyed.
const ErrSpawn = sentinel.Error("spawn actors")

// ErrSpawnCollision is returned by Endpoint.Spawn when the spawn point is
// occupied. SpawnActors retries on another point.
const ErrSpawnCollision = sentinel.Error("spawn point occupied")

// ErrWorkerStart is returned by Session.Run when the worker fails to start.
const ErrWorkerStart = sentinel.Error("start worker")

// ErrAlreadyPublished is returned by Registry.Publish on a second call.
const ErrAlreadyPublished = sentinel.Error("registry already published")

// ErrDuplicateActor is returned by Registry.Publish when an actor ID appears
// twice.
const ErrDuplicateActor = sentinel.Error("duplicate actor in registry")

// ErrFault is returned by Session.Run when the fault trap handled a panic
// and the injected exit function returned instead of terminating.
const ErrFault = sentinel.Error("unhandled fault")

// ErrSessionUsed is returned by Session.Run on a session that already ran.
const ErrSessionUsed = sentinel.Error("session already used")

// ErrPassTaken is returned by Reclaimer.Run when another pass already holds
// the gate.
const ErrPassTaken = sentinel.Error("reclamation pass already taken")
