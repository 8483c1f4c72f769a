// Package simstub is an in-memory simulation endpoint served over HTTP.
//
// It backs the integration tests and the simstub development binary. Fault
// knobs make the endpoint stop answering liveness queries or refuse to
// destroy actors, so every shutdown path can be exercised without a real
// simulator.
package simstub
