// Package core implements the session supervisor for simguard: the actor
// Registry, the monotonic ShutdownFlag, the signal Relay, the Reclaimer
// (exactly-once pass gate with per-handle claims), the fault Trap and the
// Session state machine that ties them together.
package core
