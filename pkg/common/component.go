package common

// Component is the lifecycle contract for background workers (compaction
// loop, soft-delete cleaner, membership watcher, DLQ metrics emitter): no
// hidden global state, explicit start/stop, safe to call Stop before Start
// returns.
type Component interface {
	Start() error
	Stop() error
}
