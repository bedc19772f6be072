//go:build !linux && !windows

package affinity

// currentThreadID has no implementation on this platform. Returning 0
// defeats the OnThread check, so a RunBlocking issued from a callback on
// the executor thread would enqueue behind the busy thread and deadlock.
// No in-tree backend does that here (the native backends are Linux-only
// and the stubs never call back on the executor thread); a port to
// another platform must supply a real thread ID first.
func currentThreadID() uint64 {
	return 0
}
