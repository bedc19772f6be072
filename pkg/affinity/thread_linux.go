//go:build linux

package affinity

import "golang.org/x/sys/unix"

// currentThreadID returns the kernel thread ID of the calling thread.
// Valid here because the executor goroutine is locked to its OS thread.
func currentThreadID() uint64 {
	return uint64(unix.Gettid())
}
