//go:build windows

package affinity

import "golang.org/x/sys/windows"

// currentThreadID returns the OS thread ID of the calling thread.
// Valid here because the executor goroutine is locked to its OS thread.
func currentThreadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}
