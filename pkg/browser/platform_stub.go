//go:build !webkit_cgo

package browser

import "github.com/rs/zerolog"

// IsNativeAvailable reports whether the native WebKitGTK backend is compiled in.
// In non-CGO builds this returns false and the platform environment is a
// logical no-op.
func IsNativeAvailable() bool { return false }

// PlatformThreadInit returns no thread-init hook in non-CGO builds.
func PlatformThreadInit() func() error { return nil }

// PlatformPump returns no pump hook in non-CGO builds.
func PlatformPump() func() { return nil }

// NewPlatformEnvironment falls back to the stub environment.
func NewPlatformEnvironment(log zerolog.Logger) (Environment, error) {
	log.Warn().Msg("native browser backend not compiled in; using stub environment")
	return NewStubEnvironment(log), nil
}
