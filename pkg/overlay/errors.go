package overlay

import "errors"

var (
	// ErrNotInitialized indicates an operation before Manager.Initialize.
	ErrNotInitialized = errors.New("overlay: manager not initialized")
	// ErrInvalidSize rejects non-positive view dimensions.
	ErrInvalidSize = errors.New("overlay: view dimensions must be positive")
	// ErrInitFailed wraps any platform failure during view initialization.
	ErrInitFailed = errors.New("overlay: view initialization failed")
	// ErrDisposed indicates an operation against a disposed manager or view.
	ErrDisposed = errors.New("overlay: disposed")
)
