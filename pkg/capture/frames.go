// Package capture turns frames delivered by the platform's frame-delivery
// subsystem into owned GPU textures, and maintains a CPU-readable alpha
// cache for hit-testing. The frame pool/session primitives are foreign
// services consumed through the interfaces below.
package capture

import (
	"github.com/webpane/webpane/pkg/compositor"
)

// Frame is one delivered snapshot of a visual subtree. Release must be
// called when the pipeline is done with it.
type Frame interface {
	// ContentSize is the size the frame's content was rendered at, which
	// lags the pool size across a resize.
	ContentSize() (width, height int)

	// Surface returns the foreign surface object backing this frame. The
	// object-model bridge queries it for the native texture.
	Surface() any

	Release()
}

// Session delivers frames of one visual once started.
type Session interface {
	Start() error
	Close() error
}

// FramePool owns the buffers frames are delivered through. Recreate is
// legal from inside the frame handler: the platform supports recreating
// the pool synchronously within a delivery callback.
type FramePool interface {
	// NewSession binds a capture session to a visual. The pool keeps
	// delivering through the same session across Recreate calls.
	NewSession(visual compositor.Visual) (Session, error)

	// SetFrameHandler registers the delivery callback. The platform
	// invokes it from an internal capture thread.
	SetFrameHandler(fn func(Frame))

	Recreate(width, height int) error
	Close() error
}

// FrameSource creates frame pools. This is the entry point a platform
// frame-delivery backend implements.
type FrameSource interface {
	NewPool(width, height int) (FramePool, error)
}
