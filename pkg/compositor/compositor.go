// Package compositor models the platform compositor's render tree. The
// compositor itself is a foreign service; this package defines the narrow
// slice of it the capture and view layers consume (container visuals,
// sizing, child insertion) plus an in-memory implementation backing the
// stub platform and tests.
package compositor

import (
	"errors"
	"sync"
)

// ErrDisposed indicates an operation on a disposed compositor or visual.
var ErrDisposed = errors.New("compositor: disposed")

// Visual is a node in the compositor's render tree.
type Visual interface {
	// SetSize sets an absolute pixel size.
	SetSize(width, height int)
	Size() (width, height int)

	// SetRelativeSize makes the visual track a fraction of its parent's
	// size; (1, 1) fills the parent.
	SetRelativeSize(sx, sy float32)

	// InsertTopChild inserts child above all existing children.
	InsertTopChild(child Visual)

	Dispose()
}

// Compositor creates container visuals.
type Compositor interface {
	CreateContainerVisual() (Visual, error)
	Dispose() error
}

type memCompositor struct {
	mu       sync.Mutex
	disposed bool
}

// New returns an in-memory compositor maintaining a retained visual tree.
func New() Compositor {
	return &memCompositor{}
}

func (c *memCompositor) CreateContainerVisual() (Visual, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}
	return &memVisual{}, nil
}

func (c *memCompositor) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	return nil
}

type memVisual struct {
	mu       sync.Mutex
	width    int
	height   int
	relX     float32
	relY     float32
	relative bool
	parent   *memVisual
	children []*memVisual
	disposed bool
}

func (v *memVisual) SetSize(width, height int) {
	v.mu.Lock()
	v.width, v.height = width, height
	v.relative = false
	children := make([]*memVisual, len(v.children))
	copy(children, v.children)
	v.mu.Unlock()

	// Relative children track the parent size.
	for _, c := range children {
		c.parentResized(width, height)
	}
}

func (v *memVisual) parentResized(pw, ph int) {
	v.mu.Lock()
	if !v.relative {
		v.mu.Unlock()
		return
	}
	v.width = int(float32(pw) * v.relX)
	v.height = int(float32(ph) * v.relY)
	w, h := v.width, v.height
	children := make([]*memVisual, len(v.children))
	copy(children, v.children)
	v.mu.Unlock()

	for _, c := range children {
		c.parentResized(w, h)
	}
}

func (v *memVisual) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

func (v *memVisual) SetRelativeSize(sx, sy float32) {
	v.mu.Lock()
	v.relX, v.relY = sx, sy
	v.relative = true
	parent := v.parent
	v.mu.Unlock()

	// The parent size is read through its own lock; a concurrent SetSize
	// on the parent re-delivers through parentResized either way.
	if parent != nil {
		pw, ph := parent.Size()
		if pw > 0 || ph > 0 {
			v.parentResized(pw, ph)
		}
	}
}

func (v *memVisual) InsertTopChild(child Visual) {
	c, ok := child.(*memVisual)
	if !ok {
		return
	}
	c.mu.Lock()
	c.parent = v
	c.mu.Unlock()

	v.mu.Lock()
	v.children = append(v.children, c)
	pw, ph := v.width, v.height
	v.mu.Unlock()
	c.parentResized(pw, ph)
}

func (v *memVisual) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed = true
	v.children = nil
	v.parent = nil
}
