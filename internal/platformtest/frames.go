package platformtest

import (
	"sync"

	"github.com/webpane/webpane/pkg/capture"
	"github.com/webpane/webpane/pkg/compositor"
	"github.com/webpane/webpane/pkg/gpu"
)

// FakeSurface exposes a texture through the bridge's provider interface.
type FakeSurface struct {
	Tex gpu.Texture
}

func (s *FakeSurface) NativeTexture() gpu.Texture { return s.Tex }

// OpaqueSurface exposes nothing; extraction from it fails.
type OpaqueSurface struct{}

// FakeFrame is one delivered frame.
type FakeFrame struct {
	W, H     int
	Surf     any
	Released bool
}

func (f *FakeFrame) ContentSize() (int, int) { return f.W, f.H }
func (f *FakeFrame) Surface() any            { return f.Surf }
func (f *FakeFrame) Release()                { f.Released = true }

// NewTextureFrame builds a frame whose surface yields a texture filled
// with the given pixel value.
func NewTextureFrame(w, h int, fill [4]byte) (*FakeFrame, *FakeTexture) {
	tex := NewFakeTexture(w, h, fill)
	return &FakeFrame{W: w, H: h, Surf: &FakeSurface{Tex: tex}}, tex
}

// FakeSession is a started/closed flag pair.
type FakeSession struct {
	mu      sync.Mutex
	Started bool
	Closed  bool
}

func (s *FakeSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Started = true
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// FakePool delivers frames to the registered handler on the caller's
// goroutine, standing in for the platform's capture thread.
type FakePool struct {
	mu        sync.Mutex
	W, H      int
	Handler   func(capture.Frame)
	Session   *FakeSession
	Recreates [][2]int
	Closed    bool
}

func (p *FakePool) NewSession(compositor.Visual) (capture.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Session = &FakeSession{}
	return p.Session, nil
}

func (p *FakePool) SetFrameHandler(fn func(capture.Frame)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Handler = fn
}

func (p *FakePool) Recreate(w, h int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.W, p.H = w, h
	p.Recreates = append(p.Recreates, [2]int{w, h})
	return nil
}

func (p *FakePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Deliver pushes a frame through the handler, as the capture thread would.
func (p *FakePool) Deliver(f capture.Frame) {
	p.mu.Lock()
	fn := p.Handler
	p.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

// FakeFrameSource hands out FakePools and remembers the last one.
type FakeFrameSource struct {
	mu    sync.Mutex
	Pools []*FakePool
}

func (s *FakeFrameSource) NewPool(w, h int) (capture.FramePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &FakePool{W: w, H: h}
	s.Pools = append(s.Pools, p)
	return p, nil
}

// LastPool returns the most recently created pool, or nil.
func (s *FakeFrameSource) LastPool() *FakePool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Pools) == 0 {
		return nil
	}
	return s.Pools[len(s.Pools)-1]
}
