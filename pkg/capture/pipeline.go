package capture

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/webpane/webpane/pkg/compositor"
	"github.com/webpane/webpane/pkg/gpu"
)

// DefaultAlphaInterval is how many delivered frames pass between alpha
// cache snapshots. The cache only feeds hit-testing, which tolerates a few
// frames of staleness; snapshotting every frame would double GPU copies.
const DefaultAlphaInterval = 10

// State is the pipeline lifecycle state.
type State int32

const (
	Stopped State = iota
	Capturing
)

// Pipeline owns one frame-delivery session over a compositor visual,
// copies each delivered frame into an owned current-frame texture, and
// keeps a double-buffered CPU alpha cache for hit-testing.
type Pipeline struct {
	device   gpu.Device
	source   FrameSource
	interval int
	log      zerolog.Logger

	// mu guards session state and the GPU-side textures. Held briefly by
	// the frame handler (capture thread) and by Start/Stop/Resize
	// (executor thread); it never blocks on the executor.
	mu         sync.Mutex
	state      State
	pool       FramePool
	session    Session
	width      int
	height     int
	current    gpu.Texture
	staging    gpu.Texture
	frameCount uint64

	// cacheMu guards only the alpha cache, independently of mu, so a
	// concurrent hit-test query never contends with frame decoding.
	cacheMu sync.Mutex
	front   []byte
	back    []byte
	cacheW  int
	cacheH  int

	onFrame func(gpu.Texture)
}

// NewPipeline creates a pipeline over a GPU device and a frame source.
// interval <= 0 selects DefaultAlphaInterval.
func NewPipeline(device gpu.Device, source FrameSource, interval int, log zerolog.Logger) *Pipeline {
	if interval <= 0 {
		interval = DefaultAlphaInterval
	}
	return &Pipeline{
		device:   device,
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "capture").Logger(),
	}
}

// SetFrameHandler registers the per-frame notification. The texture handle
// it carries remains owned by the pipeline; consumers must not hold it
// beyond the pipeline's lifetime without retaining their own reference.
// The handler runs outside the pipeline's internal lock and may call
// Stop or Resize.
func (p *Pipeline) SetFrameHandler(fn func(gpu.Texture)) {
	p.mu.Lock()
	p.onFrame = fn
	p.mu.Unlock()
}

// Start stops any prior session and begins frame delivery for visual at
// the given size.
func (p *Pipeline) Start(visual compositor.Visual, width, height int) error {
	p.stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	pool, err := p.source.NewPool(width, height)
	if err != nil {
		return fmt.Errorf("capture: create frame pool: %w", err)
	}
	session, err := pool.NewSession(visual)
	if err != nil {
		pool.Close()
		return fmt.Errorf("capture: create capture session: %w", err)
	}

	pool.SetFrameHandler(p.handleFrame)
	if err := session.Start(); err != nil {
		session.Close()
		pool.Close()
		return fmt.Errorf("capture: start capture session: %w", err)
	}

	p.pool = pool
	p.session = session
	p.width = width
	p.height = height
	p.frameCount = 0
	p.state = Capturing
	p.log.Debug().Int("width", width).Int("height", height).Msg("capture started")
	return nil
}

// Stop tears down the session then the pool. Idempotent.
func (p *Pipeline) Stop() {
	p.stop()
}

func (p *Pipeline) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Stopped {
		return
	}
	if p.session != nil {
		if err := p.session.Close(); err != nil {
			p.log.Warn().Err(err).Msg("closing capture session")
		}
		p.session = nil
	}
	if p.pool != nil {
		if err := p.pool.Close(); err != nil {
			p.log.Warn().Err(err).Msg("closing frame pool")
		}
		p.pool = nil
	}
	p.releaseTexturesLocked()
	p.state = Stopped
	p.log.Debug().Msg("capture stopped")
}

// Resize recreates the frame pool at the new size; the session is reused.
// The first frame delivered after a resize still carries the old content
// size and is dropped by the frame handler rather than copied.
func (p *Pipeline) Resize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Capturing {
		return
	}
	p.width = width
	p.height = height
	if err := p.pool.Recreate(width, height); err != nil {
		p.log.Warn().Err(err).Int("width", width).Int("height", height).
			Msg("frame pool recreate failed")
	}
}

// State returns the pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// handleFrame runs on the platform's capture thread for every delivered
// frame. Failures drop the frame silently: occasional loss is steady-state.
func (p *Pipeline) handleFrame(frame Frame) {
	defer frame.Release()

	fw, fh := frame.ContentSize()
	if fw <= 0 || fh <= 0 {
		return
	}

	p.mu.Lock()
	if p.state != Capturing {
		p.mu.Unlock()
		return
	}

	// A content size that disagrees with the pipeline's last-known size is
	// a resize still draining through the delivery queue: recreate the
	// pool at the target size and drop this frame. It is not redelivered.
	if fw != p.width || fh != p.height {
		if err := p.pool.Recreate(p.width, p.height); err != nil {
			p.log.Warn().Err(err).Msg("frame pool recreate on stale frame failed")
		}
		p.mu.Unlock()
		return
	}

	tex := gpu.ExtractTexture(frame.Surface())
	if tex == nil {
		p.mu.Unlock()
		return
	}

	if p.current == nil || p.current.Width() != fw || p.current.Height() != fh {
		if !p.reallocateLocked(fw, fh) {
			p.mu.Unlock()
			return
		}
	}

	if err := p.device.Copy(p.current, tex); err != nil {
		p.log.Debug().Err(err).Msg("frame copy failed")
		p.mu.Unlock()
		return
	}

	p.frameCount++
	if p.frameCount%uint64(p.interval) == 0 {
		p.snapshotAlphaLocked(fw, fh)
	}

	// Notify with the lock released so the handler may call back into the
	// pipeline (Stop, Resize) without deadlocking.
	onFrame := p.onFrame
	current := p.current
	p.mu.Unlock()
	if onFrame != nil {
		onFrame(current)
	}
}

// reallocateLocked replaces the current-frame texture and its paired
// staging texture. The staging texture's dimensions always match the most
// recently captured texture's.
func (p *Pipeline) reallocateLocked(w, h int) bool {
	p.releaseTexturesLocked()

	current, err := p.device.CreateTexture(w, h)
	if err != nil {
		p.log.Warn().Err(err).Msg("allocating current-frame texture")
		return false
	}
	staging, err := p.device.CreateStagingTexture(w, h)
	if err != nil {
		current.Release()
		p.log.Warn().Err(err).Msg("allocating staging texture")
		return false
	}
	p.current = current
	p.staging = staging
	return true
}

func (p *Pipeline) releaseTexturesLocked() {
	if p.current != nil {
		p.current.Release()
		p.current = nil
	}
	if p.staging != nil {
		p.staging.Release()
		p.staging = nil
	}
}

// snapshotAlphaLocked copies the current frame through the staging texture
// into the back pixel buffer and swaps it in. If the GPU has not finished
// the copy, the update is skipped this cycle rather than stalling the
// capture thread.
func (p *Pipeline) snapshotAlphaLocked(w, h int) {
	if err := p.device.Copy(p.staging, p.current); err != nil {
		p.log.Debug().Err(err).Msg("staging copy failed")
		return
	}

	m, ready, err := p.device.MapRead(p.staging)
	if err != nil {
		p.log.Debug().Err(err).Msg("staging map failed")
		return
	}
	if !ready {
		return
	}
	defer p.device.Unmap(p.staging)

	need := w * h * 4
	if cap(p.back) < need {
		p.back = make([]byte, need)
	}
	p.back = p.back[:need]

	// Row-by-row: the mapped data's row pitch may exceed the tight width.
	rowBytes := w * 4
	for y := 0; y < h; y++ {
		src := m.Data[y*m.RowPitch : y*m.RowPitch+rowBytes]
		copy(p.back[y*rowBytes:], src)
	}

	// Whole-buffer swap under the cache lock: a concurrent reader sees
	// either the prior complete frame or this one, never a partial write.
	p.cacheMu.Lock()
	p.front, p.back = p.back, p.front
	p.cacheW, p.cacheH = w, h
	p.cacheMu.Unlock()
}

// AlphaAt returns the cached alpha at (x, y). Out-of-bounds coordinates
// and a not-yet-populated cache read as fully opaque so hit-testing fails
// closed (clicks land on the view, not through it).
func (p *Pipeline) AlphaAt(x, y int) byte {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if p.front == nil || x < 0 || y < 0 || x >= p.cacheW || y >= p.cacheH {
		return 255
	}
	return p.front[(y*p.cacheW+x)*4+3]
}
