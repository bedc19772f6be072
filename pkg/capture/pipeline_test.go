package capture_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpane/webpane/internal/platformtest"
	"github.com/webpane/webpane/pkg/capture"
	"github.com/webpane/webpane/pkg/compositor"
	"github.com/webpane/webpane/pkg/gpu"
)

func newStartedPipeline(t *testing.T, device *platformtest.FakeDevice, interval, w, h int) (*capture.Pipeline, *platformtest.FakeFrameSource) {
	t.Helper()
	source := &platformtest.FakeFrameSource{}
	visual, err := compositor.New().CreateContainerVisual()
	require.NoError(t, err)

	p := capture.NewPipeline(device, source, interval, zerolog.Nop())
	require.NoError(t, p.Start(visual, w, h))
	t.Cleanup(p.Stop)
	return p, source
}

func TestPipeline_StartStop(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 800, 600)

	pool := source.LastPool()
	require.NotNil(t, pool)
	assert.True(t, pool.Session.Started)
	assert.Equal(t, capture.Capturing, p.State())

	p.Stop()
	assert.Equal(t, capture.Stopped, p.State())
	assert.True(t, pool.Session.Closed)
	assert.True(t, pool.Closed)

	p.Stop() // idempotent
	assert.Equal(t, capture.Stopped, p.State())
}

func TestPipeline_StartReplacesPriorSession(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 800, 600)
	first := source.LastPool()

	visual, err := compositor.New().CreateContainerVisual()
	require.NoError(t, err)
	require.NoError(t, p.Start(visual, 400, 300))

	assert.True(t, first.Closed)
	assert.True(t, source.LastPool().Session.Started)
	assert.NotSame(t, first, source.LastPool())
}

func TestPipeline_DropsZeroSizeFrames(t *testing.T) {
	device := &platformtest.FakeDevice{}
	_, source := newStartedPipeline(t, device, 1, 800, 600)

	frame := &platformtest.FakeFrame{W: 0, H: 0}
	source.LastPool().Deliver(frame)

	assert.True(t, frame.Released)
	assert.Empty(t, device.Created, "no textures allocated for a dropped frame")
}

func TestPipeline_DropsSurfaceWithoutTexture(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 800, 600)

	var frames int
	p.SetFrameHandler(func(gpu.Texture) { frames++ })

	frame := &platformtest.FakeFrame{W: 800, H: 600, Surf: platformtest.OpaqueSurface{}}
	source.LastPool().Deliver(frame)

	assert.True(t, frame.Released)
	assert.Zero(t, frames)
}

func TestPipeline_CopiesFrameIntoOwnedTexture(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 800, 600)

	var got []gpu.Texture
	p.SetFrameHandler(func(tex gpu.Texture) { got = append(got, tex) })

	frame, srcTex := platformtest.NewTextureFrame(800, 600, [4]byte{1, 2, 3, 200})
	source.LastPool().Deliver(frame)

	require.Len(t, got, 1)
	assert.Equal(t, 800, got[0].Width())
	assert.Equal(t, 600, got[0].Height())
	assert.NotSame(t, gpu.Texture(srcTex), got[0], "notified texture is the pipeline's copy, not the delivered surface")
	assert.True(t, frame.Released)
}

func TestPipeline_StaleResizeFrameDropped(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 800, 600)
	pool := source.LastPool()

	var delivered [][2]int
	p.SetFrameHandler(func(tex gpu.Texture) {
		delivered = append(delivered, [2]int{tex.Width(), tex.Height()})
	})

	first, _ := platformtest.NewTextureFrame(800, 600, [4]byte{0, 0, 0, 255})
	pool.Deliver(first)
	require.Equal(t, [][2]int{{800, 600}}, delivered)

	p.Resize(400, 300)
	require.Equal(t, [][2]int{{400, 300}}, pool.Recreates)

	// A frame still carrying the pre-resize content size drains through the
	// delivery queue: dropped, and the pool is recreated at the target size.
	stale, _ := platformtest.NewTextureFrame(800, 600, [4]byte{0, 0, 0, 255})
	pool.Deliver(stale)
	assert.True(t, stale.Released)
	assert.Equal(t, [][2]int{{800, 600}}, delivered)
	assert.Equal(t, [][2]int{{400, 300}, {400, 300}}, pool.Recreates)

	fresh, _ := platformtest.NewTextureFrame(400, 300, [4]byte{0, 0, 0, 255})
	pool.Deliver(fresh)
	assert.Equal(t, [][2]int{{800, 600}, {400, 300}}, delivered)
}

func TestPipeline_ResizeIgnoredWhenStopped(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 800, 600)
	pool := source.LastPool()

	p.Stop()
	p.Resize(400, 300)
	assert.Empty(t, pool.Recreates)
}

func TestPipeline_AlphaSnapshotInterval(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 3, 16, 16)
	pool := source.LastPool()

	deliver := func(alpha byte) {
		f, _ := platformtest.NewTextureFrame(16, 16, [4]byte{0, 0, 0, alpha})
		pool.Deliver(f)
	}

	deliver(10)
	deliver(20)
	assert.EqualValues(t, 255, p.AlphaAt(0, 0), "cache not yet populated reads opaque")

	deliver(30) // third frame triggers the snapshot
	assert.EqualValues(t, 30, p.AlphaAt(0, 0))
	assert.EqualValues(t, 30, p.AlphaAt(15, 15))

	deliver(40)
	deliver(50)
	assert.EqualValues(t, 30, p.AlphaAt(0, 0), "cache holds until the next interval boundary")

	deliver(60)
	assert.EqualValues(t, 60, p.AlphaAt(0, 0))
}

func TestPipeline_AlphaSkippedWhileGPUBusy(t *testing.T) {
	device := &platformtest.FakeDevice{NotReady: true}
	p, source := newStartedPipeline(t, device, 1, 16, 16)
	pool := source.LastPool()

	f, _ := platformtest.NewTextureFrame(16, 16, [4]byte{0, 0, 0, 42})
	pool.Deliver(f)
	assert.EqualValues(t, 255, p.AlphaAt(0, 0), "unfinished readback leaves the cache untouched")

	device.NotReady = false
	f, _ = platformtest.NewTextureFrame(16, 16, [4]byte{0, 0, 0, 42})
	pool.Deliver(f)
	assert.EqualValues(t, 42, p.AlphaAt(0, 0))
}

func TestPipeline_AlphaHonorsRowPitch(t *testing.T) {
	device := &platformtest.FakeDevice{RowPadding: 64}
	p, source := newStartedPipeline(t, device, 1, 8, 4)
	pool := source.LastPool()

	frame, tex := platformtest.NewTextureFrame(8, 4, [4]byte{0, 0, 0, 100})
	tex.SetAlpha(0, 0, 1)
	tex.SetAlpha(7, 3, 9)
	pool.Deliver(frame)

	assert.EqualValues(t, 1, p.AlphaAt(0, 0))
	assert.EqualValues(t, 9, p.AlphaAt(7, 3))
	assert.EqualValues(t, 100, p.AlphaAt(3, 2))
}

func TestPipeline_AlphaAtOutOfBounds(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 8, 8)
	pool := source.LastPool()

	f, _ := platformtest.NewTextureFrame(8, 8, [4]byte{0, 0, 0, 7})
	pool.Deliver(f)

	assert.EqualValues(t, 7, p.AlphaAt(0, 0))
	for _, pt := range [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}, {100, 100}} {
		assert.EqualValues(t, 255, p.AlphaAt(pt[0], pt[1]), "out of bounds reads opaque")
	}
}

func TestPipeline_CopyFailureDropsFrame(t *testing.T) {
	device := &platformtest.FakeDevice{FailCopy: true}
	p, source := newStartedPipeline(t, device, 1, 16, 16)

	var frames int
	p.SetFrameHandler(func(gpu.Texture) { frames++ })

	f, _ := platformtest.NewTextureFrame(16, 16, [4]byte{0, 0, 0, 50})
	source.LastPool().Deliver(f)

	assert.True(t, f.Released)
	assert.Zero(t, frames)
	assert.EqualValues(t, 255, p.AlphaAt(0, 0))
}

func TestPipeline_HandlerMayControlPipeline(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 16, 16)
	pool := source.LastPool()

	p.SetFrameHandler(func(gpu.Texture) { p.Resize(8, 8) })
	f, _ := platformtest.NewTextureFrame(16, 16, [4]byte{0, 0, 0, 255})
	pool.Deliver(f)
	assert.Equal(t, [][2]int{{8, 8}}, pool.Recreates)

	p.SetFrameHandler(func(gpu.Texture) { p.Stop() })
	f, _ = platformtest.NewTextureFrame(8, 8, [4]byte{0, 0, 0, 255})
	pool.Deliver(f)
	assert.Equal(t, capture.Stopped, p.State())
}

func TestPipeline_ConcurrentAlphaReads(t *testing.T) {
	device := &platformtest.FakeDevice{}
	p, source := newStartedPipeline(t, device, 1, 32, 32)
	pool := source.LastPool()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		alphas := []byte{10, 200}
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			f, _ := platformtest.NewTextureFrame(32, 32, [4]byte{0, 0, 0, alphas[i%2]})
			pool.Deliver(f)
		}
	}()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		a := p.AlphaAt(16, 16)
		// Every read observes a complete snapshot: one of the written
		// values, or opaque before the first snapshot lands.
		if a != 10 && a != 200 && a != 255 {
			t.Fatalf("torn alpha read: %d", a)
		}
	}
	close(done)
	wg.Wait()
}
