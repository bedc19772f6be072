// Package platformtest provides in-memory implementations of the foreign
// platform services (GPU device, frame delivery, browser engine, windows)
// used by package tests across the module.
package platformtest

import (
	"fmt"
	"sync"

	"github.com/webpane/webpane/pkg/gpu"
)

// FakeTexture is a CPU-backed texture. Pixels are 4 bytes per pixel.
type FakeTexture struct {
	W, H     int
	Pixels   []byte
	Staging  bool
	Released bool
}

// NewFakeTexture creates a texture filled with the given pixel value.
func NewFakeTexture(w, h int, fill [4]byte) *FakeTexture {
	px := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		copy(px[i*4:], fill[:])
	}
	return &FakeTexture{W: w, H: h, Pixels: px}
}

func (t *FakeTexture) Width() int  { return t.W }
func (t *FakeTexture) Height() int { return t.H }
func (t *FakeTexture) Release()    { t.Released = true }

// SetAlpha sets the alpha channel at (x, y).
func (t *FakeTexture) SetAlpha(x, y int, a byte) {
	t.Pixels[(y*t.W+x)*4+3] = a
}

// FakeDevice implements gpu.Device over CPU buffers.
type FakeDevice struct {
	mu sync.Mutex

	// NotReady makes MapRead report the GPU as busy.
	NotReady bool
	// RowPadding widens the mapped row pitch beyond W*4 to exercise
	// row-by-row copies.
	RowPadding int
	// FailCopy makes Copy return an error.
	FailCopy bool

	Created  []*FakeTexture
	MapCalls int
}

func (d *FakeDevice) CreateTexture(w, h int) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &FakeTexture{W: w, H: h, Pixels: make([]byte, w*h*4)}
	d.Created = append(d.Created, t)
	return t, nil
}

func (d *FakeDevice) CreateStagingTexture(w, h int) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &FakeTexture{W: w, H: h, Pixels: make([]byte, w*h*4), Staging: true}
	d.Created = append(d.Created, t)
	return t, nil
}

func (d *FakeDevice) Copy(dst, src gpu.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailCopy {
		return fmt.Errorf("platformtest: copy forced to fail")
	}
	to, ok := dst.(*FakeTexture)
	if !ok {
		return fmt.Errorf("platformtest: bad dst %T", dst)
	}
	from, ok := src.(*FakeTexture)
	if !ok {
		return fmt.Errorf("platformtest: bad src %T", src)
	}
	if to.W != from.W || to.H != from.H {
		return fmt.Errorf("platformtest: size mismatch %dx%d -> %dx%d", from.W, from.H, to.W, to.H)
	}
	copy(to.Pixels, from.Pixels)
	return nil
}

func (d *FakeDevice) MapRead(staging gpu.Texture) (gpu.Mapping, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.MapCalls++
	if d.NotReady {
		return gpu.Mapping{}, false, nil
	}
	t, ok := staging.(*FakeTexture)
	if !ok {
		return gpu.Mapping{}, false, fmt.Errorf("platformtest: bad staging %T", staging)
	}

	pitch := t.W*4 + d.RowPadding
	data := make([]byte, pitch*t.H)
	for y := 0; y < t.H; y++ {
		copy(data[y*pitch:], t.Pixels[y*t.W*4:(y+1)*t.W*4])
	}
	return gpu.Mapping{Data: data, RowPitch: pitch}, true, nil
}

func (d *FakeDevice) Unmap(gpu.Texture) {}
