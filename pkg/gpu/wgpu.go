package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// copyPitchAlignment is the row alignment WebGPU requires for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// WGPUDevice adapts a caller-owned wgpu device/queue pair to Device.
// The underlying device is never released here.
type WGPUDevice struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

// NewWGPUDevice wraps a wgpu device and its queue.
func NewWGPUDevice(device *wgpu.Device, queue *wgpu.Queue) *WGPUDevice {
	return &WGPUDevice{device: device, queue: queue}
}

// GPUDevice implements DeviceProvider so a *wgpu.Device pair can travel
// through WrapDevice as an opaque native handle.
func (d *WGPUDevice) GPUDevice() (Device, error) {
	if d.device == nil || d.queue == nil {
		return nil, fmt.Errorf("gpu: nil wgpu device or queue")
	}
	return d, nil
}

type wgpuTexture struct {
	tex    *wgpu.Texture
	width  int
	height int
}

func (t *wgpuTexture) Width() int  { return t.width }
func (t *wgpuTexture) Height() int { return t.height }
func (t *wgpuTexture) Release() {
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type mapState int

const (
	mapIdle mapState = iota
	mapPending
	mapReady
	mapFailed
)

// wgpuStaging is a CPU-readable staging target. WebGPU reads textures back
// through a mappable buffer, so the "staging texture" is a buffer sized
// with the 256-byte row pitch the API requires.
type wgpuStaging struct {
	buf      *wgpu.Buffer
	width    int
	height   int
	rowPitch int
	state    mapState
}

func (t *wgpuStaging) Width() int  { return t.width }
func (t *wgpuStaging) Height() int { return t.height }
func (t *wgpuStaging) Release() {
	if t.buf != nil {
		t.buf.Release()
		t.buf = nil
	}
}

func (d *WGPUDevice) CreateTexture(width, height int) (Texture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "webpane-frame",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatBGRA8Unorm,
		Usage:         wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture: %w", err)
	}
	return &wgpuTexture{tex: tex, width: width, height: height}, nil
}

func (d *WGPUDevice) CreateStagingTexture(width, height int) (Texture, error) {
	rowPitch := alignRowPitch(width * 4)
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "webpane-staging",
		Size:  uint64(rowPitch) * uint64(height),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	return &wgpuStaging{buf: buf, width: width, height: height, rowPitch: rowPitch}, nil
}

func (d *WGPUDevice) Copy(dst, src Texture) error {
	from, ok := src.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("gpu: copy source is not a wgpu texture: %T", src)
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	defer encoder.Release()

	size := wgpu.Extent3D{
		Width:              uint32(src.Width()),
		Height:             uint32(src.Height()),
		DepthOrArrayLayers: 1,
	}
	origin := &wgpu.ImageCopyTexture{
		Texture:  from.tex,
		MipLevel: 0,
		Origin:   wgpu.Origin3D{},
		Aspect:   wgpu.TextureAspectAll,
	}

	switch to := dst.(type) {
	case *wgpuTexture:
		encoder.CopyTextureToTexture(origin, &wgpu.ImageCopyTexture{
			Texture:  to.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		}, &size)
	case *wgpuStaging:
		encoder.CopyTextureToBuffer(origin, &wgpu.ImageCopyBuffer{
			Buffer: to.buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(to.rowPitch),
				RowsPerImage: uint32(to.height),
			},
		}, &size)
		to.state = mapIdle
	default:
		return fmt.Errorf("gpu: copy destination is not a wgpu texture: %T", dst)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("gpu: finish encoder: %w", err)
	}
	defer cmd.Release()
	d.queue.Submit(cmd)
	return nil
}

// MapRead polls the device without blocking. The map request is issued on
// the first call after a copy; until the callback fires, ready is false
// and the caller skips this cycle.
func (d *WGPUDevice) MapRead(staging Texture) (Mapping, bool, error) {
	st, ok := staging.(*wgpuStaging)
	if !ok {
		return Mapping{}, false, fmt.Errorf("gpu: not a wgpu staging texture: %T", staging)
	}

	if st.state == mapIdle {
		size := uint64(st.rowPitch) * uint64(st.height)
		err := st.buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
			if status == wgpu.BufferMapAsyncStatusSuccess {
				st.state = mapReady
			} else {
				st.state = mapFailed
			}
		})
		if err != nil {
			return Mapping{}, false, fmt.Errorf("gpu: map staging buffer: %w", err)
		}
		st.state = mapPending
	}

	d.device.Poll(false, nil)

	switch st.state {
	case mapReady:
		data := st.buf.GetMappedRange(0, uint(st.rowPitch)*uint(st.height))
		return Mapping{Data: data, RowPitch: st.rowPitch}, true, nil
	case mapFailed:
		st.state = mapIdle
		return Mapping{}, false, fmt.Errorf("gpu: staging buffer map failed")
	default:
		return Mapping{}, false, nil
	}
}

func (d *WGPUDevice) Unmap(staging Texture) {
	st, ok := staging.(*wgpuStaging)
	if !ok {
		return
	}
	if st.state == mapReady {
		st.buf.Unmap()
	}
	st.state = mapIdle
}

func alignRowPitch(bytesPerRow int) int {
	return (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}
