// Package gpu abstracts the caller-owned GPU device used to allocate,
// copy, and map 2D textures. The device is a foreign object: this package
// never renders, it only shuttles pixels for the capture pipeline.
package gpu

import "errors"

// ErrUnsupportedDevice indicates a native device object that cannot be
// wrapped into a Device.
var ErrUnsupportedDevice = errors.New("gpu: unsupported native device")

// Texture is an exclusively-owned 2D texture handle. Release must be
// called exactly once by the owner; the handle must not be used after.
type Texture interface {
	Width() int
	Height() int
	Release()
}

// Mapping is a CPU view of a mapped staging texture. Data is laid out as
// 4 bytes per pixel, rows separated by RowPitch bytes (which may exceed
// Width*4 due to alignment requirements of the underlying API).
type Mapping struct {
	Data     []byte
	RowPitch int
}

// Device allocates, copies, and maps 2D textures. Implementations wrap a
// caller-owned native device which is never released by this subsystem.
type Device interface {
	// CreateTexture allocates a GPU-resident texture used as a copy target.
	CreateTexture(width, height int) (Texture, error)

	// CreateStagingTexture allocates a CPU-readable texture of identical
	// dimensions, used as the intermediate for pixel inspection.
	CreateStagingTexture(width, height int) (Texture, error)

	// Copy copies src into dst. Both textures must share dimensions.
	Copy(dst, src Texture) error

	// MapRead attempts a non-blocking CPU read of a staging texture.
	// ready=false means the GPU has not finished the preceding copy; the
	// caller is expected to skip this cycle rather than stall.
	MapRead(staging Texture) (m Mapping, ready bool, err error)

	// Unmap releases a mapping obtained from MapRead.
	Unmap(staging Texture)
}
