package gpu

import "fmt"

// TextureProvider is the lower-level interface a foreign frame surface
// exposes when its backing texture is reachable.
type TextureProvider interface {
	NativeTexture() Texture
}

// DeviceProvider is the lower-level interface a native device object
// exposes for wrapping.
type DeviceProvider interface {
	GPUDevice() (Device, error)
}

// ExtractTexture queries a foreign surface for its backing texture.
// Returns nil on any failure: occasional frame loss is an expected,
// non-exceptional outcome, so this never returns an error.
func ExtractTexture(surface any) (tex Texture) {
	defer func() {
		if recover() != nil {
			tex = nil
		}
	}()
	provider, ok := surface.(TextureProvider)
	if !ok {
		return nil
	}
	return provider.NativeTexture()
}

// WrapDevice queries a native device object for its device interface and
// returns the wrapper. Unlike texture extraction this runs once at
// pipeline construction, so a failure here is an error.
func WrapDevice(native any) (Device, error) {
	switch d := native.(type) {
	case Device:
		return d, nil
	case DeviceProvider:
		dev, err := d.GPUDevice()
		if err != nil {
			return nil, fmt.Errorf("gpu: wrap native device: %w", err)
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedDevice, native)
	}
}
