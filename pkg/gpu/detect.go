package gpu

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Vendor identifies the GPU vendor backing the host device.
type Vendor string

const (
	VendorAMD     Vendor = "amd"
	VendorNVIDIA  Vendor = "nvidia"
	VendorIntel   Vendor = "intel"
	VendorUnknown Vendor = "unknown"
)

// Info describes the detected GPU.
type Info struct {
	Vendor Vendor
	Name   string
}

func (i Info) String() string {
	if i.Name != "" {
		return string(i.Vendor) + " (" + i.Name + ")"
	}
	return string(i.Vendor)
}

// Detect identifies the host GPU. The result is informational: it feeds
// startup logs and lets the host warn when texture sharing is known to be
// flaky for a vendor. Detection failure is not an error.
func Detect(log zerolog.Logger) Info {
	for _, method := range []func() Info{detectViaSysFS, detectViaNVIDIAProc} {
		if info := method(); info.Vendor != VendorUnknown {
			log.Debug().Str("gpu", info.String()).Msg("GPU detected")
			return info
		}
	}
	log.Debug().Msg("GPU vendor not detected")
	return Info{Vendor: VendorUnknown}
}

// detectViaSysFS reads PCI vendor IDs from the DRM device nodes.
func detectViaSysFS() Info {
	matches, err := filepath.Glob("/sys/class/drm/card*/device/vendor")
	if err != nil {
		return Info{Vendor: VendorUnknown}
	}
	for _, vendorFile := range matches {
		data, err := os.ReadFile(vendorFile)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(data)) {
		case "0x1002":
			return Info{Vendor: VendorAMD}
		case "0x10de":
			return Info{Vendor: VendorNVIDIA}
		case "0x8086":
			return Info{Vendor: VendorIntel}
		}
	}
	return Info{Vendor: VendorUnknown}
}

// detectViaNVIDIAProc catches the proprietary NVIDIA driver, which does
// not always expose DRM vendor nodes.
func detectViaNVIDIAProc() Info {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return Info{Vendor: VendorNVIDIA}
	}
	return Info{Vendor: VendorUnknown}
}
