package camera

import (
	"fmt"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Preset names for common resolutions
const (
	PresetVGA   = "vga"
	Preset720p  = "720p"
	Preset1080p = "1080p"
	Preset4K    = "4k"
)

// Presets returns all available resolution presets.
func Presets() map[string]vision.Resolution {
	return map[string]vision.Resolution{
		PresetVGA:   {Width: 640, Height: 480},
		Preset720p:  {Width: 1280, Height: 720},
		Preset1080p: {Width: 1920, Height: 1080},
		Preset4K:    {Width: 3840, Height: 2160},
	}
}

// PresetNames returns the list of available preset names, smallest first.
func PresetNames() []string {
	return []string{
		PresetVGA,
		Preset720p,
		Preset1080p,
		Preset4K,
	}
}

// GetPreset returns a preset resolution by name, or nil if not found.
func GetPreset(name string) *vision.Resolution {
	if res, ok := Presets()[name]; ok {
		return &res
	}
	return nil
}

// ApplyPreset returns a copy of cfg requesting the preset's resolution.
// Calibration is dropped when the resolution changes, since intrinsics
// only hold for the size they were measured at.
func ApplyPreset(cfg *vision.CameraConfig, name string) (*vision.CameraConfig, error) {
	res := GetPreset(name)
	if res == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	out := cfg.Clone()
	if out.Resolution != *res {
		out.Resolution = *res
		out.IntrinsicMatrix = vision.Array{}
		out.DistortionCoeffs = vision.Array{}
	}
	return out, nil
}
