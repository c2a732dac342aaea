package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

func TestStreamConfig_Validate(t *testing.T) {
	cfg := DefaultStreamConfig()
	assert.Empty(t, cfg.Validate())

	bad := StreamConfig{Framerate: 0, Quality: 101}
	assert.Len(t, bad.Validate(), 2)
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		assert.NotNil(t, GetPreset(name), name)
	}
	assert.Nil(t, GetPreset("8k"))
	assert.Equal(t, vision.Resolution{Width: 1280, Height: 720}, *GetPreset(Preset720p))
}

func TestApplyPreset(t *testing.T) {
	cfg := &vision.CameraConfig{
		ID:               1,
		Resolution:       vision.Resolution{Width: 640, Height: 480},
		IntrinsicMatrix:  vision.Array{Dim: []int{3, 3}, Data: []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
		DistortionCoeffs: vision.Array{Dim: []int{5}, Data: make([]float64, 5)},
	}

	same, err := ApplyPreset(cfg, PresetVGA)
	require.NoError(t, err)
	assert.True(t, same.Calibrated(), "same size keeps calibration")
	assert.NotSame(t, cfg, same)

	hd, err := ApplyPreset(cfg, Preset1080p)
	require.NoError(t, err)
	assert.Equal(t, vision.Resolution{Width: 1920, Height: 1080}, hd.Resolution)
	assert.False(t, hd.Calibrated())
	assert.True(t, cfg.Calibrated(), "input is untouched")

	_, err = ApplyPreset(cfg, "8k")
	assert.Error(t, err)
}
