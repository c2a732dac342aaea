package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{EnvCameraID, EnvBackend, EnvConfig, EnvPort, EnvLogLevel} {
		t.Setenv(k, "")
	}

	id, err := CameraID()
	require.NoError(t, err)
	assert.Equal(t, uint8(DefaultCameraID), id)
	assert.Equal(t, DefaultBackend, Backend())
	assert.Equal(t, DefaultConfig, ConfigPath())
	assert.Equal(t, DefaultPort, Port())
	assert.Equal(t, DefaultLogLevel, LogLevel())
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvCameraID, "2")
	t.Setenv(EnvBackend, "gstreamer")
	t.Setenv(EnvPort, "9000")

	id, err := CameraID()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), id)
	assert.Equal(t, "gstreamer", Backend())
	assert.Equal(t, "9000", Port())
}

func TestCameraID_Invalid(t *testing.T) {
	tests := []string{"-1", "256", "front"}
	for _, v := range tests {
		t.Run(v, func(t *testing.T) {
			t.Setenv(EnvCameraID, v)
			_, err := CameraID()
			assert.Error(t, err)
		})
	}
}
