// Package config provides configuration helpers for go-stdvis commands.
// Values come from STDVIS_* environment variables; command-line flags
// override them.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables.
const (
	EnvCameraID = "STDVIS_CAMERA_ID"
	EnvBackend  = "STDVIS_BACKEND"
	EnvConfig   = "STDVIS_CONFIG"
	EnvPort     = "STDVIS_PORT"
	EnvLogLevel = "STDVIS_LOG_LEVEL"
)

// Defaults used when the environment is unset.
const (
	DefaultCameraID = 0
	DefaultBackend  = "v4l2"
	DefaultConfig   = "camera.json"
	DefaultPort     = "8080"
	DefaultLogLevel = "info"
)

// CameraID returns the camera index from STDVIS_CAMERA_ID.
// Falls back to DefaultCameraID if unset, and errors if not a valid uint8.
func CameraID() (uint8, error) {
	v := os.Getenv(EnvCameraID)
	if v == "" {
		return DefaultCameraID, nil
	}
	id, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", EnvCameraID, v, err)
	}
	return uint8(id), nil
}

// Backend returns the capture backend name from STDVIS_BACKEND.
func Backend() string {
	return getenv(EnvBackend, DefaultBackend)
}

// ConfigPath returns the camera config path from STDVIS_CONFIG.
func ConfigPath() string {
	return getenv(EnvConfig, DefaultConfig)
}

// Port returns the HTTP port from STDVIS_PORT.
func Port() string {
	return getenv(EnvPort, DefaultPort)
}

// LogLevel returns the log level from STDVIS_LOG_LEVEL.
func LogLevel() string {
	return getenv(EnvLogLevel, DefaultLogLevel)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
