// Package camera manages the cameras of one rig: opened cameras keyed by ID,
// resolution presets and the runtime-tunable stream settings used when
// frames are served over HTTP.
package camera

// StreamConfig holds the settings for serving frames.
// These can be modified via the camera API at runtime.
type StreamConfig struct {
	Framerate int `json:"framerate"` // Target FPS of websocket streams
	Quality   int `json:"quality"`   // JPEG quality 1-100
}

// Stream limits.
const (
	MaxFramerate = 120
	MaxQuality   = 100
)

// DefaultStreamConfig returns the settings used until changed.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Framerate: 15,
		Quality:   85,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *StreamConfig) Validate() []string {
	var errors []string

	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > MaxQuality {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
