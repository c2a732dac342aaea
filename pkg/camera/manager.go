package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

var (
	// ErrUnknownCamera is returned for an ID that is not registered.
	ErrUnknownCamera = errors.New("camera: unknown camera")

	// ErrDuplicateCamera is returned when adding an ID twice.
	ErrDuplicateCamera = errors.New("camera: camera already registered")
)

// Encoder turns an image into JPEG bytes at the given quality.
type Encoder[T any] func(img *vision.Image[T], quality int) ([]byte, error)

// Manager holds the opened cameras of a rig and serialises access to each.
// Cameras with different IDs are driven independently.
type Manager[T any] struct {
	mu      sync.RWMutex
	cameras map[uint8]*vision.Grabber[T]
	stream  StreamConfig
	encode  Encoder[T]

	// Callback when stream settings change
	OnStreamChange func(cfg StreamConfig)
}

// NewManager creates a manager that encodes snapshots with encode.
func NewManager[T any](encode Encoder[T]) *Manager[T] {
	return &Manager[T]{
		cameras: make(map[uint8]*vision.Grabber[T]),
		stream:  DefaultStreamConfig(),
		encode:  encode,
	}
}

// Add registers an opened camera under its config ID. The manager takes
// ownership and closes it on Remove or Close.
func (m *Manager[T]) Add(cam vision.Camera[T]) error {
	id := cam.Config().ID

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateCamera, id)
	}
	m.cameras[id] = vision.NewGrabber(cam)
	log.Info("camera registered", "camera", id, "resolution", cam.Config().Resolution.String())
	return nil
}

// Remove closes and unregisters a camera.
func (m *Manager[T]) Remove(id uint8) error {
	m.mu.Lock()
	g, ok := m.cameras[id]
	delete(m.cameras, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCamera, id)
	}
	return g.Camera().Close()
}

// IDs returns the registered camera IDs in ascending order.
func (m *Manager[T]) IDs() []uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint8, 0, len(m.cameras))
	for id := range m.cameras {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Manager[T]) grabber(id uint8) (*vision.Grabber[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.cameras[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCamera, id)
	}
	return g, nil
}

// Camera returns the camera registered under id.
func (m *Manager[T]) Camera(id uint8) (vision.Camera[T], error) {
	g, err := m.grabber(id)
	if err != nil {
		return nil, err
	}
	return g.Camera(), nil
}

// Config returns the current config of camera id.
func (m *Manager[T]) Config(id uint8) (*vision.CameraConfig, error) {
	cam, err := m.Camera(id)
	if err != nil {
		return nil, err
	}
	return cam.Config(), nil
}

// Grab returns the next frame of camera id. Concurrent callers on the same
// camera wait their turn.
func (m *Manager[T]) Grab(ctx context.Context, id uint8) (*vision.Image[T], error) {
	g, err := m.grabber(id)
	if err != nil {
		return nil, err
	}
	return g.Grab(ctx)
}

// Snapshot grabs a frame from camera id and returns it as JPEG.
func (m *Manager[T]) Snapshot(ctx context.Context, id uint8) ([]byte, error) {
	img, err := m.Grab(ctx, id)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return m.encode(img, m.GetStreamConfig().Quality)
}

func (m *Manager[T]) exposure(id uint8) (vision.ExposureControl, error) {
	cam, err := m.Camera(id)
	if err != nil {
		return nil, err
	}
	ec, ok := cam.(vision.ExposureControl)
	if !ok {
		return nil, &vision.ControlError{Kind: vision.ErrUnsupportedControl, Err: fmt.Errorf("camera %d has no exposure control", id)}
	}
	return ec, nil
}

// Exposure returns the exposure of camera id.
func (m *Manager[T]) Exposure(id uint8) (int32, error) {
	ec, err := m.exposure(id)
	if err != nil {
		return 0, err
	}
	return ec.Exposure()
}

// SetExposure sets the exposure of camera id.
func (m *Manager[T]) SetExposure(id uint8, value int32) error {
	ec, err := m.exposure(id)
	if err != nil {
		return err
	}
	return ec.SetExposure(value)
}

// GetStreamConfig returns the current stream settings.
func (m *Manager[T]) GetStreamConfig() StreamConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stream
}

// SetStreamConfig updates the stream settings.
func (m *Manager[T]) SetStreamConfig(cfg StreamConfig) error {
	// Validate
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	m.stream = cfg
	callback := m.OnStreamChange
	m.mu.Unlock()

	if callback != nil {
		callback(cfg)
	}
	return nil
}

// UpdateStreamConfig updates specific fields of the stream settings.
// Accepts a map of field names to values.
func (m *Manager[T]) UpdateStreamConfig(params map[string]interface{}) error {
	cfg := m.GetStreamConfig()

	for key, value := range params {
		switch key {
		case "framerate":
			if v, ok := toInt(value); ok {
				cfg.Framerate = v
			}
		case "quality":
			if v, ok := toInt(value); ok {
				cfg.Quality = v
			}
		default:
			return fmt.Errorf("unknown stream setting: %s", key)
		}
	}

	return m.SetStreamConfig(cfg)
}

// Close closes every camera and empties the manager.
func (m *Manager[T]) Close() error {
	m.mu.Lock()
	cams := m.cameras
	m.cameras = make(map[uint8]*vision.Grabber[T])
	m.mu.Unlock()

	var errs []error
	for _, g := range cams {
		errs = append(errs, g.Camera().Close())
	}
	return errors.Join(errs...)
}

// Helper functions for type conversion

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
