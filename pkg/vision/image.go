package vision

import (
	"time"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
)

// ImageData is pixel storage that can be viewed generically or handed to
// native code as its raw handle of type T.
//
// Views returned by Pixels and PixelsMut alias the storage and follow the
// single-writer rule: PixelsMut and RawMut revoke every earlier view, Pixels
// revokes an outstanding mutable view, Close revokes everything.
type ImageData[T any] interface {
	// Pixels returns a read-only view of the samples.
	Pixels() (pixels.View, error)

	// PixelsMut returns a mutable view of the samples.
	PixelsMut() (pixels.MutView, error)

	// Raw returns the native handle for reading.
	Raw() T

	// RawMut returns the native handle for native code that writes to it.
	RawMut() T

	// Close releases the storage.
	Close() error
}

// Image is a frame bound to the configuration of the camera that produced it.
type Image[T any] struct {
	// Timestamp is when the frame left the device.
	Timestamp time.Time

	camera *CameraConfig
	data   ImageData[T]
}

// NewImage binds data to a camera config. The config is shared, not copied.
func NewImage[T any](timestamp time.Time, camera *CameraConfig, data ImageData[T]) *Image[T] {
	return &Image[T]{Timestamp: timestamp, camera: camera, data: data}
}

// Config returns the camera config the image was captured with.
func (i *Image[T]) Config() *CameraConfig { return i.camera }

// Data returns the underlying storage.
func (i *Image[T]) Data() ImageData[T] { return i.data }

// Pixels forwards to the storage.
func (i *Image[T]) Pixels() (pixels.View, error) { return i.data.Pixels() }

// PixelsMut forwards to the storage.
func (i *Image[T]) PixelsMut() (pixels.MutView, error) { return i.data.PixelsMut() }

// Raw forwards to the storage.
func (i *Image[T]) Raw() T { return i.data.Raw() }

// RawMut forwards to the storage.
func (i *Image[T]) RawMut() T { return i.data.RawMut() }

// Close releases the pixel storage.
func (i *Image[T]) Close() error { return i.data.Close() }

// CheckResolution compares the pixel shape with the config's resolution.
func (i *Image[T]) CheckResolution() error {
	v, err := i.data.Pixels()
	if err != nil {
		return err
	}
	shape := v.Shape()
	want := i.camera.Resolution
	if len(shape) < 2 || shape[0] != want.Height || shape[1] != want.Width {
		return &ShapeError{Op: "check_resolution", Shape: shape, Reason: "config resolution is " + want.String()}
	}
	return nil
}
