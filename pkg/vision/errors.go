package vision

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
)

// Error kinds. Use errors.Is against these to classify an error returned by
// this package or a camera backend.
var (
	// ErrNotFound is returned when the device path or index does not exist.
	ErrNotFound = errors.New("vision: device not found")

	// ErrUnsupported is returned when the device cannot deliver 8-bit 3-channel frames.
	ErrUnsupported = errors.New("vision: unsupported device format")

	// ErrDeviceUnavailable is returned when the device disconnected or the camera was closed.
	ErrDeviceUnavailable = errors.New("vision: device unavailable")

	// ErrReadFailed is returned for transient read failures such as a dropped frame.
	ErrReadFailed = errors.New("vision: frame read failed")

	// ErrUnsupportedControl is returned when the device does not implement a control.
	ErrUnsupportedControl = errors.New("vision: unsupported control")

	// ErrDeviceBusy is returned when a control cannot be changed right now.
	ErrDeviceBusy = errors.New("vision: device busy")

	// ErrClosed is returned when using a camera after Close.
	ErrClosed = errors.New("vision: camera closed")
)

// ShapeError reports inconsistent or insufficient buffer dimensions.
type ShapeError = pixels.ShapeError

// OpenError is returned when a camera cannot be opened.
type OpenError struct {
	// Kind is ErrNotFound, ErrUnsupported or ErrDeviceUnavailable.
	Kind error

	// Device is the path, index or pipeline that was opened.
	Device string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Device, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Device)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpenError) Unwrap() []error { return []error{e.Kind, e.Err} }

// CaptureError is returned by Camera.GrabFrame.
type CaptureError struct {
	// Kind is ErrDeviceUnavailable or ErrReadFailed.
	Kind error

	// Camera is the ID of the camera that failed.
	Camera uint8

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: camera %d: %v", e.Kind, e.Camera, e.Err)
	}
	return fmt.Sprintf("%v: camera %d", e.Kind, e.Camera)
}

// Unwrap exposes both the kind and the cause.
func (e *CaptureError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Fatal reports whether the camera must be reopened before grabbing again.
func (e *CaptureError) Fatal() bool { return errors.Is(e.Kind, ErrDeviceUnavailable) }

// Retryable reports whether the caller may simply grab again.
func (e *CaptureError) Retryable() bool { return errors.Is(e.Kind, ErrReadFailed) }

// ControlError is returned by device control operations. It never affects capture.
type ControlError struct {
	// Kind is ErrUnsupportedControl or ErrDeviceBusy.
	Kind error

	// Control is the numeric control ID.
	Control uint32

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ControlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: control %#x: %v", e.Kind, e.Control, e.Err)
	}
	return fmt.Sprintf("%v: control %#x", e.Kind, e.Control)
}

// Unwrap exposes both the kind and the cause.
func (e *ControlError) Unwrap() []error { return []error{e.Kind, e.Err} }

// IsRetryable reports whether err is a recoverable capture failure.
func IsRetryable(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Retryable()
}
