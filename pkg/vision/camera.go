package vision

// State is the lifecycle state of a camera.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// Camera produces images from one device.
//
// GrabFrame blocks until a frame is available or the device fails. Calls on
// one Camera must be serialised by the caller; distinct cameras may be driven
// from separate goroutines.
type Camera[T any] interface {
	// Config returns the configuration fixed at open time, including
	// negotiated and measured values. It never fails.
	Config() *CameraConfig

	// GrabFrame returns the next frame. Errors are *CaptureError.
	GrabFrame() (*Image[T], error)

	// Close releases the device.
	Close() error
}

// ExposureControl is the optional exposure capability of a camera.
// Errors are *ControlError and never affect frame capture.
type ExposureControl interface {
	Exposure() (int32, error)
	SetExposure(value int32) error
}

// ContourExtractor finds contour groups in an image.
type ContourExtractor[T any] interface {
	ExtractFrom(img *Image[T]) ([]ContourGroup, error)
}

// ContourAnalyzer turns a contour group into a target measurement.
type ContourAnalyzer interface {
	Analyze(group ContourGroup) (VisionTarget, error)
}
