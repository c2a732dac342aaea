package opencv

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// Backend selects the OpenCV capture backend.
type Backend string

const (
	// BackendV4L2 reads the device through Video4Linux2.
	BackendV4L2 Backend = "v4l2"

	// BackendGStreamer reads through a GStreamer pipeline, optionally hardware accelerated.
	BackendGStreamer Backend = "gstreamer"

	// BackendAny lets OpenCV pick.
	BackendAny Backend = "any"
)

// ParseBackend maps a backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendV4L2, BackendGStreamer, BackendAny:
		return b, nil
	case "":
		return BackendV4L2, nil
	default:
		return "", fmt.Errorf("opencv: unknown backend %q (want v4l2, gstreamer or any)", s)
	}
}

func (b Backend) api() gocv.VideoCaptureAPI {
	switch b {
	case BackendV4L2:
		return gocv.VideoCaptureV4L2
	case BackendGStreamer:
		return gocv.VideoCaptureGstreamer
	default:
		return gocv.VideoCaptureAny
	}
}

// Source is the capture stream a Camera reads from. *gocv.VideoCapture
// implements it.
type Source interface {
	IsOpened() bool
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Set(prop gocv.VideoCaptureProperties, value float64)
	Close() error
}

// SourceOpener opens a capture stream. device is an index or a pipeline string.
type SourceOpener func(device any, backend Backend) (Source, error)

// OpenVideoCapture is the default SourceOpener.
func OpenVideoCapture(device any, backend Backend) (Source, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(device, backend.api())
	if err != nil {
		return nil, err
	}
	return vc, nil
}
