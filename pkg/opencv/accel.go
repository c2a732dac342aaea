package opencv

import (
	"fmt"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Hardware acceleration modes for the GStreamer backend.
const (
	AccelNone  = ""
	AccelVAAPI = "vaapi"
)

// ProbeAccel checks that the GStreamer elements for accel are installed.
func ProbeAccel(accel string) error {
	switch accel {
	case AccelNone:
		return nil
	case AccelVAAPI:
		return checkVAAPIAvailable()
	default:
		return fmt.Errorf("unknown acceleration %q", accel)
	}
}

// checkVAAPIAvailable fails fast when the VAAPI plugins are missing or the
// hardware does not support them.
func checkVAAPIAvailable() error {
	// Safe to call more than once.
	gst.Init(nil)

	for _, name := range []string{"vaapidecodebin", "vaapipostproc"} {
		el, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("%s not available (install gstreamer1.0-vaapi): %w", name, err)
		}
		el.SetState(gst.StateNull)
	}

	log.Debug("opencv: VAAPI hardware acceleration available")
	return nil
}

// V4L2Pipeline returns a GStreamer pipeline that reads a V4L2 device and
// hands BGR frames to OpenCV. With AccelVAAPI, scaling and colour conversion
// run on the GPU.
func V4L2Pipeline(devicePath string, res vision.Resolution, accel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "v4l2src device=%s", devicePath)
	if res.Width > 0 && res.Height > 0 {
		fmt.Fprintf(&b, " ! video/x-raw,width=%d,height=%d", res.Width, res.Height)
	}
	if accel == AccelVAAPI {
		b.WriteString(" ! vaapipostproc")
	}
	b.WriteString(" ! videoconvert ! video/x-raw,format=BGR ! appsink drop=true max-buffers=1")
	return b.String()
}
