package opencv

import (
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// FrameSize is a capture size range a device advertises. Discrete sizes have
// equal minimum and maximum.
type FrameSize struct {
	MinWidth, MaxWidth, StepWidth    int
	MinHeight, MaxHeight, StepHeight int
}

// FrameSizesFunc lists the raw frame sizes of a device node.
type FrameSizesFunc func(path string) ([]FrameSize, error)

// V4L2FrameSizes lists the uncompressed frame sizes of a V4L2 device node.
// Compressed formats are skipped because the GStreamer pipeline asks the
// source for raw video.
func V4L2FrameSizes(path string) ([]FrameSize, error) {
	dev, err := device.Open(path)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	enums, err := v4l2.GetAllFormatFrameSizes(dev.Fd())
	if err != nil {
		return nil, err
	}
	var sizes []FrameSize
	for _, e := range enums {
		switch e.PixelFormat {
		case v4l2.PixelFmtMJPEG, v4l2.PixelFmtJPEG, v4l2.PixelFmtH264:
			continue
		}
		sizes = append(sizes, FrameSize{
			MinWidth: int(e.Size.MinWidth), MaxWidth: int(e.Size.MaxWidth), StepWidth: int(e.Size.StepWidth),
			MinHeight: int(e.Size.MinHeight), MaxHeight: int(e.Size.MaxHeight), StepHeight: int(e.Size.StepHeight),
		})
	}
	return sizes, nil
}

// NearestSize returns the advertised size closest to want, measured as the
// sum of the width and height differences. Earlier entries win ties.
func NearestSize(sizes []FrameSize, want vision.Resolution) (vision.Resolution, bool) {
	var best vision.Resolution
	bestDist := -1
	for _, s := range sizes {
		r := vision.Resolution{
			Width:  snap(want.Width, s.MinWidth, s.MaxWidth, s.StepWidth),
			Height: snap(want.Height, s.MinHeight, s.MaxHeight, s.StepHeight),
		}
		if r.Width <= 0 || r.Height <= 0 {
			continue
		}
		d := abs(r.Width-want.Width) + abs(r.Height-want.Height)
		if bestDist < 0 || d < bestDist {
			best, bestDist = r, d
		}
	}
	return best, bestDist >= 0
}

// snap clamps v into [lo, hi] on the step grid starting at lo.
func snap(v, lo, hi, step int) int {
	v = min(max(v, lo), hi)
	if step > 1 {
		v = lo + (v-lo+step/2)/step*step
		if v > hi {
			v -= step
		}
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// pipelineSize picks the size to pin on the source caps of a GStreamer
// pipeline. A zero Resolution leaves the caps open, and the negotiated size
// is read back after the capture opens.
func (o Options) pipelineSize(path string, want vision.Resolution) vision.Resolution {
	if want.Width <= 0 || want.Height <= 0 || o.FrameSizes == nil {
		return vision.Resolution{}
	}
	sizes, err := o.FrameSizes(path)
	if err != nil {
		log.Debug("opencv: frame sizes unavailable, leaving caps open", "device", path, "error", err)
		return vision.Resolution{}
	}
	res, ok := NearestSize(sizes, want)
	if !ok {
		return vision.Resolution{}
	}
	if res != want {
		log.Info("opencv: requested size not offered by device", "device", path, "requested", want.String(), "using", res.String())
	}
	return res
}
