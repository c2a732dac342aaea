package opencv

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Options configure Open.
type Options struct {
	// Backend selects the capture backend. Default BackendV4L2.
	Backend Backend

	// Accel enables hardware acceleration for BackendGStreamer (AccelVAAPI).
	Accel string

	// Pipeline is an explicit GStreamer pipeline. When set, no device node
	// is checked and no control channel is opened.
	Pipeline string

	// DevicePath overrides /dev/video<ID>.
	DevicePath string

	// OpenSource opens the capture stream. Default OpenVideoCapture.
	OpenSource SourceOpener

	// OpenControls opens the control channel. Default OpenV4L2Controls;
	// nil disables device controls.
	OpenControls ControlsOpener

	// ProbeAccel checks hardware acceleration support. Default ProbeAccel.
	ProbeAccel func(accel string) error

	// FrameSizes lists the sizes a device offers so BackendGStreamer can pin
	// one it supports. Default V4L2FrameSizes; nil leaves the size open.
	FrameSizes FrameSizesFunc
}

// Option modifies Options.
type Option func(*Options)

// WithBackend selects the capture backend.
func WithBackend(b Backend) Option { return func(o *Options) { o.Backend = b } }

// WithAccel enables hardware acceleration.
func WithAccel(accel string) Option { return func(o *Options) { o.Accel = accel } }

// WithPipeline reads from an explicit GStreamer pipeline.
func WithPipeline(p string) Option { return func(o *Options) { o.Pipeline = p } }

// WithDevicePath overrides the device node.
func WithDevicePath(p string) Option { return func(o *Options) { o.DevicePath = p } }

// WithSourceOpener replaces the capture stream opener.
func WithSourceOpener(fn SourceOpener) Option { return func(o *Options) { o.OpenSource = fn } }

// WithControlsOpener replaces the control channel opener. nil disables controls.
func WithControlsOpener(fn ControlsOpener) Option { return func(o *Options) { o.OpenControls = fn } }

// WithAccelProbe replaces the hardware acceleration check.
func WithAccelProbe(fn func(string) error) Option { return func(o *Options) { o.ProbeAccel = fn } }

// WithFrameSizes replaces the frame size query. nil leaves pipeline sizes open.
func WithFrameSizes(fn FrameSizesFunc) Option { return func(o *Options) { o.FrameSizes = fn } }

// DefaultOptions returns the options Open starts from.
func DefaultOptions() Options {
	return Options{
		Backend:      BackendV4L2,
		OpenSource:   OpenVideoCapture,
		OpenControls: OpenV4L2Controls,
		ProbeAccel:   ProbeAccel,
		FrameSizes:   V4L2FrameSizes,
	}
}

// Camera is a vision.Camera reading 8-bit BGR frames through OpenCV.
type Camera struct {
	id     uint8
	device string
	cfg    atomic.Pointer[vision.CameraConfig]
	closed atomic.Bool
	log    *slog.Logger

	mu  sync.Mutex // serialises reads against Close
	src Source

	ctrlMu sync.Mutex
	ctrl   Controls // nil when the device has no control channel
}

var (
	_ vision.Camera[*gocv.Mat] = (*Camera)(nil)
	_ vision.ExposureControl   = (*Camera)(nil)
)

// Open opens camera cfg.ID and negotiates its resolution. The returned
// camera's Config reports what the device actually delivers.
func Open(cfg *vision.CameraConfig, opts ...Option) (*Camera, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	path := o.DevicePath
	if path == "" {
		path = fmt.Sprintf("/dev/video%d", cfg.ID)
	}

	var device any = int(cfg.ID)
	name := path
	switch {
	case o.Pipeline != "":
		device, name = o.Pipeline, o.Pipeline
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, &vision.OpenError{Kind: vision.ErrNotFound, Device: path, Err: err}
		}
		if o.DevicePath != "" {
			device = path
		}
		if o.Backend == BackendGStreamer {
			device = V4L2Pipeline(path, o.pipelineSize(path, cfg.Resolution), o.Accel)
		}
	}

	if o.Accel != AccelNone {
		if o.Backend != BackendGStreamer {
			return nil, &vision.OpenError{Kind: vision.ErrUnsupported, Device: name,
				Err: fmt.Errorf("acceleration %q needs the gstreamer backend", o.Accel)}
		}
		if err := o.ProbeAccel(o.Accel); err != nil {
			return nil, &vision.OpenError{Kind: vision.ErrUnsupported, Device: name, Err: err}
		}
	}

	src, err := o.OpenSource(device, o.Backend)
	if err != nil {
		return nil, &vision.OpenError{Kind: vision.ErrDeviceUnavailable, Device: name, Err: err}
	}
	if !src.IsOpened() {
		src.Close()
		return nil, &vision.OpenError{Kind: vision.ErrDeviceUnavailable, Device: name, Err: errors.New("capture did not open")}
	}

	refined, err := negotiate(src, cfg)
	if err != nil {
		src.Close()
		var oe *vision.OpenError
		if errors.As(err, &oe) {
			oe.Device = name
		}
		return nil, err
	}

	c := &Camera{
		id:     cfg.ID,
		device: name,
		src:    src,
		log:    log.With("component", "opencv", "camera", cfg.ID),
	}

	if o.Pipeline == "" && o.OpenControls != nil {
		ctrl, err := o.OpenControls(path)
		if err != nil {
			c.log.Warn("device controls unavailable", "device", path, "error", err)
		} else {
			c.ctrl = ctrl
			if v, err := ctrl.Control(CIDExposure); err == nil && float64(v) != refined.Exposure {
				refined = cloneOnce(refined, cfg)
				refined.Exposure = float64(v)
			}
		}
	}

	c.cfg.Store(refined)
	c.log.Info("camera opened", "device", name, "backend", string(o.Backend), "resolution", refined.Resolution.String())
	return c, nil
}

// negotiate requests the configured resolution and BGR output, then checks
// a probe frame. It returns cfg itself when nothing changed, else a copy.
func negotiate(src Source, cfg *vision.CameraConfig) (*vision.CameraConfig, error) {
	want := cfg.Resolution
	if want.Width > 0 && want.Height > 0 {
		src.Set(gocv.VideoCaptureFrameWidth, float64(want.Width))
		src.Set(gocv.VideoCaptureFrameHeight, float64(want.Height))
	}
	src.Set(gocv.VideoCaptureConvertRGB, 1)

	got := vision.Resolution{
		Width:  int(src.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(src.Get(gocv.VideoCaptureFrameHeight)),
	}
	if got != want {
		log.Info("opencv: resolution negotiated", "requested", want.String(), "negotiated", got.String())
	}

	probe := gocv.NewMat()
	defer probe.Close()
	if !src.Read(&probe) || probe.Empty() {
		return nil, &vision.OpenError{Kind: vision.ErrDeviceUnavailable, Err: errors.New("no probe frame")}
	}
	if probe.Type() != gocv.MatTypeCV8UC3 {
		return nil, &vision.OpenError{Kind: vision.ErrUnsupported,
			Err: fmt.Errorf("frames are type %v with %d channels, want 8-bit 3-channel", probe.Type(), probe.Channels())}
	}

	// Some backends report 0 for the frame size.
	if got.Width <= 0 || got.Height <= 0 {
		got = vision.Resolution{Width: probe.Cols(), Height: probe.Rows()}
	}

	if got == want {
		return cfg, nil
	}
	out := cfg.Clone()
	out.Resolution = got
	return out, nil
}

func cloneOnce(cur, orig *vision.CameraConfig) *vision.CameraConfig {
	if cur == orig {
		return orig.Clone()
	}
	return cur
}

// Config returns the current configuration. Refinements replace the value;
// a config returned earlier is never modified.
func (c *Camera) Config() *vision.CameraConfig { return c.cfg.Load() }

// Device returns the device path or pipeline the camera was opened on.
func (c *Camera) Device() string { return c.device }

// State reports whether the camera is open.
func (c *Camera) State() vision.State {
	if c.closed.Load() {
		return vision.StateClosed
	}
	return vision.StateOpen
}

// GrabFrame reads the next frame. The timestamp is taken as soon as the
// read returns. A failed read leaves the camera open; a vanished device
// does not.
func (c *Camera) GrabFrame() (*vision.Image[*gocv.Mat], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, c.captureErr(vision.ErrDeviceUnavailable, vision.ErrClosed)
	}
	if !c.src.IsOpened() {
		return nil, c.captureErr(vision.ErrDeviceUnavailable, errors.New("capture is no longer opened"))
	}

	m := gocv.NewMat()
	ok := c.src.Read(&m)
	ts := time.Now()
	if !ok || m.Empty() {
		m.Close()
		if !c.src.IsOpened() {
			return nil, c.captureErr(vision.ErrDeviceUnavailable, errors.New("capture closed during read"))
		}
		return nil, c.captureErr(vision.ErrReadFailed, nil)
	}

	cfg := c.cfg.Load()
	if got := (vision.Resolution{Width: m.Cols(), Height: m.Rows()}); got != cfg.Resolution {
		c.log.Info("frame size changed", "from", cfg.Resolution.String(), "to", got.String())
		cfg = c.publish(func(next *vision.CameraConfig) { next.Resolution = got })
	}

	return vision.NewImage[*gocv.Mat](ts, cfg, NewMatData(m)), nil
}

// publish applies fn to a copy of the current config and stores it.
func (c *Camera) publish(fn func(*vision.CameraConfig)) *vision.CameraConfig {
	for {
		cur := c.cfg.Load()
		next := cur.Clone()
		fn(next)
		if c.cfg.CompareAndSwap(cur, next) {
			return next
		}
	}
}

func (c *Camera) captureErr(kind, err error) error {
	return &vision.CaptureError{Kind: kind, Camera: c.id, Err: err}
}

// Exposure returns the current exposure value from the device.
func (c *Camera) Exposure() (int32, error) {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	if c.ctrl == nil {
		return 0, &vision.ControlError{Kind: vision.ErrUnsupportedControl, Control: CIDExposure, Err: errors.New("no control channel")}
	}
	return c.ctrl.Control(CIDExposure)
}

// SetExposure switches the device to manual exposure and sets value.
// Capture is not affected by a failure.
func (c *Camera) SetExposure(value int32) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	if c.ctrl == nil {
		return &vision.ControlError{Kind: vision.ErrUnsupportedControl, Control: CIDExposure, Err: errors.New("no control channel")}
	}
	if err := c.ctrl.SetControl(CIDExposureAuto, ExposureManual); err != nil {
		return err
	}
	if err := c.ctrl.SetControl(CIDExposure, value); err != nil {
		return err
	}
	c.publish(func(next *vision.CameraConfig) { next.Exposure = float64(value) })
	c.log.Debug("exposure set", "value", value)
	return nil
}

// Close releases the capture stream and the control channel. It waits for
// an in-flight GrabFrame to return. Closing twice is a no-op.
func (c *Camera) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	err := c.src.Close()
	c.mu.Unlock()

	c.ctrlMu.Lock()
	if c.ctrl != nil {
		err = errors.Join(err, c.ctrl.Close())
		c.ctrl = nil
	}
	c.ctrlMu.Unlock()

	c.log.Info("camera closed")
	return err
}
