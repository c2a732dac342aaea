package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
)

func TestImage_SharesConfig(t *testing.T) {
	cfg := &CameraConfig{ID: 1, Resolution: Resolution{Width: 640, Height: 480}}
	a := NewImage[*pixels.Buffer](time.Now(), cfg, NewHostData(pixels.NewBuffer(480, 640, 3)))
	b := NewImage[*pixels.Buffer](time.Now(), cfg, NewHostData(pixels.NewBuffer(480, 640, 3)))

	assert.Same(t, cfg, a.Config())
	assert.Same(t, a.Config(), b.Config())
	assert.NoError(t, a.CheckResolution())
}

func TestImage_CheckResolution(t *testing.T) {
	cfg := &CameraConfig{Resolution: Resolution{Width: 1920, Height: 1080}}
	img := NewImage[*pixels.Buffer](time.Now(), cfg, NewHostData(pixels.NewBuffer(720, 1280, 3)))

	err := img.CheckResolution()
	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "check_resolution", se.Op)
	assert.Equal(t, []int{720, 1280, 3}, se.Shape)
}

func TestHostData_ViewsAliasRaw(t *testing.T) {
	img := NewImage[*pixels.Buffer](time.Now(), &CameraConfig{}, NewHostData(pixels.NewBuffer(480, 640, 3)))

	mv, err := img.PixelsMut()
	require.NoError(t, err)
	mv.SetPixel(0, 0, 255, 0, 0)

	raw := img.Raw()
	assert.Equal(t, uint8(255), raw.Sample(0, 0, 0))
	assert.Equal(t, uint8(0), raw.Sample(0, 0, 1))

	img.RawMut().SetSample(479, 639, 2, 9)
	v, err := img.Pixels()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), v.At(479, 639, 2))
	assert.Equal(t, []int{480, 640, 3}, v.Shape())
}

func TestHostData_SingleWriter(t *testing.T) {
	h := NewHostData(pixels.NewBuffer(4, 4, 3))

	r1, err := h.Pixels()
	require.NoError(t, err)
	r2, err := h.Pixels()
	require.NoError(t, err)
	assert.True(t, r1.Valid())
	assert.True(t, r2.Valid())

	w, err := h.PixelsMut()
	require.NoError(t, err)
	assert.False(t, r1.Valid(), "exclusive view revokes readers")
	assert.True(t, w.Valid())

	h.RawMut()
	assert.False(t, w.Valid(), "native write access revokes the writer")
	assert.PanicsWithValue(t, pixels.ErrStaleView, func() { w.Set(1, 0, 0, 0) })

	r3, err := h.Pixels()
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.False(t, r3.Valid())
}

func TestHostData_RawRevokesWriter(t *testing.T) {
	h := NewHostData(pixels.NewBuffer(2, 2, 3))
	defer h.Close()

	r, err := h.Pixels()
	require.NoError(t, err)
	w, err := h.PixelsMut()
	require.NoError(t, err)
	assert.False(t, r.Valid())

	raw := h.Raw()
	assert.False(t, w.Valid(), "borrowed handle and writer cannot coexist")
	assert.PanicsWithValue(t, pixels.ErrStaleView, func() { w.Set(42, 0, 0, 0) })
	assert.Equal(t, uint8(0), raw.Sample(0, 0, 0))

	r2, err := h.Pixels()
	require.NoError(t, err)
	h.Raw()
	assert.True(t, r2.Valid(), "readers survive Raw")
}

func TestDecodeHostData(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	h, err := DecodeHostData(&buf)
	require.NoError(t, err)
	v, err := h.Pixels()
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 3}, v.Shape())
	assert.Equal(t, []uint8{30, 20, 10}, v.Pixel(1, 1))

	_, err = DecodeHostData(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("ioctl: no such device")

	open := fmt.Errorf("open camera: %w", &OpenError{Kind: ErrNotFound, Device: "/dev/video9", Err: cause})
	assert.ErrorIs(t, open, ErrNotFound)
	assert.ErrorIs(t, open, cause)
	assert.NotErrorIs(t, open, ErrUnsupported)
	assert.Contains(t, open.Error(), "/dev/video9")

	readFail := &CaptureError{Kind: ErrReadFailed, Camera: 2}
	assert.True(t, readFail.Retryable())
	assert.False(t, readFail.Fatal())
	assert.True(t, IsRetryable(fmt.Errorf("grab: %w", readFail)))

	gone := &CaptureError{Kind: ErrDeviceUnavailable, Camera: 2, Err: ErrClosed}
	assert.True(t, gone.Fatal())
	assert.False(t, IsRetryable(gone))
	assert.ErrorIs(t, gone, ErrClosed)

	ctrl := &ControlError{Kind: ErrUnsupportedControl, Control: 0x00980911}
	assert.ErrorIs(t, ctrl, ErrUnsupportedControl)
	assert.Contains(t, ctrl.Error(), "0x980911")
	assert.False(t, IsRetryable(ctrl))
}

// gatedCamera returns a frame each time release is signalled.
type gatedCamera struct {
	cfg     *CameraConfig
	release chan struct{}
	grabs   atomic.Int32
	closed  atomic.Int32
}

func newGatedCamera() *gatedCamera {
	return &gatedCamera{
		cfg:     &CameraConfig{ID: 3, Resolution: Resolution{Width: 8, Height: 6}},
		release: make(chan struct{}),
	}
}

func (c *gatedCamera) Config() *CameraConfig { return c.cfg }

func (c *gatedCamera) GrabFrame() (*Image[*pixels.Buffer], error) {
	<-c.release
	c.grabs.Add(1)
	return NewImage[*pixels.Buffer](time.Now(), c.cfg, &countingData{HostData: NewHostData(pixels.NewBuffer(6, 8, 3)), closed: &c.closed}), nil
}

func (c *gatedCamera) Close() error { return nil }

type countingData struct {
	*HostData
	closed *atomic.Int32
}

func (d *countingData) Close() error {
	d.closed.Add(1)
	return d.HostData.Close()
}

func TestGrabber_Grab(t *testing.T) {
	cam := newGatedCamera()
	g := NewGrabber[*pixels.Buffer](cam)
	go func() { cam.release <- struct{}{} }()

	img, err := g.Grab(context.Background())
	require.NoError(t, err)
	assert.Same(t, cam.cfg, img.Config())
	assert.NoError(t, img.CheckResolution())
}

func TestGrabber_ContextEndsFirst(t *testing.T) {
	cam := newGatedCamera()
	g := NewGrabber[*pixels.Buffer](cam)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Grab(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned read completes later and its frame is dropped.
	cam.release <- struct{}{}
	assert.Eventually(t, func() bool { return cam.closed.Load() == 1 }, time.Second, 5*time.Millisecond)

	go func() { cam.release <- struct{}{} }()
	img, err := g.Grab(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, int32(2), cam.grabs.Load())
}
