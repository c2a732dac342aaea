package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// hostCamera produces blank host-memory frames.
type hostCamera struct {
	cfg      atomic.Pointer[vision.CameraConfig]
	inFlight atomic.Int32
	overlap  atomic.Bool
	closed   atomic.Bool
}

func newHostCamera(id uint8) *hostCamera {
	c := &hostCamera{}
	c.cfg.Store(&vision.CameraConfig{ID: id, Resolution: vision.Resolution{Width: 8, Height: 6}})
	return c
}

func (c *hostCamera) Config() *vision.CameraConfig { return c.cfg.Load() }

func (c *hostCamera) GrabFrame() (*vision.Image[*pixels.Buffer], error) {
	if c.inFlight.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	cfg := c.Config()
	buf := pixels.NewBuffer(cfg.Resolution.Height, cfg.Resolution.Width, 3)
	return vision.NewImage[*pixels.Buffer](time.Now(), cfg, vision.NewHostData(buf)), nil
}

func (c *hostCamera) Close() error {
	c.closed.Store(true)
	return nil
}

// exposureCamera adds exposure control.
type exposureCamera struct {
	*hostCamera
	value int32
}

func (c *exposureCamera) Exposure() (int32, error) { return c.value, nil }

func (c *exposureCamera) SetExposure(v int32) error {
	c.value = v
	return nil
}

func fakeEncode(img *vision.Image[*pixels.Buffer], quality int) ([]byte, error) {
	return []byte(fmt.Sprintf("%s@%d", img.Config().Resolution, quality)), nil
}

func TestManager_Registry(t *testing.T) {
	m := NewManager[*pixels.Buffer](fakeEncode)
	c2, c0 := newHostCamera(2), newHostCamera(0)
	require.NoError(t, m.Add(c2))
	require.NoError(t, m.Add(c0))
	assert.ErrorIs(t, m.Add(newHostCamera(2)), ErrDuplicateCamera)

	assert.Equal(t, []uint8{0, 2}, m.IDs())

	cfg, err := m.Config(2)
	require.NoError(t, err)
	assert.Same(t, c2.Config(), cfg)

	_, err = m.Config(7)
	assert.ErrorIs(t, err, ErrUnknownCamera)

	require.NoError(t, m.Remove(2))
	assert.True(t, c2.closed.Load())
	assert.ErrorIs(t, m.Remove(2), ErrUnknownCamera)

	require.NoError(t, m.Close())
	assert.True(t, c0.closed.Load())
	assert.Empty(t, m.IDs())
}

func TestManager_SerialisesGrabs(t *testing.T) {
	m := NewManager[*pixels.Buffer](fakeEncode)
	cam := newHostCamera(1)
	require.NoError(t, m.Add(cam))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := m.Grab(context.Background(), 1)
			if assert.NoError(t, err) {
				img.Close()
			}
		}()
	}
	wg.Wait()
	assert.False(t, cam.overlap.Load(), "GrabFrame calls overlapped")
}

func TestManager_Snapshot(t *testing.T) {
	m := NewManager[*pixels.Buffer](fakeEncode)
	require.NoError(t, m.Add(newHostCamera(1)))

	b, err := m.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "8x6@85", string(b))

	require.NoError(t, m.UpdateStreamConfig(map[string]interface{}{"quality": float64(40)}))
	b, err = m.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "8x6@40", string(b))

	_, err = m.Snapshot(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUnknownCamera)
}

func TestManager_Exposure(t *testing.T) {
	m := NewManager[*pixels.Buffer](fakeEncode)
	require.NoError(t, m.Add(&exposureCamera{hostCamera: newHostCamera(1), value: 30}))
	require.NoError(t, m.Add(newHostCamera(2)))

	v, err := m.Exposure(1)
	require.NoError(t, err)
	assert.Equal(t, int32(30), v)
	require.NoError(t, m.SetExposure(1, 60))
	v, err = m.Exposure(1)
	require.NoError(t, err)
	assert.Equal(t, int32(60), v)

	_, err = m.Exposure(2)
	assert.ErrorIs(t, err, vision.ErrUnsupportedControl)
}

func TestManager_StreamConfig(t *testing.T) {
	m := NewManager[*pixels.Buffer](fakeEncode)
	var notified StreamConfig
	m.OnStreamChange = func(cfg StreamConfig) { notified = cfg }

	tests := []struct {
		name    string
		params  map[string]interface{}
		wantErr bool
	}{
		{"framerate", map[string]interface{}{"framerate": 30}, false},
		{"quality as float", map[string]interface{}{"quality": 70.0}, false},
		{"quality out of range", map[string]interface{}{"quality": 0}, true},
		{"unknown key", map[string]interface{}{"zoom": 2}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := m.UpdateStreamConfig(tc.params)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Equal(t, StreamConfig{Framerate: 30, Quality: 70}, m.GetStreamConfig())
	assert.Equal(t, m.GetStreamConfig(), notified)
}

func TestManager_GrabHonoursContext(t *testing.T) {
	m := NewManager[*pixels.Buffer](fakeEncode)
	require.NoError(t, m.Add(newHostCamera(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 5 {
		img, err := m.Grab(ctx, 1)
		if err == nil {
			img.Close()
			continue
		}
		assert.True(t, errors.Is(err, context.Canceled))
	}
}
