package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New(t.Name())
	go h.Run()
	t.Cleanup(h.Stop)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h
}

// join registers a viewer without a websocket connection.
func join(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan Message, sendBuffer)}
	h.register <- c
	return c
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case m, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := startHub(t)
	a, b := join(h), join(h)
	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	h.BroadcastFrame([]byte{0xff, 0xd8})
	for _, c := range []*Client{a, b} {
		m := recv(t, c)
		assert.Equal(t, FrameMessage, m.Type)
		assert.Equal(t, []byte{0xff, 0xd8}, m.Data)
	}

	require.NoError(t, h.BroadcastJSON(StreamError{Camera: 1, Error: "gone"}))
	m := recv(t, a)
	assert.Equal(t, JSONMessage, m.Type)
	assert.JSONEq(t, `{"camera":1,"error":"gone"}`, string(m.Data))

	h.unregister <- a
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
	_, ok := <-a.send
	assert.False(t, ok)
}

func TestHub_SlowClientSkipsFrames(t *testing.T) {
	h := startHub(t)
	c := join(h)

	for i := range sendBuffer + 2 {
		h.BroadcastFrame([]byte{byte(i)})
	}
	assert.Eventually(t, func() bool { return h.Dropped() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.ClientCount(), "slow clients stay connected")

	for i := range sendBuffer {
		assert.Equal(t, []byte{byte(i)}, recv(t, c).Data)
	}
}

func TestHub_Stop(t *testing.T) {
	h := startHub(t)
	c, d := join(h), join(h)

	h.Stop()
	h.Stop()
	for _, v := range []*Client{c, d} {
		_, ok := <-v.send
		assert.False(t, ok)
	}
	assert.Zero(t, h.ClientCount())
	assert.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)

	late := NewClient(h, nil)
	_, ok := <-late.send
	assert.False(t, ok, "clients of a stopped hub are closed at once")
}

type fakeSource struct {
	calls atomic.Int32
	err   func(n int32) error
}

func (s *fakeSource) Frame(ctx context.Context) ([]byte, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		if err := s.err(n); err != nil {
			return nil, err
		}
	}
	return []byte{byte(n)}, nil
}

func (s *fakeSource) Framerate() int { return 200 }

func TestStream_IdleWithoutClients(t *testing.T) {
	h := startHub(t)
	src := &fakeSource{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, h.Stream(ctx, 0, src))
	assert.Zero(t, src.calls.Load())
}

func TestStream_SkipsReadFailures(t *testing.T) {
	h := startHub(t)
	c := join(h)
	src := &fakeSource{err: func(n int32) error {
		if n%2 == 1 {
			return &vision.CaptureError{Kind: vision.ErrReadFailed}
		}
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Stream(ctx, 3, src) }()

	m := recv(t, c)
	assert.Equal(t, FrameMessage, m.Type)
	assert.Equal(t, byte(0), m.Data[0]%2, "only successful grabs are sent")

	cancel()
	assert.NoError(t, <-done)
}

func TestStream_StopsOnDeviceFailure(t *testing.T) {
	h := startHub(t)
	c := join(h)
	src := &fakeSource{err: func(int32) error {
		return &vision.CaptureError{Kind: vision.ErrDeviceUnavailable, Err: errors.New("unplugged")}
	}}

	err := h.Stream(context.Background(), 2, src)
	assert.ErrorIs(t, err, vision.ErrDeviceUnavailable)

	m := recv(t, c)
	require.Equal(t, JSONMessage, m.Type)
	var se StreamError
	require.NoError(t, json.Unmarshal(m.Data, &se))
	assert.Equal(t, uint8(2), se.Camera)
	assert.Contains(t, se.Error, "unplugged")
}
