package vision

import (
	"image"
	"io"

	// Register the standard decoders for DecodeHostData.
	_ "image/jpeg"
	_ "image/png"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
)

// HostData is ImageData backed by a host-memory pixels.Buffer.
type HostData struct {
	buf *pixels.Buffer
}

// NewHostData wraps buf. HostData takes ownership of the buffer.
func NewHostData(buf *pixels.Buffer) *HostData {
	return &HostData{buf: buf}
}

// DecodeHostData decodes a PNG or JPEG stream into 3-channel BGR host storage.
func DecodeHostData(r io.Reader) (*HostData, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return NewHostData(pixels.FromImage(img)), nil
}

// Pixels implements ImageData.
func (h *HostData) Pixels() (pixels.View, error) { return h.buf.View() }

// PixelsMut implements ImageData.
func (h *HostData) PixelsMut() (pixels.MutView, error) { return h.buf.MutView() }

// Raw implements ImageData. An outstanding mutable view is revoked.
func (h *HostData) Raw() *pixels.Buffer {
	h.buf.Share()
	return h.buf
}

// RawMut implements ImageData. Views handed out earlier are revoked.
func (h *HostData) RawMut() *pixels.Buffer {
	h.buf.Revoke()
	return h.buf
}

// Close implements ImageData. The memory itself is left to the garbage collector.
func (h *HostData) Close() error {
	h.buf.Revoke()
	return nil
}
