package pixels

import (
	"image"
	"slices"
)

// Buffer is a host-memory pixel buffer: a byte slice plus the Layout that
// describes it. It is the native handle for images that do not live in
// OpenCV memory.
//
// Buffer must be used through a pointer; its Guard tracks the views it has
// handed out.
type Buffer struct {
	data   []byte
	layout Layout
	guard  Guard
}

// NewBuffer allocates a zeroed, packed rows x cols x channels buffer.
func NewBuffer(rows, cols, channels int) *Buffer {
	l := Packed(rows, cols, channels)
	return &Buffer{data: make([]byte, rows*l.Steps[0]), layout: l}
}

// NewPaddedBuffer allocates a zeroed buffer whose rows are rowStride bytes
// apart. rowStride must be at least cols*channels.
func NewPaddedBuffer(rows, cols, channels, rowStride int) (*Buffer, error) {
	l := Padded(rows, cols, channels, rowStride)
	if err := l.validate("new_buffer"); err != nil {
		return nil, err
	}
	return &Buffer{data: make([]byte, rows*rowStride), layout: l}, nil
}

// WrapBuffer returns a Buffer that aliases data with the given layout.
// Nothing is copied; writes through either side are visible to the other.
func WrapBuffer(data []byte, l Layout) (*Buffer, error) {
	if err := l.validate("wrap_buffer"); err != nil {
		return nil, err
	}
	if n := l.Extent(); len(data) < n {
		return nil, shapeErr("wrap_buffer", l.Sizes, "buffer holds %d bytes, layout spans %d", len(data), n)
	}
	return &Buffer{data: data, layout: cloneLayout(l)}, nil
}

// FromImage copies img into a new packed 3-channel buffer in BGR order, the
// sample order OpenCV uses for colour images.
func FromImage(img image.Image) *Buffer {
	r := img.Bounds()
	b := NewBuffer(r.Dy(), r.Dx(), 3)
	stride := b.layout.Steps[0]
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := b.data[(y-r.Min.Y)*stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			i := (x - r.Min.X) * 3
			row[i], row[i+1], row[i+2] = uint8(cb>>8), uint8(cg>>8), uint8(cr>>8)
		}
	}
	return b
}

// ToImage copies the buffer into a standard library image. One channel maps
// to Gray, three to BGR and four to BGRA; other counts are an error.
func (b *Buffer) ToImage() (image.Image, error) {
	if len(b.layout.Sizes) != 2 {
		return nil, shapeErr("to_image", b.layout.Sizes, "need a 2-d buffer")
	}
	rows, cols, ch := b.Rows(), b.Cols(), b.Channels()
	rect := image.Rect(0, 0, cols, rows)
	switch ch {
	case 0, 1:
		img := image.NewGray(rect)
		for y := range rows {
			for x := range cols {
				img.Pix[y*img.Stride+x] = b.Sample(y, x, 0)
			}
		}
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(rect)
		for y := range rows {
			for x := range cols {
				p := img.Pix[y*img.Stride+x*4:]
				p[0], p[1], p[2], p[3] = b.Sample(y, x, 2), b.Sample(y, x, 1), b.Sample(y, x, 0), 255
				if ch == 4 {
					p[3] = b.Sample(y, x, 3)
				}
			}
		}
		return img, nil
	}
	return nil, shapeErr("to_image", b.layout.Sizes, "no image type for %d channels", ch)
}

// Layout returns a copy of the buffer's layout.
func (b *Buffer) Layout() Layout { return cloneLayout(b.layout) }

// Bytes returns the backing memory. It is the raw handle to pass to code
// that understands the layout; it is not a copy.
func (b *Buffer) Bytes() []byte { return b.data }

// Rows returns the number of rows.
func (b *Buffer) Rows() int { return b.layout.Rows() }

// Cols returns the number of columns.
func (b *Buffer) Cols() int { return b.layout.Cols() }

// Channels returns the number of channels (0 for single-channel without a channel axis).
func (b *Buffer) Channels() int { return b.layout.Channels }

// RowStride returns the byte distance between rows.
func (b *Buffer) RowStride() int { return b.layout.RowStride() }

// View returns a read-only view over the buffer. Any outstanding mutable
// view is revoked.
func (b *Buffer) View() (View, error) {
	return FromNative(b.data, b.layout, b.guard.Shared())
}

// MutView returns a mutable view over the buffer and revokes every view
// handed out earlier.
func (b *Buffer) MutView() (MutView, error) {
	v, err := FromNative(b.data, b.layout, b.guard.Exclusive())
	return MutView{v}, err
}

// Share revokes an outstanding mutable view. Read-only views stay valid.
func (b *Buffer) Share() { b.guard.Shared() }

// Revoke invalidates every view handed out so far.
func (b *Buffer) Revoke() { b.guard.Revoke() }

// Sample reads the sample at (row, col, ch) directly from the backing
// memory using the native layout. ch is ignored for buffers without channels.
func (b *Buffer) Sample(row, col, ch int) uint8 {
	return b.data[b.sampleOffset(row, col, ch)]
}

// SetSample writes the sample at (row, col, ch) directly into the backing
// memory.
func (b *Buffer) SetSample(row, col, ch int, v uint8) {
	b.data[b.sampleOffset(row, col, ch)] = v
}

func (b *Buffer) sampleOffset(row, col, ch int) int {
	if len(b.layout.Sizes) != 2 {
		panic("pixels: Sample needs a 2-d buffer")
	}
	if row < 0 || row >= b.layout.Sizes[0] || col < 0 || col >= b.layout.Sizes[1] || ch < 0 || ch >= b.layout.ElemSize() {
		panic("pixels: sample index out of range")
	}
	return row*b.layout.Steps[0] + col*b.layout.Steps[1] + ch
}

func cloneLayout(l Layout) Layout {
	return Layout{Sizes: slices.Clone(l.Sizes), Steps: slices.Clone(l.Steps), Channels: l.Channels}
}
