package pixels

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutView_WriteVisibleEverywhere(t *testing.T) {
	buf := NewBuffer(480, 640, 3)

	mv, err := buf.MutView()
	require.NoError(t, err)
	mv.SetPixel(0, 0, 255, 0, 0)

	// through the native handle
	assert.Equal(t, uint8(255), buf.Sample(0, 0, 0))
	assert.Equal(t, uint8(0), buf.Sample(0, 0, 1))

	// through a freshly derived view
	v, err := buf.View()
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 0}, v.Pixel(0, 0))
}

func TestGuard_SingleWriter(t *testing.T) {
	buf := NewBuffer(2, 2, 3)

	a, err := buf.View()
	require.NoError(t, err)
	b, err := buf.View()
	require.NoError(t, err)
	assert.True(t, a.Valid())
	assert.True(t, b.Valid(), "shared views coexist")

	mv, err := buf.MutView()
	require.NoError(t, err)
	assert.False(t, a.Valid(), "mutable view revokes shared views")
	assert.False(t, b.Valid())
	assert.True(t, mv.Valid())

	assert.PanicsWithValue(t, ErrStaleView, func() { a.At(0, 0, 0) })

	c, err := buf.View()
	require.NoError(t, err)
	assert.False(t, mv.Valid(), "shared view revokes the mutable view")
	assert.True(t, c.Valid())

	buf.Revoke()
	assert.False(t, c.Valid())
	assert.Panics(t, func() { mv.Set(1, 0, 0, 0) })
}

func TestView_BoundsChecked(t *testing.T) {
	buf := NewBuffer(2, 3, 3)
	v, err := buf.View()
	require.NoError(t, err)

	assert.Panics(t, func() { v.At(2, 0, 0) })
	assert.Panics(t, func() { v.At(0, 3, 0) })
	assert.Panics(t, func() { v.At(0, 0, 3) })
	assert.Panics(t, func() { v.At(0, 0) })
	assert.NotPanics(t, func() { v.At(1, 2, 2) })
}

func TestView_PaddingIsSkipped(t *testing.T) {
	buf, err := NewPaddedBuffer(2, 2, 3, 8)
	require.NoError(t, err)

	raw := buf.Bytes()
	for i := range raw {
		raw[i] = 0xEE // padding marker
	}

	mv, err := buf.MutView()
	require.NoError(t, err)
	mv.Fill(1)

	assert.Equal(t, []byte{1, 1, 1, 1, 1, 1, 0xEE, 0xEE}, raw[:8])
	assert.False(t, mv.Contiguous())

	out := make([]byte, 12)
	assert.Equal(t, 12, mv.CopyTo(out))
	for _, s := range out {
		assert.Equal(t, uint8(1), s)
	}
}

func TestView_IndexSubView(t *testing.T) {
	buf := NewBuffer(3, 4, 3)
	mv, err := buf.MutView()
	require.NoError(t, err)

	row := mv.Index(0, 2)
	assert.Equal(t, []int{4, 3}, row.Shape())
	row.Set(42, 1, 2)
	assert.Equal(t, uint8(42), buf.Sample(2, 1, 2))

	ch := mv.Index(2, 1)
	assert.Equal(t, []int{3, 4}, ch.Shape())
	assert.Equal(t, []int{12, 3}, ch.Strides())
	assert.False(t, ch.Contiguous())
	assert.True(t, mv.Contiguous())
}

func TestFromImage_BGROrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, A: 255})

	buf := FromImage(img)
	v, err := buf.View()
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, v.Shape())
	assert.Equal(t, []uint8{30, 20, 10}, v.Pixel(0, 0))
	assert.Equal(t, []uint8{0, 0, 255}, v.Pixel(0, 1))
}

func TestBuffer_ToImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	out, err := FromImage(src).ToImage()
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.At(2, 1))

	gray := NewBuffer(2, 2, 0)
	gray.SetSample(1, 0, 0, 77)
	out, err = gray.ToImage()
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 77}, out.At(0, 1))

	_, err = NewBuffer(2, 2, 2).ToImage()
	assert.Error(t, err)
}
