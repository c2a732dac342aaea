package pixels

import "slices"

// Layout describes how a native row-major buffer arranges its samples.
type Layout struct {
	// Sizes is the extent of each spatial dimension, outermost first
	// (rows, cols for an image).
	Sizes []int

	// Steps is the byte stride of each spatial dimension. Steps[0] is the
	// row stride and may exceed the packed row size when rows are padded.
	Steps []int

	// Channels is the number of interleaved samples per element. Zero means
	// single-channel with no trailing channel axis.
	Channels int
}

// Packed returns the layout of a gap-free rows x cols x channels buffer.
func Packed(rows, cols, channels int) Layout {
	elem := max(channels, 1)
	return Layout{
		Sizes:    []int{rows, cols},
		Steps:    []int{cols * elem, elem},
		Channels: channels,
	}
}

// Padded returns the layout of a rows x cols x channels buffer whose rows
// start rowStride bytes apart.
func Padded(rows, cols, channels, rowStride int) Layout {
	l := Packed(rows, cols, channels)
	l.Steps[0] = rowStride
	return l
}

// ElemSize returns the bytes per element (one sample per channel).
func (l Layout) ElemSize() int { return max(l.Channels, 1) }

// Rows returns the extent of the outermost dimension.
func (l Layout) Rows() int {
	if len(l.Sizes) == 0 {
		return 0
	}
	return l.Sizes[0]
}

// Cols returns the extent of the second dimension, or 1 for 1-d layouts.
func (l Layout) Cols() int {
	if len(l.Sizes) < 2 {
		return 1
	}
	return l.Sizes[1]
}

// RowStride returns the byte stride of the outermost dimension.
func (l Layout) RowStride() int {
	if len(l.Steps) == 0 {
		return 0
	}
	return l.Steps[0]
}

// Extent returns the number of bytes spanned from the first to the last
// sample, inclusive. Trailing padding after the last row is not counted.
func (l Layout) Extent() int {
	if len(l.Sizes) == 0 {
		return 0
	}
	n := l.ElemSize()
	for i, s := range l.Sizes {
		if s == 0 {
			return 0
		}
		n += (s - 1) * l.Steps[i]
	}
	return n
}

// Equal reports whether both layouts describe the same geometry.
func (l Layout) Equal(o Layout) bool {
	return l.Channels == o.Channels && slices.Equal(l.Sizes, o.Sizes) && slices.Equal(l.Steps, o.Steps)
}

// Validate checks that the layout is a consistent row-major description.
func (l Layout) Validate() error { return l.validate("layout") }

func (l Layout) validate(op string) error {
	if len(l.Sizes) == 0 {
		return shapeErr(op, nil, "buffer reports zero dimensions")
	}
	if len(l.Steps) != len(l.Sizes) {
		return shapeErr(op, l.Sizes, "%d steps for %d dimensions", len(l.Steps), len(l.Sizes))
	}
	if l.Channels < 0 {
		return shapeErr(op, l.Sizes, "negative channel count %d", l.Channels)
	}
	for axis, s := range l.Sizes {
		if s < 0 {
			return shapeErr(op, l.Sizes, "negative extent on axis %d", axis)
		}
	}
	last := len(l.Sizes) - 1
	if l.Steps[last] != l.ElemSize() {
		return shapeErr(op, l.Sizes, "innermost step %d does not match element size %d", l.Steps[last], l.ElemSize())
	}
	for axis := last - 1; axis >= 0; axis-- {
		if inner := l.Sizes[axis+1] * l.Steps[axis+1]; l.Steps[axis] < inner {
			return shapeErr(op, l.Sizes, "step %d on axis %d is smaller than the %d bytes of axis %d", l.Steps[axis], axis, inner, axis+1)
		}
	}
	return nil
}

// FromNative builds a view over data described by l, without copying.
// When l.Channels > 0 the channel count becomes the trailing axis with unit
// stride; the spatial strides are taken from l.Steps as is.
//
// The view is only valid while data stays alive and lease is not revoked.
func FromNative(data []byte, l Layout, lease Lease) (View, error) {
	const op = "native_to_view"
	if err := l.validate(op); err != nil {
		return View{}, err
	}
	if n := l.Extent(); len(data) < n {
		return View{}, shapeErr(op, l.Sizes, "buffer holds %d bytes, layout spans %d", len(data), n)
	}

	shape := slices.Clone(l.Sizes)
	strides := slices.Clone(l.Steps)
	if l.Channels > 0 {
		shape = append(shape, l.Channels)
		strides = append(strides, 1)
	}
	return View{data: data, shape: shape, strides: strides, lease: lease}, nil
}

// ToNative is the inverse of FromNative: it returns the native layout of v
// and the bytes v aliases. When channels > 0 the trailing axis of v must have
// exactly that extent and unit stride; it is folded back into the elements.
//
// The returned slice aliases the view's memory. The caller must keep that
// memory alive for as long as the native descriptor is in use.
func ToNative(v View, channels int) (Layout, []byte, error) {
	const op = "view_to_native"
	v.check()
	if len(v.shape) < 2 {
		return Layout{}, nil, shapeErr(op, v.shape, "need at least 2 dimensions, have %d", len(v.shape))
	}
	if channels < 0 {
		return Layout{}, nil, shapeErr(op, v.shape, "negative channel count %d", channels)
	}

	spatial := len(v.shape)
	if channels > 0 {
		last := spatial - 1
		if v.shape[last] != channels {
			return Layout{}, nil, shapeErr(op, v.shape, "trailing axis has %d samples, want %d channels", v.shape[last], channels)
		}
		if v.strides[last] != 1 {
			return Layout{}, nil, shapeErr(op, v.shape, "channel axis stride %d is not 1", v.strides[last])
		}
		spatial = last
	}

	l := Layout{
		Sizes:    slices.Clone(v.shape[:spatial]),
		Steps:    slices.Clone(v.strides[:spatial]),
		Channels: channels,
	}
	if err := l.validate(op); err != nil {
		return Layout{}, nil, err
	}
	end := v.offset + l.Extent()
	return l, v.data[v.offset:end:end], nil
}
