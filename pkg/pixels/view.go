// Package pixels provides n-dimensional views of 8-bit pixel samples that
// alias native buffer memory, and the conversions between native buffer
// descriptors and views.
//
// Views never own memory. A view is valid only while the buffer it aliases
// is alive and has not issued a conflicting view (see Guard); using a revoked
// view panics with ErrStaleView.
package pixels

import (
	"fmt"
	"slices"
)

// View is a read-only, bounds-checked view of uint8 samples.
type View struct {
	data    []byte
	offset  int
	shape   []int
	strides []int
	lease   Lease
}

// Shape returns the extent of each axis, outermost first.
func (v View) Shape() []int { return slices.Clone(v.shape) }

// Strides returns the element stride of each axis.
func (v View) Strides() []int { return slices.Clone(v.strides) }

// Ndim returns the number of axes.
func (v View) Ndim() int { return len(v.shape) }

// Len returns the number of samples in the view.
func (v View) Len() int {
	if len(v.shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range v.shape {
		n *= s
	}
	return n
}

// Valid reports whether the view may still be used.
func (v View) Valid() bool { return v.lease.Valid() }

// At returns the sample at idx. It panics if the index is out of range or the
// view has been revoked.
func (v View) At(idx ...int) uint8 {
	return v.data[v.offsetOf(idx)]
}

// Pixel returns a copy of the samples at (row, col). For views without a
// channel axis the result has a single element.
func (v View) Pixel(row, col int) []uint8 {
	switch len(v.shape) {
	case 2:
		return []uint8{v.At(row, col)}
	case 3:
		out := make([]uint8, v.shape[2])
		base := v.offsetOf([]int{row, col, 0})
		for c := range out {
			out[c] = v.data[base+c*v.strides[2]]
		}
		return out
	default:
		panic(fmt.Sprintf("pixels: Pixel needs a 2-d or 3-d view, have %d-d", len(v.shape)))
	}
}

// Index returns the sub-view with axis fixed at i. The result has one axis
// fewer and shares the lease of v.
func (v View) Index(axis, i int) View {
	v.check()
	if axis < 0 || axis >= len(v.shape) {
		panic(fmt.Sprintf("pixels: axis %d out of range for %d-d view", axis, len(v.shape)))
	}
	if i < 0 || i >= v.shape[axis] {
		panic(fmt.Sprintf("pixels: index %d out of range [0:%d) on axis %d", i, v.shape[axis], axis))
	}
	return View{
		data:    v.data,
		offset:  v.offset + i*v.strides[axis],
		shape:   slices.Delete(slices.Clone(v.shape), axis, axis+1),
		strides: slices.Delete(slices.Clone(v.strides), axis, axis+1),
		lease:   v.lease,
	}
}

// Contiguous reports whether the samples are packed in row-major order with
// no gaps.
func (v View) Contiguous() bool {
	want := 1
	for i := len(v.shape) - 1; i >= 0; i-- {
		if v.shape[i] > 1 && v.strides[i] != want {
			return false
		}
		want *= v.shape[i]
	}
	return true
}

// CopyTo copies the samples into dst in packed row-major order and returns
// the number of samples copied.
func (v View) CopyTo(dst []byte) int {
	v.check()
	n := 0
	v.each(func(off int) bool {
		if n >= len(dst) {
			return false
		}
		dst[n] = v.data[off]
		n++
		return true
	})
	return n
}

// each calls fn with the data offset of every sample in row-major order
// until fn returns false.
func (v View) each(fn func(off int) bool) {
	if v.Len() == 0 {
		return
	}
	idx := make([]int, len(v.shape))
	off := v.offset
	for {
		if !fn(off) {
			return
		}
		axis := len(idx) - 1
		for ; axis >= 0; axis-- {
			idx[axis]++
			off += v.strides[axis]
			if idx[axis] < v.shape[axis] {
				break
			}
			off -= idx[axis] * v.strides[axis]
			idx[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}

func (v View) offsetOf(idx []int) int {
	v.check()
	if len(idx) != len(v.shape) {
		panic(fmt.Sprintf("pixels: %d indices for %d-d view", len(idx), len(v.shape)))
	}
	off := v.offset
	for axis, i := range idx {
		if i < 0 || i >= v.shape[axis] {
			panic(fmt.Sprintf("pixels: index %d out of range [0:%d) on axis %d", i, v.shape[axis], axis))
		}
		off += i * v.strides[axis]
	}
	return off
}

func (v View) check() {
	if !v.lease.Valid() {
		panic(ErrStaleView)
	}
}

// MutView is a View that also allows writing samples.
type MutView struct {
	View
}

// Set writes val at idx.
func (m MutView) Set(val uint8, idx ...int) {
	m.data[m.offsetOf(idx)] = val
}

// SetPixel writes the channel samples of (row, col). Extra samples are
// ignored; missing ones leave the channel untouched.
func (m MutView) SetPixel(row, col int, px ...uint8) {
	switch len(m.shape) {
	case 2:
		if len(px) > 0 {
			m.Set(px[0], row, col)
		}
	case 3:
		base := m.offsetOf([]int{row, col, 0})
		for c := 0; c < m.shape[2] && c < len(px); c++ {
			m.data[base+c*m.strides[2]] = px[c]
		}
	default:
		panic(fmt.Sprintf("pixels: SetPixel needs a 2-d or 3-d view, have %d-d", len(m.shape)))
	}
}

// Index returns the mutable sub-view with axis fixed at i.
func (m MutView) Index(axis, i int) MutView {
	return MutView{m.View.Index(axis, i)}
}

// Fill sets every sample to val.
func (m MutView) Fill(val uint8) {
	m.check()
	m.each(func(off int) bool {
		m.data[off] = val
		return true
	})
}
