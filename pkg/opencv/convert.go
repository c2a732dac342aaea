package opencv

import (
	"image"
	"unsafe"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
)

// maxChannels is OpenCV's CV_CN_MAX.
const maxChannels = 512

// matType8U returns the 8-bit Mat type with cn channels (CV_8UC(cn)).
func matType8U(cn int) gocv.MatType {
	return gocv.MatType(int(gocv.MatTypeCV8U) + (cn-1)<<3)
}

// MatLayout describes the memory of an 8-bit Mat. Two-dimensional Mats keep
// their row step, so ROI and other padded Mats are described exactly.
func MatLayout(m *gocv.Mat) (pixels.Layout, error) {
	const op = "mat_to_view"
	if m.Empty() {
		return pixels.Layout{}, &pixels.ShapeError{Op: op, Reason: "empty mat"}
	}
	if depth := int(m.Type()) & 7; depth != int(gocv.MatTypeCV8U) {
		return pixels.Layout{}, &pixels.ShapeError{Op: op, Shape: m.Size(), Reason: "mat depth is not 8-bit unsigned"}
	}

	cn := m.Channels()
	sizes := m.Size()
	if len(sizes) == 2 {
		return pixels.Layout{
			Sizes:    sizes,
			Steps:    []int{m.Step(), cn},
			Channels: cn,
		}, nil
	}

	// Higher dimensional Mats are only supported when continuous, where the
	// steps follow from the sizes.
	if !m.IsContinuous() {
		return pixels.Layout{}, &pixels.ShapeError{Op: op, Shape: sizes, Reason: "non-continuous n-dimensional mat"}
	}
	steps := make([]int, len(sizes))
	step := cn
	for i := len(sizes) - 1; i >= 0; i-- {
		steps[i] = step
		step *= sizes[i]
	}
	return pixels.Layout{Sizes: sizes, Steps: steps, Channels: cn}, nil
}

// matBytes returns the memory of m as a byte slice covering extent bytes
// from the first sample.
func matBytes(m *gocv.Mat, extent int) ([]byte, error) {
	if m.IsContinuous() {
		b, err := m.DataPtrUint8()
		if err != nil {
			return nil, err
		}
		return b[:extent], nil
	}

	// DataPtrUint8 refuses non-continuous Mats. A single row always is
	// continuous and starts at the first sample; the remaining rows follow
	// at the Mat's step.
	row := m.RowRange(0, 1)
	defer row.Close()
	b, err := row.DataPtrUint8()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, &pixels.ShapeError{Op: "mat_to_view", Shape: m.Size(), Reason: "mat has no data"}
	}
	return unsafe.Slice(&b[0], extent), nil
}

// MatView returns a read-only view of m's samples with shape
// (rows, cols, channels). Nothing is copied. The view must not outlive m.
func MatView(m *gocv.Mat, lease pixels.Lease) (pixels.View, error) {
	l, err := MatLayout(m)
	if err != nil {
		return pixels.View{}, err
	}
	data, err := matBytes(m, l.Extent())
	if err != nil {
		return pixels.View{}, err
	}
	return pixels.FromNative(data, l, lease)
}

// MatViewMut is MatView for writing.
func MatViewMut(m *gocv.Mat, lease pixels.Lease) (pixels.MutView, error) {
	v, err := MatView(m, lease)
	return pixels.MutView{View: v}, err
}

// ViewMat returns a Mat header over the memory v aliases. When channels > 0
// the trailing axis of v must hold that many unit-stride samples. Padded
// rows are preserved, so a view of an ROI maps back onto the same bytes.
//
// The returned Mat does not own its memory: the caller closes it and keeps
// the view's backing memory alive until then.
func ViewMat(v pixels.View, channels int) (gocv.Mat, error) {
	const op = "view_to_native"
	l, data, err := pixels.ToNative(v, channels)
	if err != nil {
		return gocv.Mat{}, err
	}
	cn := max(channels, 1)
	if cn > maxChannels {
		return gocv.Mat{}, &pixels.ShapeError{Op: op, Shape: v.Shape(), Reason: "too many channels for a mat"}
	}
	mt := matType8U(cn)

	if len(l.Sizes) > 2 {
		if l.Extent() != packedExtent(l) {
			return gocv.Mat{}, &pixels.ShapeError{Op: op, Shape: v.Shape(), Reason: "n-dimensional view is not contiguous"}
		}
		return gocv.NewMatWithSizesFromBytes(l.Sizes, mt, data)
	}

	rows, cols, step := l.Sizes[0], l.Sizes[1], l.Steps[0]
	rowBytes := cols * cn
	if step == rowBytes || rows == 1 {
		return gocv.NewMatFromBytes(rows, cols, mt, data)
	}

	// Padded rows: describe the whole stride as a wide single-channel Mat,
	// cut the pixel columns out with Region and restore the channels. The
	// slice handed over never grows past the view's allocation; when the
	// final row's padding lies outside it, the wide header still names that
	// padding but only the region is ever addressed.
	wide, err := gocv.NewMatFromBytes(rows, step, gocv.MatTypeCV8UC1, wideRows(data, rows*step))
	if err != nil {
		return gocv.Mat{}, err
	}
	defer wide.Close()
	roi := wide.Region(image.Rect(0, 0, rowBytes, rows))
	defer roi.Close()
	return roi.Reshape(cn, 0), nil
}

// wideRows returns data extended to n bytes when its capacity allows it,
// and data unchanged otherwise.
func wideRows(data []byte, n int) []byte {
	if cap(data) >= n {
		return data[:n]
	}
	return data
}

func packedExtent(l pixels.Layout) int {
	n := l.ElemSize()
	for _, s := range l.Sizes {
		n *= s
	}
	return n
}
