package opencv

import (
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/pkg/pixels"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// MatData is ImageData backed by a gocv.Mat. It is what the OpenCV camera
// and Load produce.
type MatData struct {
	mat   gocv.Mat
	keep  pixels.View // memory aliased by mat when it was built from a view
	guard pixels.Guard
}

var _ vision.ImageData[*gocv.Mat] = (*MatData)(nil)

// NewMatData takes ownership of m.
func NewMatData(m gocv.Mat) *MatData {
	return &MatData{mat: m}
}

// MatDataFromView wraps the memory of v in a Mat without copying. v must
// stay valid for the lifetime of the returned MatData.
func MatDataFromView(v pixels.View, channels int) (*MatData, error) {
	m, err := ViewMat(v, channels)
	if err != nil {
		return nil, err
	}
	return &MatData{mat: m, keep: v}, nil
}

// Pixels implements vision.ImageData.
func (d *MatData) Pixels() (pixels.View, error) {
	return MatView(&d.mat, d.guard.Shared())
}

// PixelsMut implements vision.ImageData.
func (d *MatData) PixelsMut() (pixels.MutView, error) {
	return MatViewMut(&d.mat, d.guard.Exclusive())
}

// Raw implements vision.ImageData. The Mat must not be written to; an
// outstanding mutable view is revoked.
func (d *MatData) Raw() *gocv.Mat {
	d.guard.Shared()
	return &d.mat
}

// RawMut implements vision.ImageData. Views handed out earlier are revoked,
// since native code may reallocate the Mat.
func (d *MatData) RawMut() *gocv.Mat {
	d.guard.Revoke()
	return &d.mat
}

// Close revokes all views and releases the Mat.
func (d *MatData) Close() error {
	d.guard.Revoke()
	d.keep = pixels.View{}
	return d.mat.Close()
}
