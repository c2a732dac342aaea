// Package calib models checkerboard camera calibration: the board geometry,
// the point correspondences collected from images, and the contract of the
// solver that turns them into intrinsics. The numerical work is done by an
// external solver (see the opencv package).
package calib

import (
	"errors"
	"fmt"
	"image"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// MinImages is the minimum number of images with a detected board needed
// for calibration.
const MinImages = 3

var (
	// ErrTooFewImages is returned when fewer than MinImages views are usable.
	ErrTooFewImages = errors.New("calib: insufficient images with a detected board")

	// ErrSizeMismatch is returned when the images differ in size.
	ErrSizeMismatch = errors.New("calib: images differ in size")
)

// Point3 is a board-space point in metres.
type Point3 struct {
	X, Y, Z float32
}

// Board is a checkerboard described by its number of squares. Corner
// detection looks for the (Cols-1) x (Rows-1) inner corners.
type Board struct {
	Rows         int
	Cols         int
	SquareSizeMM float64
}

// Validate checks that the board has at least 2x2 inner corners and a
// positive square size.
func (b Board) Validate() error {
	if b.Rows < 3 || b.Cols < 3 {
		return fmt.Errorf("calib: board must have at least 3x3 squares, got %dx%d", b.Cols, b.Rows)
	}
	if b.SquareSizeMM <= 0 {
		return fmt.Errorf("calib: square size must be positive, got %v", b.SquareSizeMM)
	}
	return nil
}

// PatternSize is the inner corner grid as (columns, rows).
func (b Board) PatternSize() image.Point {
	return image.Pt(b.Cols-1, b.Rows-1)
}

// ObjectPoints returns the inner corners in board space, column by column.
func (b Board) ObjectPoints() []Point3 {
	size := b.PatternSize()
	sq := float32(b.SquareSizeMM / 1000)
	pts := make([]Point3, 0, size.X*size.Y)
	for col := range size.X {
		for row := range size.Y {
			pts = append(pts, Point3{X: sq * float32(col), Y: sq * float32(row)})
		}
	}
	return pts
}

// FixedPointIndex is the object point held fixed by solvers that refine
// the board geometry: the top-right inner corner.
func (b Board) FixedPointIndex() int {
	size := b.PatternSize()
	return size.X*size.Y - 2
}

// Correspondences are the detected image corners of a board across a set of
// images of one camera.
type Correspondences struct {
	Board     Board
	ImageSize vision.Resolution

	// Views holds, per image, the detected corners in the order returned
	// by the detector.
	Views [][]vision.Point
}

// Add appends the corners detected in one image of the given size.
func (c *Correspondences) Add(size vision.Resolution, corners []vision.Point) error {
	if c.ImageSize == (vision.Resolution{}) {
		c.ImageSize = size
	} else if size != c.ImageSize {
		return fmt.Errorf("%w: %s, expected %s", ErrSizeMismatch, size, c.ImageSize)
	}
	want := c.Board.PatternSize()
	if len(corners) != want.X*want.Y {
		return fmt.Errorf("calib: detected %d corners, board has %d", len(corners), want.X*want.Y)
	}
	c.Views = append(c.Views, corners)
	return nil
}

// Validate checks that there are enough consistent views to solve.
func (c *Correspondences) Validate() error {
	if err := c.Board.Validate(); err != nil {
		return err
	}
	if len(c.Views) < MinImages {
		return fmt.Errorf("%w: have %d, need %d", ErrTooFewImages, len(c.Views), MinImages)
	}
	if c.ImageSize.Width <= 0 || c.ImageSize.Height <= 0 {
		return fmt.Errorf("calib: invalid image size %s", c.ImageSize)
	}
	return nil
}

// Result is the output of a solver.
type Result struct {
	// Intrinsics is the 3x3 camera matrix.
	Intrinsics vision.Array

	// Distortion holds vision.DistortionLen coefficients.
	Distortion vision.Array

	// ReprojectionError is the RMS error in pixels.
	ReprojectionError float64

	ImageSize vision.Resolution
}

// Validate checks the result's shapes.
func (r Result) Validate() error {
	if !r.Intrinsics.HasShape(3, 3) || len(r.Intrinsics.Data) != 9 {
		return fmt.Errorf("calib: intrinsics have shape %v, want [3 3]", r.Intrinsics.Dim)
	}
	if !r.Distortion.HasShape(vision.DistortionLen) || len(r.Distortion.Data) != vision.DistortionLen {
		return fmt.Errorf("calib: distortion has shape %v, want [%d]", r.Distortion.Dim, vision.DistortionLen)
	}
	return nil
}

// Apply returns a copy of cfg carrying the result. A nil cfg starts from
// the zero config. The calibrated image size becomes the resolution.
func (r Result) Apply(cfg *vision.CameraConfig) *vision.CameraConfig {
	var out *vision.CameraConfig
	if cfg == nil {
		out = &vision.CameraConfig{}
	} else {
		out = cfg.Clone()
	}
	out.IntrinsicMatrix = r.Intrinsics.Clone()
	out.DistortionCoeffs = r.Distortion.Clone()
	if r.ImageSize.Width > 0 && r.ImageSize.Height > 0 {
		out.Resolution = r.ImageSize
	}
	return out
}

// Solver computes intrinsics from correspondences.
type Solver interface {
	Solve(c *Correspondences) (Result, error)
}
