package opencv

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-stdvis/pkg/calib"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// DefaultChessboardFlags suit boards with the orientation markers of the
// printed calibration targets.
const DefaultChessboardFlags = gocv.CalibCBNormalizeImage | gocv.CalibCBExhaustive |
	gocv.CalibCBAccuracy | gocv.CalibCBMarker | gocv.CalibCBLarger

// ChessboardDetector finds the inner corners of a calibration board.
type ChessboardDetector struct {
	Board calib.Board

	// Flags for FindChessboardCornersSB. Zero means DefaultChessboardFlags.
	Flags gocv.CalibCBFlag
}

// Detect returns the corners found in img and whether the whole board was
// found. The corners are returned even when the board was only partly found,
// so they can be drawn for debugging.
func (d ChessboardDetector) Detect(img *gocv.Mat) ([]vision.Point, bool, error) {
	if img.Empty() {
		return nil, false, fmt.Errorf("opencv: empty image")
	}
	corners := gocv.NewMat()
	defer corners.Close()

	flags := d.Flags
	if flags == 0 {
		flags = DefaultChessboardFlags
	}
	found := gocv.FindChessboardCornersSB(*img, d.Board.PatternSize(), &corners, flags)

	pts := make([]vision.Point, 0, corners.Rows())
	for i := range corners.Rows() {
		v := corners.GetVecfAt(i, 0)
		pts = append(pts, vision.Point{X: v[0], Y: v[1]})
	}
	return pts, found, nil
}

// DrawCorners draws detected corners onto img.
func (d ChessboardDetector) DrawCorners(img *gocv.Mat, corners []vision.Point, found bool) error {
	if len(corners) == 0 {
		return nil
	}
	m, err := pointsMat(corners)
	if err != nil {
		return err
	}
	defer m.Close()
	gocv.DrawChessboardCorners(img, d.Board.PatternSize(), m, found)
	return nil
}

// pointsMat packs points into an N x 1 CV_32FC2 Mat, the layout the
// detector returns corners in.
func pointsMat(pts []vision.Point) (gocv.Mat, error) {
	buf := make([]byte, 0, len(pts)*8)
	for _, p := range pts {
		buf = binary.NativeEndian.AppendUint32(buf, math.Float32bits(p.X))
		buf = binary.NativeEndian.AppendUint32(buf, math.Float32bits(p.Y))
	}
	return gocv.NewMatFromBytes(len(pts), 1, gocv.MatTypeCV32FC2, buf)
}

func point2fVector(pts []vision.Point) gocv.Point2fVector {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: p.X, Y: p.Y}
	}
	return gocv.NewPoint2fVectorFromPoints(out)
}

// Solver runs OpenCV's camera calibration.
type Solver struct{}

var _ calib.Solver = Solver{}

// Solve implements calib.Solver.
func (Solver) Solve(c *calib.Correspondences) (calib.Result, error) {
	if err := c.Validate(); err != nil {
		return calib.Result{}, err
	}

	obj := make([]gocv.Point3f, 0, len(c.Board.ObjectPoints()))
	for _, p := range c.Board.ObjectPoints() {
		obj = append(obj, gocv.Point3f{X: p.X, Y: p.Y, Z: p.Z})
	}

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()
	for _, view := range c.Views {
		ov := gocv.NewPoint3fVectorFromPoints(obj)
		objectPoints.Append(ov)
		ov.Close()

		iv := point2fVector(view)
		imagePoints.Append(iv)
		iv.Close()
	}

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	size := image.Pt(c.ImageSize.Width, c.ImageSize.Height)
	rms := gocv.CalibrateCamera(objectPoints, imagePoints, size, &cameraMatrix, &distCoeffs, &rvecs, &tvecs, 0)

	k, err := float64Dense(&cameraMatrix, 3, 3)
	if err != nil {
		return calib.Result{}, fmt.Errorf("opencv: camera matrix: %w", err)
	}
	d, err := float64Dense(&distCoeffs, 1, vision.DistortionLen)
	if err != nil {
		return calib.Result{}, fmt.Errorf("opencv: distortion: %w", err)
	}

	res := calib.Result{
		Intrinsics:        vision.ArrayFromMatrix(k),
		Distortion:        vision.ArrayFromVector(d.RowView(0)),
		ReprojectionError: rms,
		ImageSize:         c.ImageSize,
	}
	return res, res.Validate()
}

// float64Dense views the first rows x cols values of a CV_64F Mat as a gonum
// matrix. The matrix aliases the Mat and must be copied before it is closed.
func float64Dense(m *gocv.Mat, rows, cols int) (*mat.Dense, error) {
	if m.Type() != gocv.MatTypeCV64F {
		return nil, fmt.Errorf("mat type %v is not CV_64F", m.Type())
	}
	data, err := m.DataPtrFloat64()
	if err != nil {
		return nil, err
	}
	if len(data) < rows*cols {
		return nil, fmt.Errorf("mat holds %d values, want %d", len(data), rows*cols)
	}
	return mat.NewDense(rows, cols, data[:rows*cols]), nil
}

// Undistort removes lens distortion from src using a calibrated config.
func Undistort(src gocv.Mat, dst *gocv.Mat, cfg *vision.CameraConfig) error {
	if !cfg.Calibrated() {
		return fmt.Errorf("opencv: camera %d is not calibrated", cfg.ID)
	}
	k := arrayMat(cfg.IntrinsicMatrix, 3)
	defer k.Close()
	d := arrayMat(cfg.DistortionCoeffs, vision.DistortionLen)
	defer d.Close()
	gocv.Undistort(src, dst, k, d, k)
	return nil
}

// arrayMat copies a into a new CV_64F Mat with cols columns.
func arrayMat(a vision.Array, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(len(a.Data)/cols, cols, gocv.MatTypeCV64F)
	for i, v := range a.Data {
		m.SetDoubleAt(i/cols, i%cols, v)
	}
	return m
}
