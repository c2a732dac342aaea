package opencv

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/pkg/calib"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// project maps board points through a pinhole camera with no distortion,
// after rotating the board by rx, ry radians and pushing it dist metres away.
func project(pts []calib.Point3, fx, cx, cy, rx, ry, dist float64) []vision.Point {
	out := make([]vision.Point, len(pts))
	for i, p := range pts {
		x, y, z := float64(p.X)-0.1, float64(p.Y)-0.075, float64(p.Z)

		// Rotate about x, then y.
		y, z = y*math.Cos(rx)-z*math.Sin(rx), y*math.Sin(rx)+z*math.Cos(rx)
		x, z = x*math.Cos(ry)+z*math.Sin(ry), -x*math.Sin(ry)+z*math.Cos(ry)
		z += dist

		out[i] = vision.Point{X: float32(fx*x/z + cx), Y: float32(fx*y/z + cy)}
	}
	return out
}

func TestSolver_RecoversIntrinsics(t *testing.T) {
	board := calib.Board{Rows: 7, Cols: 10, SquareSizeMM: 25}
	c := &calib.Correspondences{Board: board}
	size := vision.Resolution{Width: 640, Height: 480}

	poses := [][3]float64{
		{0.3, 0, 0.6},
		{-0.3, 0.1, 0.55},
		{0, 0.35, 0.65},
		{0.2, -0.3, 0.5},
		{-0.15, -0.2, 0.7},
	}
	for _, p := range poses {
		require.NoError(t, c.Add(size, project(board.ObjectPoints(), 500, 320, 240, p[0], p[1], p[2])))
	}

	res, err := Solver{}.Solve(c)
	require.NoError(t, err)

	k, err := res.Intrinsics.Dense()
	require.NoError(t, err)
	assert.InDelta(t, 500, k.At(0, 0), 5)
	assert.InDelta(t, 500, k.At(1, 1), 5)
	assert.InDelta(t, 320, k.At(0, 2), 5)
	assert.InDelta(t, 240, k.At(1, 2), 5)
	assert.Less(t, res.ReprojectionError, 0.1)
	assert.Equal(t, []int{vision.DistortionLen}, res.Distortion.Dim)

	cfg := res.Apply(&vision.CameraConfig{ID: 1})
	assert.True(t, cfg.Calibrated())
	assert.Equal(t, size, cfg.Resolution)
}

func TestSolver_TooFewImages(t *testing.T) {
	board := calib.Board{Rows: 7, Cols: 10, SquareSizeMM: 25}
	c := &calib.Correspondences{Board: board}
	require.NoError(t, c.Add(vision.Resolution{Width: 640, Height: 480}, project(board.ObjectPoints(), 500, 320, 240, 0.1, 0.1, 0.6)))

	_, err := Solver{}.Solve(c)
	assert.ErrorIs(t, err, calib.ErrTooFewImages)
}

// drawBoard renders a checkerboard of rows x cols squares with a white margin.
func drawBoard(rows, cols, square, margin int) gocv.Mat {
	w, h := cols*square+2*margin, rows*square+2*margin
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), h, w, gocv.MatTypeCV8UC3)
	black := color.RGBA{A: 255}
	for r := range rows {
		for c := range cols {
			if (r+c)%2 == 0 {
				x, y := margin+c*square, margin+r*square
				gocv.Rectangle(&m, image.Rect(x, y, x+square, y+square), black, -1)
			}
		}
	}
	return m
}

func TestChessboardDetector(t *testing.T) {
	board := calib.Board{Rows: 7, Cols: 10, SquareSizeMM: 25}
	img := drawBoard(board.Rows, board.Cols, 40, 60)
	defer img.Close()

	d := ChessboardDetector{Board: board, Flags: gocv.CalibCBNormalizeImage | gocv.CalibCBExhaustive | gocv.CalibCBAccuracy}
	corners, found, err := d.Detect(&img)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, corners, len(board.ObjectPoints()))

	// Inner corners lie on the square grid.
	for _, p := range corners {
		assert.InDelta(t, 0, math.Mod(float64(p.X)-60+1, 40)-1, 2, "x=%v", p.X)
		assert.InDelta(t, 0, math.Mod(float64(p.Y)-60+1, 40)-1, 2, "y=%v", p.Y)
	}

	require.NoError(t, d.DrawCorners(&img, corners, found))

	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 200, 200, gocv.MatTypeCV8UC3)
	defer blank.Close()
	_, found, err = d.Detect(&blank)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUndistort(t *testing.T) {
	src := drawBoard(4, 4, 20, 10)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	assert.Error(t, Undistort(src, &dst, &vision.CameraConfig{}))

	cfg := &vision.CameraConfig{
		IntrinsicMatrix:  vision.Array{Dim: []int{3, 3}, Data: []float64{100, 0, 50, 0, 100, 50, 0, 0, 1}},
		DistortionCoeffs: vision.Array{Dim: []int{5}, Data: []float64{0, 0, 0, 0, 0}},
	}
	require.NoError(t, Undistort(src, &dst, cfg))
	assert.Equal(t, src.Rows(), dst.Rows())
	assert.Equal(t, src.Cols(), dst.Cols())
}

type recordingSolver struct {
	got *calib.Correspondences
}

func (s *recordingSolver) Solve(c *calib.Correspondences) (calib.Result, error) {
	s.got = c
	if err := c.Validate(); err != nil {
		return calib.Result{}, err
	}
	return calib.Result{ImageSize: c.ImageSize}, nil
}

func writeImage(t *testing.T, path string, m gocv.Mat) string {
	t.Helper()
	defer m.Close()
	require.True(t, gocv.IMWrite(path, m))
	return path
}

func TestFileCalibration_Run(t *testing.T) {
	dir := t.TempDir()
	board := calib.Board{Rows: 7, Cols: 10, SquareSizeMM: 25}
	var paths []string
	for i := range 3 {
		paths = append(paths, writeImage(t, filepath.Join(dir, fmt.Sprintf("board_%d.png", i)), drawBoard(board.Rows, board.Cols, 40, 60)))
	}
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 7*40+120, 10*40+120, gocv.MatTypeCV8UC3)
	paths = append(paths, writeImage(t, filepath.Join(dir, "blank.png"), blank))

	solver := &recordingSolver{}
	debug := filepath.Join(dir, "debug")
	fc := FileCalibration{
		Detector: ChessboardDetector{Board: board, Flags: gocv.CalibCBNormalizeImage | gocv.CalibCBExhaustive | gocv.CalibCBAccuracy},
		Solver:   solver,
		DebugDir: debug,
	}
	res, skipped, err := fc.Run(paths)
	require.NoError(t, err)
	assert.Equal(t, []string{paths[3]}, skipped)
	assert.Len(t, solver.got.Views, 3)
	assert.Equal(t, vision.Resolution{Width: 520, Height: 400}, res.ImageSize)
	assert.FileExists(t, filepath.Join(debug, "board_0.png"))
	assert.FileExists(t, filepath.Join(debug, "blank.png"))
}

func TestFileCalibration_Errors(t *testing.T) {
	dir := t.TempDir()
	board := calib.Board{Rows: 7, Cols: 10, SquareSizeMM: 25}
	fc := FileCalibration{Detector: ChessboardDetector{Board: board}, Solver: &recordingSolver{}}

	small := writeImage(t, filepath.Join(dir, "a.png"), zeros(40, 40, gocv.MatTypeCV8UC3))
	large := writeImage(t, filepath.Join(dir, "b.png"), zeros(80, 80, gocv.MatTypeCV8UC3))
	_, _, err := fc.Run([]string{small, large})
	assert.ErrorIs(t, err, calib.ErrSizeMismatch)

	_, _, err = fc.Run([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)

	_, _, err = fc.Run([]string{small})
	assert.ErrorIs(t, err, calib.ErrTooFewImages)

	fc.Detector.Board.SquareSizeMM = 0
	_, _, err = fc.Run([]string{small})
	assert.Error(t, err)
}
