package opencv

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/calib"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// FileCalibration calibrates a camera from checkerboard images on disk.
type FileCalibration struct {
	Detector ChessboardDetector
	Solver   calib.Solver

	// DebugDir, if set, receives a copy of every image with the detected
	// corners drawn on it, under the same file name.
	DebugDir string
}

// Run detects the board in every image and solves for the intrinsics.
// Images where the board is not found are skipped; all images must share
// one size. It also returns the paths that were skipped.
func (fc FileCalibration) Run(paths []string) (calib.Result, []string, error) {
	if err := fc.Detector.Board.Validate(); err != nil {
		return calib.Result{}, nil, err
	}
	if fc.DebugDir != "" {
		if err := os.MkdirAll(fc.DebugDir, 0o755); err != nil {
			return calib.Result{}, nil, err
		}
	}

	logger := log.With("component", "calibrate")
	c := &calib.Correspondences{Board: fc.Detector.Board}
	var (
		size    vision.Resolution
		skipped []string
	)
	for _, path := range paths {
		corners, found, imgSize, err := fc.detect(path)
		if err != nil {
			return calib.Result{}, skipped, err
		}
		if size == (vision.Resolution{}) {
			size = imgSize
		} else if imgSize != size {
			return calib.Result{}, skipped, fmt.Errorf("%w: %s is %s, expected %s", calib.ErrSizeMismatch, path, imgSize, size)
		}

		if !found {
			logger.Warn("board not found", "image", path)
			skipped = append(skipped, path)
			continue
		}
		if err := c.Add(imgSize, corners); err != nil {
			return calib.Result{}, skipped, fmt.Errorf("%s: %w", path, err)
		}
	}

	logger.Info("corner detection finished", "images", len(paths), "usable", len(c.Views))
	res, err := fc.Solver.Solve(c)
	if err != nil {
		return calib.Result{}, skipped, err
	}
	logger.Info("calibration finished", "reprojection_error", res.ReprojectionError)
	return res, skipped, nil
}

func (fc FileCalibration) detect(path string) ([]vision.Point, bool, vision.Resolution, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, false, vision.Resolution{}, fmt.Errorf("opencv: cannot read image %s", path)
	}
	size := vision.Resolution{Width: img.Cols(), Height: img.Rows()}

	corners, found, err := fc.Detector.Detect(&img)
	if err != nil {
		return nil, false, size, fmt.Errorf("%s: %w", path, err)
	}

	if fc.DebugDir != "" {
		if err := fc.Detector.DrawCorners(&img, corners, found); err != nil {
			return nil, false, size, err
		}
		out := filepath.Join(fc.DebugDir, filepath.Base(path))
		if !gocv.IMWrite(out, img) {
			return nil, false, size, fmt.Errorf("opencv: cannot write debug image %s", out)
		}
	}
	return corners, found, size, nil
}
