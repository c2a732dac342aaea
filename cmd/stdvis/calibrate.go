package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/go-stdvis/pkg/calib"
	"github.com/teslashibe/go-stdvis/pkg/opencv"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

func runCalibrate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	square := fs.Float64("square-size", 0, "Side length of a checkerboard square in millimetres")
	rows := fs.Int("board-rows", 0, "Number of checkerboard rows (squares)")
	cols := fs.Int("board-cols", 0, "Number of checkerboard columns (squares)")
	out := fs.String("config", "camera.json", "Camera config file to write; an existing file is updated")
	debugDir := fs.String("debug-dir", "", "Directory for images with detected corners drawn on them")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: stdvis calibrate [flags] <image> <image> <image> ...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < calib.MinImages {
		fs.Usage()
		return fmt.Errorf("need at least %d images, got %d", calib.MinImages, fs.NArg())
	}

	board := calib.Board{Rows: *rows, Cols: *cols, SquareSizeMM: *square}
	if err := board.Validate(); err != nil {
		return err
	}

	fc := opencv.FileCalibration{
		Detector: opencv.ChessboardDetector{Board: board},
		Solver:   opencv.Solver{},
		DebugDir: *debugDir,
	}
	fmt.Printf("🔍 Finding %dx%d inner corners in %d images...\n", board.PatternSize().X, board.PatternSize().Y, fs.NArg())
	res, skipped, err := fc.Run(fs.Args())
	for _, path := range skipped {
		fmt.Printf("⚠️  No board found in %s\n", path)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✅ Calibration finished with reprojection error %.4f px\n", res.ReprojectionError)

	cfg, err := vision.LoadConfig(*out)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = nil
	case err != nil:
		return fmt.Errorf("%w (the file may use an old schema)", err)
	}

	if err := vision.SaveConfig(*out, res.Apply(cfg)); err != nil {
		return err
	}
	fmt.Printf("💾 Wrote %s\n", *out)
	return nil
}
