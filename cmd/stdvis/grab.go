package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/pkg/opencv"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

func runGrab(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("grab", flag.ContinueOnError)
	var cf cameraFlags
	cf.register(fs)
	count := fs.Int("n", 1, "Number of frames")
	out := fs.String("o", ".", "Output directory")
	ext := fs.String("ext", "png", "Image format extension")
	undistort := fs.Bool("undistort", false, "Undistort frames with the config's calibration")
	interval := fs.Duration("interval", 0, "Wait between frames")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.loadConfig()
	if err != nil {
		return err
	}
	if *undistort && !cfg.Calibrated() {
		return fmt.Errorf("-undistort needs a calibrated config, run 'stdvis calibrate' first")
	}

	cam, err := cf.open(cfg)
	if err != nil {
		return err
	}
	defer cam.Close()

	grabber := vision.NewGrabber[*gocv.Mat](cam)
	for i := range *count {
		img, err := grabber.Grab(ctx)
		if err != nil {
			return err
		}

		if *undistort {
			dst := gocv.NewMat()
			if err := opencv.Undistort(*img.Raw(), &dst, img.Config()); err != nil {
				dst.Close()
				img.Close()
				return err
			}
			fixed := vision.NewImage[*gocv.Mat](img.Timestamp, img.Config(), opencv.NewMatData(dst))
			img.Close()
			img = fixed
		}

		path := filepath.Join(*out, fmt.Sprintf("frame_%d_%d.%s", cam.Config().ID, i, *ext))
		err = opencv.Write(path, img)
		img.Close()
		if err != nil {
			return err
		}
		fmt.Printf("💾 %s\n", path)

		if *interval > 0 && i < *count-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(*interval):
			}
		}
	}
	return nil
}
