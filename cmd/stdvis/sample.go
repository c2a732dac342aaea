package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/pkg/opencv"
	"github.com/teslashibe/go-stdvis/pkg/samples"
)

func runSample(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	def := samples.DefaultOptions()
	var cf cameraFlags
	fs.StringVar(&cf.backend, "backend", "v4l2", "Capture backend: v4l2, gstreamer, any")
	fs.StringVar(&cf.accel, "accel", "", "Hardware acceleration for gstreamer: vaapi")
	fs.StringVar(&cf.device, "device", "", "Device path, overrides /dev/video<camera>")
	delay := fs.Duration("delay", 0, "Wait between captures")
	captures := fs.Int("captures", def.Captures, "Images per run")
	step := fs.Int("exposure-step", int(def.ExposureStep), "Exposure increase per capture")
	warmUp := fs.Duration("warm-up", def.WarmUp, "Wait after opening the camera")
	retries := fs.Int("retries", def.Retries, "Retries after a failed read")
	catalog := fs.String("catalog", samples.FormatJSON, "Metadata catalog: json or sqlite")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: stdvis sample [flags] <params.json> <output-dir>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return flag.ErrHelp
	}
	paramsPath, outDir := fs.Arg(0), fs.Arg(1)

	params, err := samples.LoadParams(paramsPath)
	if errors.Is(err, samples.ErrTemplateCreated) {
		fmt.Printf("📝 Created a params template at %s\n", paramsPath)
		fmt.Println("   Fill in label, target and camera, then run again.")
		return nil
	}
	if err != nil {
		return err
	}
	if problems := params.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid params: %v", problems)
	}

	opts := samples.Options{
		Captures:     *captures,
		ExposureStep: int32(*step),
		WarmUp:       *warmUp,
		Delay:        *delay,
		Retries:      *retries,
		Ext:          def.Ext,
	}

	cat, err := samples.OpenCatalog(outDir, *catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	cam, err := cf.open(&params.Camera)
	if err != nil {
		return err
	}
	defer cam.Close()

	s, err := samples.NewSampler[*gocv.Mat](cam, opencv.Write, cat, opts)
	if err != nil {
		return err
	}
	s.OnCapture = func(r samples.Record) {
		fmt.Printf("📸 %s (exposure %d)\n", r.File, r.Exposure)
	}

	fmt.Printf("⏳ Warming up for %s...\n", opts.WarmUp)
	recs, err := s.Run(ctx, params.Label, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Captured %d images of %q into %s\n", len(recs), params.Label, outDir)
	return nil
}
