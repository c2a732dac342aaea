// stdvis - camera tooling for vision pipelines
//
// Grabs frames, records exposure sweeps, calibrates from checkerboard
// images and serves cameras over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-stdvis/internal/config"
	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/camera"
	"github.com/teslashibe/go-stdvis/pkg/opencv"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"grab", "grab frames from a camera", runGrab},
	{"sample", "capture an exposure sweep into a directory", runSample},
	{"calibrate", "calibrate a camera from checkerboard images", runCalibrate},
	{"serve", "serve cameras over HTTP and websocket", runServe},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: stdvis <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr, "\nRun 'stdvis <command> -h' for command flags.")
}

func main() {
	log.Init(config.LogLevel())

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Handle Ctrl+C
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, os.Args[2:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				os.Exit(2)
			}
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	usage()
	os.Exit(2)
}

// cameraFlags are shared by commands that open a camera.
type cameraFlags struct {
	config  string
	id      int
	backend string
	accel   string
	preset  string
	device  string
}

func (f *cameraFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", config.ConfigPath(), "Camera config file (STDVIS_CONFIG)")
	fs.IntVar(&f.id, "camera", -1, "Camera index, overrides the config file (STDVIS_CAMERA_ID)")
	fs.StringVar(&f.backend, "backend", config.Backend(), "Capture backend: v4l2, gstreamer, any (STDVIS_BACKEND)")
	fs.StringVar(&f.accel, "accel", "", "Hardware acceleration for gstreamer: vaapi")
	fs.StringVar(&f.preset, "preset", "", "Resolution preset: "+strings.Join(camera.PresetNames(), ", "))
	fs.StringVar(&f.device, "device", "", "Device path, overrides /dev/video<camera>")
}

// loadConfig reads the camera config, falling back to a 640x480 default
// when the file does not exist.
func (f *cameraFlags) loadConfig() (*vision.CameraConfig, error) {
	cfg, err := vision.LoadConfig(f.config)
	switch {
	case errors.Is(err, os.ErrNotExist):
		id, err := config.CameraID()
		if err != nil {
			return nil, err
		}
		cfg = &vision.CameraConfig{ID: id, Resolution: *camera.GetPreset(camera.PresetVGA)}
		fmt.Printf("📄 No config at %s, using camera %d at %s\n", f.config, cfg.ID, cfg.Resolution)
	case err != nil:
		return nil, err
	}

	if f.id >= 0 {
		if f.id > 255 {
			return nil, fmt.Errorf("camera index %d out of range", f.id)
		}
		cfg = cfg.Clone()
		cfg.ID = uint8(f.id)
	}
	if f.preset != "" {
		if cfg, err = camera.ApplyPreset(cfg, f.preset); err != nil {
			return nil, err
		}
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (f *cameraFlags) open(cfg *vision.CameraConfig) (*opencv.Camera, error) {
	backend, err := opencv.ParseBackend(f.backend)
	if err != nil {
		return nil, err
	}
	opts := []opencv.Option{opencv.WithBackend(backend), opencv.WithAccel(f.accel)}
	if f.device != "" {
		opts = append(opts, opencv.WithDevicePath(f.device))
	}

	fmt.Printf("📷 Opening camera %d (%s backend)...\n", cfg.ID, backend)
	cam, err := opencv.Open(cfg, opts...)
	if err != nil {
		return nil, err
	}
	got := cam.Config()
	fmt.Printf("✅ Camera %d open at %s\n", got.ID, got.Resolution)
	if got.Resolution != cfg.Resolution {
		fmt.Printf("⚠️  Requested %s, device delivers %s\n", cfg.Resolution, got.Resolution)
	}
	return cam, nil
}
