package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/internal/config"
	"github.com/teslashibe/go-stdvis/pkg/camera"
	"github.com/teslashibe/go-stdvis/pkg/opencv"
	"github.com/teslashibe/go-stdvis/pkg/vision"
	"github.com/teslashibe/go-stdvis/pkg/web"
)

func encodeJPEG(img *vision.Image[*gocv.Mat], quality int) ([]byte, error) {
	return opencv.EncodeJPEG(img.Raw(), quality)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var cf cameraFlags
	cf.register(fs)
	port := fs.String("port", config.Port(), "HTTP port (STDVIS_PORT)")
	configs := fs.String("configs", "", "Comma-separated config files, one per camera; overrides -config")
	framerate := fs.Int("fps", camera.DefaultStreamConfig().Framerate, "Stream framerate")
	quality := fs.Int("quality", camera.DefaultStreamConfig().Quality, "JPEG quality 1-100")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rig := camera.NewManager[*gocv.Mat](encodeJPEG)
	defer rig.Close()
	rig.OnStreamChange = func(s camera.StreamConfig) {
		fmt.Printf("🎛️  Stream settings: %d fps, quality %d\n", s.Framerate, s.Quality)
	}
	if err := rig.SetStreamConfig(camera.StreamConfig{Framerate: *framerate, Quality: *quality}); err != nil {
		return err
	}

	paths := []string{cf.config}
	if *configs != "" {
		paths = strings.Split(*configs, ",")
	}
	for _, path := range paths {
		cf.config = strings.TrimSpace(path)
		cfg, err := cf.loadConfig()
		if err != nil {
			return err
		}
		cam, err := cf.open(cfg)
		if err != nil {
			return err
		}
		if err := rig.Add(cam); err != nil {
			cam.Close()
			return err
		}
	}

	srv := web.NewServer(*port, rig)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		fmt.Println("\n👋 Shutting down...")
		return srv.Shutdown()
	case err := <-errCh:
		srv.Shutdown()
		return err
	}
}
