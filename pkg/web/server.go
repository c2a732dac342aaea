// Package web serves the cameras of a rig over HTTP: configs, exposure,
// JPEG snapshots and live websocket streams.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/camera"
	"github.com/teslashibe/go-stdvis/pkg/hub"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Rig is the set of cameras the server exposes. *camera.Manager implements it.
type Rig interface {
	IDs() []uint8
	Config(id uint8) (*vision.CameraConfig, error)
	Snapshot(ctx context.Context, id uint8) ([]byte, error)
	Exposure(id uint8) (int32, error)
	SetExposure(id uint8, value int32) error
	GetStreamConfig() camera.StreamConfig
	UpdateStreamConfig(params map[string]interface{}) error
}

// DefaultGrabTimeout bounds a snapshot request.
const DefaultGrabTimeout = 5 * time.Second

// Server is the camera API server
type Server struct {
	app    *fiber.App
	port   string
	rig    Rig
	logger *slog.Logger

	// One broadcast hub per camera
	hubs map[uint8]*hub.Hub

	// GrabTimeout bounds a snapshot request
	GrabTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server for the cameras currently in rig.
func NewServer(port string, rig Rig) *Server {
	s := &Server{
		port:        port,
		rig:         rig,
		logger:      log.With("component", "web"),
		hubs:        make(map[uint8]*hub.Hub),
		GrabTimeout: DefaultGrabTimeout,
	}
	for _, id := range rig.IDs() {
		s.hubs[id] = hub.New(fmt.Sprintf("camera-%d", id))
	}

	app := fiber.New(fiber.Config{
		AppName:               "stdvis",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/cameras", s.handleListCameras)
	api.Get("/cameras/:id/config", s.handleGetConfig)
	api.Get("/cameras/:id/frame.jpg", s.handleSnapshot)
	api.Get("/cameras/:id/exposure", s.handleGetExposure)
	api.Put("/cameras/:id/exposure", s.handleSetExposure)
	api.Get("/stream", s.handleGetStream)
	api.Put("/stream", s.handleSetStream)
	api.Get("/presets", s.handleListPresets)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/cameras/:id", s.requireHub, websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the broadcast hub of camera id, or nil.
func (s *Server) Hub(id uint8) *hub.Hub {
	return s.hubs[id]
}

// Run starts the hubs and the camera streams. Streams stop when ctx ends or
// Shutdown is called.
func (s *Server) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for id, h := range s.hubs {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			h.Run()
		}()
		go func() {
			defer s.wg.Done()
			defer h.Stop()
			if err := h.Stream(ctx, id, &rigSource{rig: s.rig, id: id}); err != nil {
				s.logger.Error("camera stream ended", "camera", id, "error", err)
			}
		}()
	}
}

// Start starts the streams and blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	fmt.Printf("🌐 Camera API: http://localhost:%s/api/cameras\n", s.port)
	s.Run(context.Background())
	return s.app.Listen(":" + s.port)
}

// Serve starts the streams and blocks serving HTTP on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Run(ctx)
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Shutdown stops the streams and gracefully stops the web server
func (s *Server) Shutdown() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	for _, h := range s.hubs {
		h.Stop()
	}
	err := s.app.Shutdown()
	s.wg.Wait()
	return err
}

// rigSource adapts one camera of a rig to hub.FrameSource.
type rigSource struct {
	rig Rig
	id  uint8
}

func (r *rigSource) Frame(ctx context.Context) ([]byte, error) {
	return r.rig.Snapshot(ctx, r.id)
}

func (r *rigSource) Framerate() int {
	return r.rig.GetStreamConfig().Framerate
}
