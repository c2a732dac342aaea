package web

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-stdvis/pkg/camera"
	"github.com/teslashibe/go-stdvis/pkg/hub"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// CameraInfo describes one camera in the listing
type CameraInfo struct {
	ID         uint8             `json:"id"`
	Resolution vision.Resolution `json:"resolution"`
	Calibrated bool              `json:"calibrated"`
	Stream     string            `json:"stream"`
}

// ExposureRequest is the body of an exposure update
type ExposureRequest struct {
	Value *int32 `json:"value"`
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, camera.ErrUnknownCamera):
		return fiber.StatusNotFound
	case errors.Is(err, vision.ErrUnsupportedControl):
		return fiber.StatusNotImplemented
	case errors.Is(err, vision.ErrDeviceBusy):
		return fiber.StatusConflict
	case errors.Is(err, vision.ErrReadFailed), errors.Is(err, vision.ErrDeviceUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func cameraID(c *fiber.Ctx) (uint8, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 8)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "camera id must be 0-255")
	}
	return uint8(id), nil
}

// handleListCameras returns every camera with its resolution
func (s *Server) handleListCameras(c *fiber.Ctx) error {
	infos := make([]CameraInfo, 0)
	for _, id := range s.rig.IDs() {
		cfg, err := s.rig.Config(id)
		if err != nil {
			// Removed since IDs was read
			continue
		}
		infos = append(infos, CameraInfo{
			ID:         id,
			Resolution: cfg.Resolution,
			Calibrated: cfg.Calibrated(),
			Stream:     "/ws/cameras/" + strconv.Itoa(int(id)),
		})
	}
	return c.JSON(infos)
}

// handleGetConfig returns the full config of one camera
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	id, err := cameraID(c)
	if err != nil {
		return err
	}
	cfg, err := s.rig.Config(id)
	if err != nil {
		return err
	}
	return c.JSON(cfg)
}

// handleSnapshot grabs one frame and returns it as JPEG
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	id, err := cameraID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.GrabTimeout)
	defer cancel()
	frame, err := s.rig.Snapshot(ctx, id)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}

// handleGetExposure returns the current exposure
func (s *Server) handleGetExposure(c *fiber.Ctx) error {
	id, err := cameraID(c)
	if err != nil {
		return err
	}
	v, err := s.rig.Exposure(id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"value": v})
}

// handleSetExposure sets the exposure
func (s *Server) handleSetExposure(c *fiber.Ctx) error {
	id, err := cameraID(c)
	if err != nil {
		return err
	}

	var req ExposureRequest
	if err := c.BodyParser(&req); err != nil || req.Value == nil {
		return fiber.NewError(fiber.StatusBadRequest, "body must be {\"value\": <int>}")
	}
	if err := s.rig.SetExposure(id, *req.Value); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"value": *req.Value})
}

// handleGetStream returns the stream settings
func (s *Server) handleGetStream(c *fiber.Ctx) error {
	return c.JSON(s.rig.GetStreamConfig())
}

// handleSetStream updates some or all stream settings
func (s *Server) handleSetStream(c *fiber.Ctx) error {
	params := make(map[string]interface{})
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.rig.UpdateStreamConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.rig.GetStreamConfig())
}

// handleListPresets returns the resolution presets
func (s *Server) handleListPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

// requireHub rejects stream requests for unknown cameras before the upgrade
func (s *Server) requireHub(c *fiber.Ctx) error {
	id, err := cameraID(c)
	if err != nil {
		return err
	}
	if s.hubs[id] == nil {
		return fiber.NewError(fiber.StatusNotFound, camera.ErrUnknownCamera.Error())
	}
	c.Locals("hub", s.hubs[id])
	return c.Next()
}

// handleCameraWS streams JPEG frames of one camera as binary messages
func (s *Server) handleCameraWS(c *websocket.Conn) {
	h := c.Locals("hub").(*hub.Hub)
	hub.NewClient(h, c).Run()
}
