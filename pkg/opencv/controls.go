package opencv

import (
	"errors"
	"syscall"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// V4L2 control IDs and values used for exposure.
const (
	CIDExposure     uint32 = 0x00980911 // V4L2_CID_EXPOSURE
	CIDExposureAuto uint32 = 0x009a0901 // V4L2_CID_EXPOSURE_AUTO

	ExposureManual int32 = 1 // V4L2_EXPOSURE_MANUAL
)

// Controls is a device control channel.
type Controls interface {
	Control(id uint32) (int32, error)
	SetControl(id uint32, value int32) error
	Close() error
}

// ControlsOpener opens the control channel of a device node.
type ControlsOpener func(path string) (Controls, error)

// V4L2Controls reads and writes V4L2 controls through go4vl. It opens its
// own handle on the device node, independent of the capture stream.
type V4L2Controls struct {
	dev *device.Device
}

// OpenV4L2Controls opens the control channel of a V4L2 device node.
func OpenV4L2Controls(path string) (Controls, error) {
	dev, err := device.Open(path)
	if err != nil {
		return nil, err
	}
	return &V4L2Controls{dev: dev}, nil
}

// Control returns the current value of control id.
func (c *V4L2Controls) Control(id uint32) (int32, error) {
	ctrl, err := c.dev.GetControl(v4l2.CtrlID(id))
	if err != nil {
		return 0, controlErr(id, err)
	}
	return int32(ctrl.Value), nil
}

// SetControl sets control id to value.
func (c *V4L2Controls) SetControl(id uint32, value int32) error {
	if err := c.dev.SetControlValue(v4l2.CtrlID(id), v4l2.CtrlValue(value)); err != nil {
		return controlErr(id, err)
	}
	return nil
}

// Close releases the device handle.
func (c *V4L2Controls) Close() error {
	return c.dev.Close()
}

// controlErr classifies a driver error. Busy devices are DeviceBusy;
// everything else means the control cannot be used on this device.
func controlErr(id uint32, err error) error {
	kind := vision.ErrUnsupportedControl
	if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, v4l2.ErrorTemporary) {
		kind = vision.ErrDeviceBusy
	}
	return &vision.ControlError{Kind: kind, Control: id, Err: err}
}
