package vision

import (
	"encoding/json"
	"fmt"
)

// DistortionLen is the number of distortion coefficients produced by calibration
// (k1, k2, p1, p2, k3).
const DistortionLen = 5

// Pose is the position and rotation of a camera relative to the robot.
type Pose struct {
	Angle  float64 `json:"angle"`
	Dist   float64 `json:"dist"`
	Height float64 `json:"height"`
	Yaw    float64 `json:"yaw"`
	Pitch  float64 `json:"pitch"`
	Roll   float64 `json:"roll"`
}

// Resolution is a frame size in pixels. It is persisted as [width, height].
type Resolution struct {
	Width  int
	Height int
}

// String returns "WxH".
func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// MarshalJSON encodes the resolution as a two element array.
func (r Resolution) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Width, r.Height})
}

// UnmarshalJSON decodes a two element array.
func (r *Resolution) UnmarshalJSON(b []byte) error {
	var v [2]int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("resolution: %w", err)
	}
	r.Width, r.Height = v[0], v[1]
	return nil
}

// FOV is the horizontal and vertical field of view in degrees. It is
// persisted as [horizontal, vertical].
type FOV struct {
	Horizontal float64
	Vertical   float64
}

// MarshalJSON encodes the field of view as a two element array.
func (f FOV) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{f.Horizontal, f.Vertical})
}

// UnmarshalJSON decodes a two element array.
func (f *FOV) UnmarshalJSON(b []byte) error {
	var v [2]float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("fov: %w", err)
	}
	f.Horizontal, f.Vertical = v[0], v[1]
	return nil
}

// CameraConfig holds the properties of one camera.
//
// A *CameraConfig is shared by the camera and every Image it produced, so it
// must not be modified once handed out. Refinements are published as a new
// value (see Clone).
type CameraConfig struct {
	ID           uint8      `json:"id"`
	Resolution   Resolution `json:"resolution"`
	Pose         Pose       `json:"pose"`
	FOV          FOV        `json:"fov"`
	FocalLength  float64    `json:"focal_length"`
	SensorWidth  float64    `json:"sensor_width"`
	SensorHeight float64    `json:"sensor_height"`
	Exposure     float64    `json:"exposure"`

	// Set by calibration: 3x3 camera matrix and DistortionLen coefficients.
	IntrinsicMatrix  Array `json:"intrinsic_matrix"`
	DistortionCoeffs Array `json:"distortion_coeffs"`
}

// Clone returns a deep copy of c.
func (c *CameraConfig) Clone() *CameraConfig {
	out := *c
	out.IntrinsicMatrix = c.IntrinsicMatrix.Clone()
	out.DistortionCoeffs = c.DistortionCoeffs.Clone()
	return &out
}

// Calibrated reports whether the config carries a 3x3 intrinsic matrix and a
// full set of distortion coefficients.
func (c *CameraConfig) Calibrated() bool {
	im, dc := c.IntrinsicMatrix, c.DistortionCoeffs
	return len(im.Dim) == 2 && im.Dim[0] == 3 && im.Dim[1] == 3 &&
		len(dc.Dim) == 1 && dc.Dim[0] == DistortionLen
}

// Validate checks the config and returns a list of problems, or nil.
func (c *CameraConfig) Validate() []string {
	var problems []string

	if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
		problems = append(problems, fmt.Sprintf("resolution must be positive, got %s", c.Resolution))
	}
	if c.FOV.Horizontal < 0 || c.FOV.Horizontal >= 180 || c.FOV.Vertical < 0 || c.FOV.Vertical >= 180 {
		problems = append(problems, "fov must be between 0 and 180 degrees")
	}
	if c.FocalLength < 0 || c.SensorWidth < 0 || c.SensorHeight < 0 {
		problems = append(problems, "focal_length and sensor dimensions must not be negative")
	}

	if err := c.IntrinsicMatrix.validate(); err != nil {
		problems = append(problems, "intrinsic_matrix: "+err.Error())
	} else if !c.IntrinsicMatrix.Empty() && !c.IntrinsicMatrix.HasShape(3, 3) {
		problems = append(problems, fmt.Sprintf("intrinsic_matrix must be 3x3, got %v", c.IntrinsicMatrix.Dim))
	}
	if err := c.DistortionCoeffs.validate(); err != nil {
		problems = append(problems, "distortion_coeffs: "+err.Error())
	} else if !c.DistortionCoeffs.Empty() && !c.DistortionCoeffs.HasShape(DistortionLen) {
		problems = append(problems, fmt.Sprintf("distortion_coeffs must have %d entries, got %v", DistortionLen, c.DistortionCoeffs.Dim))
	}

	return problems
}

// Point is a 2D image-space point.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Contour is an ordered sequence of points forming an open or closed curve.
type Contour struct {
	Points []Point `json:"points"`
}

// ContourGroup is a set of contours with a common origin, such as one
// detected target.
type ContourGroup struct {
	ID       uint8
	Camera   *CameraConfig
	Contours []Contour
}

// VisionTarget is a measurement derived from a contour group.
type VisionTarget struct {
	ID         uint8   `json:"id"`
	Beta       float64 `json:"beta"`
	Theta      float64 `json:"theta"`
	Dist       float64 `json:"dist"`
	Height     float64 `json:"height"`
	Confidence float32 `json:"confidence"`
}

// Validate checks that the confidence lies in [0, 1].
func (t VisionTarget) Validate() error {
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("vision: target %d confidence %v outside [0, 1]", t.ID, t.Confidence)
	}
	return nil
}
