// Package vision defines the camera and image contracts shared by every
// stage of the vision pipeline.
//
// A Camera backend produces Images. Each Image carries the capture timestamp,
// a shared pointer to the CameraConfig of the camera that produced it, and
// an ImageData holding the pixels. ImageData exposes the pixels both as
// generic pixels.View values and as the backend's raw handle (a gocv.Mat for
// the OpenCV backend, a *pixels.Buffer for host memory), without copying.
//
//	cam, err := opencv.Open(cfg)
//	img, err := cam.GrabFrame()
//	defer img.Close()
//	px, err := img.Pixels() // shape (rows, cols, 3)
//
// Configs are shared and treated as immutable once published; cameras
// publish refined values as fresh copies.
package vision
