// Package opencv is the gocv backend: cameras that capture into gocv.Mat,
// conversions between Mats and pixels views, device controls, calibration
// and image codecs.
//
// Views returned by MatView alias the Mat's memory and Mats returned by
// ViewMat alias the view's memory. Neither side owns the other; keep the
// owner alive and closed last.
//
// Requires OpenCV 4.x (gocv) at build time.
package opencv
