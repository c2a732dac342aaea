package opencv

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Load reads an image file as 8-bit BGR and binds it to cfg. The timestamp
// is the load time.
func Load(path string, cfg *vision.CameraConfig) (*vision.Image[*gocv.Mat], error) {
	m := gocv.IMRead(path, gocv.IMReadColor)
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("opencv: cannot read image %s", path)
	}
	return vision.NewImage[*gocv.Mat](time.Now(), cfg, NewMatData(m)), nil
}

// Write encodes img to path. The format follows the file extension.
func Write(path string, img *vision.Image[*gocv.Mat]) error {
	if !gocv.IMWrite(path, *img.Raw()) {
		return fmt.Errorf("opencv: cannot write image %s", path)
	}
	return nil
}

// EncodeJPEG encodes a Mat as JPEG at the given quality (1-100).
func EncodeJPEG(m *gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *m, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("opencv: encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is released on Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
