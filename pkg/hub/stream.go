package hub

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// FrameSource yields JPEG frames of one camera.
type FrameSource interface {
	// Frame grabs and encodes the next frame.
	Frame(ctx context.Context) ([]byte, error)

	// Framerate is the current target rate in frames per second.
	Framerate() int
}

// logEvery limits repeated error lines.
const logEvery = 5 * time.Second

func interval(fps int) time.Duration {
	if fps < 1 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

// Stream broadcasts frames from src at its framerate while at least one
// client is connected. Read failures are skipped. A fatal device error is
// sent to clients as a StreamError and returned. Stream returns nil when ctx
// ends.
func (h *Hub) Stream(ctx context.Context, camID uint8, src FrameSource) error {
	fps := src.Framerate()
	ticker := time.NewTicker(interval(fps))
	defer ticker.Stop()

	h.logger.Info("stream started", "camera", camID, "fps", fps)

	var (
		frames  int
		lastLog time.Time
	)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("stream stopped", "camera", camID, "frames", frames)
			return nil
		case <-ticker.C:
		}

		if now := src.Framerate(); now != fps {
			fps = now
			ticker.Reset(interval(fps))
		}
		if h.ClientCount() == 0 {
			continue
		}

		fctx, cancel := context.WithTimeout(ctx, time.Second+interval(fps))
		frame, err := src.Frame(fctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if vision.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded) {
				if time.Since(lastLog) > logEvery {
					h.logger.Warn("frame skipped", "camera", camID, "error", err)
					lastLog = time.Now()
				}
				continue
			}
			h.logger.Error("stream failed", "camera", camID, "error", err)
			h.BroadcastJSON(StreamError{Camera: camID, Error: err.Error()})
			return err
		}

		h.BroadcastFrame(frame)
		frames++
		if frames == 1 {
			h.logger.Info("first frame sent", "camera", camID, "bytes", len(frame))
		}
	}
}
