package vision

import "context"

// Grabber serialises GrabFrame calls on one camera and lets callers bound
// the wait with a context.
//
// A device read cannot be interrupted. When ctx ends first, Grab returns
// ctx.Err() and the read keeps running in the background; its image is
// closed on arrival and the next Grab waits for it to finish.
type Grabber[T any] struct {
	cam  Camera[T]
	busy chan struct{}
}

type grabResult[T any] struct {
	img *Image[T]
	err error
}

// NewGrabber wraps cam.
func NewGrabber[T any](cam Camera[T]) *Grabber[T] {
	return &Grabber[T]{cam: cam, busy: make(chan struct{}, 1)}
}

// Camera returns the wrapped camera.
func (g *Grabber[T]) Camera() Camera[T] { return g.cam }

// Grab returns the next frame, or ctx.Err() if ctx ends first.
func (g *Grabber[T]) Grab(ctx context.Context) (*Image[T], error) {
	select {
	case g.busy <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan grabResult[T], 1)
	go func() {
		img, err := g.cam.GrabFrame()
		done <- grabResult[T]{img: img, err: err}
	}()

	select {
	case r := <-done:
		<-g.busy
		return r.img, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			if r.img != nil {
				r.img.Close()
			}
			<-g.busy
		}()
		return nil, ctx.Err()
	}
}
