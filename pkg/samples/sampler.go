package samples

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-stdvis/internal/log"
	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// Writer stores one image at path; the extension selects the format.
type Writer[T any] func(path string, img *vision.Image[T]) error

// Options tune a sampling run.
type Options struct {
	Captures     int           // Images per run
	ExposureStep int32         // Exposure of capture i is i*ExposureStep
	WarmUp       time.Duration // Wait after opening before the first capture
	Delay        time.Duration // Wait between captures
	Retries      int           // Extra attempts after a recoverable read failure
	Ext          string        // Image file extension
}

// DefaultOptions returns the settings of the reference sampling run.
func DefaultOptions() Options {
	return Options{
		Captures:     10,
		ExposureStep: 20,
		WarmUp:       time.Second,
		Retries:      3,
		Ext:          "png",
	}
}

// Validate checks the options and returns a list of problems, or nil.
func (o *Options) Validate() []string {
	var problems []string
	if o.Captures < 1 {
		problems = append(problems, "captures must be at least 1")
	}
	if o.ExposureStep < 0 {
		problems = append(problems, "exposure step must not be negative")
	}
	if o.WarmUp < 0 || o.Delay < 0 {
		problems = append(problems, "warm-up and delay must not be negative")
	}
	if o.Retries < 0 {
		problems = append(problems, "retries must not be negative")
	}
	if o.Ext == "" {
		problems = append(problems, "file extension must not be empty")
	}
	return problems
}

// Camera is what a sampler drives: a camera with exposure control.
type Camera[T any] interface {
	vision.Camera[T]
	vision.ExposureControl
}

// Sampler captures exposure sweeps from one camera into a directory.
type Sampler[T any] struct {
	cam     Camera[T]
	grabber *vision.Grabber[T]
	write   Writer[T]
	catalog Catalog
	opts    Options
	logger  *slog.Logger

	// Called after each stored image
	OnCapture func(rec Record)
}

// NewSampler creates a sampler. The caller keeps ownership of cam and catalog.
func NewSampler[T any](cam Camera[T], write Writer[T], catalog Catalog, opts Options) (*Sampler[T], error) {
	if problems := opts.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("samples: invalid options: %v", problems)
	}
	return &Sampler[T]{
		cam:     cam,
		grabber: vision.NewGrabber[T](cam),
		write:   write,
		catalog: catalog,
		opts:    opts,
		logger:  log.With("component", "sampler", "camera", cam.Config().ID),
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run performs one sweep, writing images to dir as <label>_<index>.<ext>.
// Each record is appended to the catalog as soon as its image is on disk,
// so an interrupted run keeps what it captured.
func (s *Sampler[T]) Run(ctx context.Context, label, dir string) ([]Record, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	start, err := s.catalog.Len()
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	session := uuid.NewString()
	s.logger.Info("sampling started", "session", session, "label", label, "first_index", start, "captures", s.opts.Captures)

	if err := sleep(ctx, s.opts.WarmUp); err != nil {
		return nil, err
	}

	recs := make([]Record, 0, s.opts.Captures)
	for i := range s.opts.Captures {
		if err := s.cam.SetExposure(int32(i) * s.opts.ExposureStep); err != nil {
			return recs, fmt.Errorf("capture %d: set exposure: %w", i, err)
		}

		img, err := s.grab(ctx)
		if err != nil {
			return recs, fmt.Errorf("capture %d: %w", i, err)
		}

		index := start + i
		name := fmt.Sprintf("%s_%d.%s", label, index, s.opts.Ext)
		cfg := img.Config()
		err = s.write(filepath.Join(dir, name), img)
		img.Close()
		if err != nil {
			return recs, fmt.Errorf("write %s: %w", name, err)
		}

		exposure, err := s.cam.Exposure()
		if err != nil {
			return recs, fmt.Errorf("capture %d: read exposure: %w", i, err)
		}

		rec := Record{
			Index:    index,
			Label:    label,
			Config:   cfg,
			Exposure: exposure,
			File:     name,
			Session:  session,
		}
		if err := s.catalog.Append(rec); err != nil {
			return recs, fmt.Errorf("record %s: %w", name, err)
		}
		recs = append(recs, rec)
		s.logger.Debug("sample stored", "file", name, "exposure", exposure)

		if s.OnCapture != nil {
			s.OnCapture(rec)
		}

		if i < s.opts.Captures-1 {
			if err := sleep(ctx, s.opts.Delay); err != nil {
				return recs, err
			}
		}
	}

	s.logger.Info("sampling finished", "session", session, "images", len(recs))
	return recs, nil
}

// grab retries recoverable read failures up to the configured count.
func (s *Sampler[T]) grab(ctx context.Context) (*vision.Image[T], error) {
	var err error
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		var img *vision.Image[T]
		img, err = s.grabber.Grab(ctx)
		if err == nil {
			return img, nil
		}
		if !vision.IsRetryable(err) {
			return nil, err
		}
		s.logger.Warn("read failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, err
}
