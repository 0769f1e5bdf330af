// Package source provides the capture strategies. Exactly one is chosen at
// startup by Select, based on what the machine can do.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"camviewer/internal/config"
	"camviewer/internal/frame"
	"camviewer/internal/logger"
	"camviewer/internal/render"
)

var ErrUnavailable = errors.New("capture source unavailable")

// Kind names a capture strategy.
type Kind string

const (
	KindAuto    Kind = "auto"
	KindPixel   Kind = "pixel"
	KindStream  Kind = "stream"
	KindFile    Kind = "file"
	KindPattern Kind = "pattern"
)

// Consumer receives whatever a source produces.
type Consumer interface {
	OnFrameAvailable(f *frame.Frame)
	OnSourceError(err error)
	AttachExternalStream(ctx context.Context, img render.ExternalImage, m render.Matrix) error
	OnExternalFrame(width, height uint32)
}

// Source delivers frames, in capture order, to a consumer.
type Source interface {
	Kind() Kind
	// Run blocks until ctx is cancelled or the source cannot continue.
	Run(ctx context.Context, c Consumer) error
	Close() error
}

// Probe reports whether a camera device can be opened.
type Probe func(device string) bool

// Select picks the capture strategy for cfg. With SOURCE=auto a working
// camera gives the pixel path when processing is on and the zero-copy stream
// path when it is off; without a camera the file source is used if a watch
// path is set, otherwise the synthetic pattern.
func Select(cfg *config.Config, probe Probe, logger *logger.Logger) (Source, error) {
	kind := Kind(cfg.Source)
	if kind == "" {
		kind = KindAuto
	}

	if kind == KindAuto {
		switch {
		case probe != nil && probe(cfg.CameraDevice):
			if cfg.ProcessingEnabled {
				kind = KindPixel
			} else {
				kind = KindStream
			}
		case cfg.WatchPath != "":
			kind = KindFile
		default:
			kind = KindPattern
		}
		logger.Info("🔍 Capture source auto-selected: %s", kind)
	}

	size := ChooseSize(CommonSizes, image.Pt(cfg.CaptureWidth, cfg.CaptureHeight))

	switch kind {
	case KindPixel, KindStream:
		if probe == nil || !probe(cfg.CameraDevice) {
			return nil, fmt.Errorf("%w: camera %s cannot be opened", ErrUnavailable, cfg.CameraDevice)
		}
		cam := newCapture(cfg.CameraDevice, size, cfg.CaptureFPS, logger)
		if kind == KindPixel {
			return newCameraSource(cam, logger), nil
		}
		return newStreamSource(cam, logger), nil
	case KindFile:
		if cfg.WatchPath == "" {
			return nil, fmt.Errorf("%w: WATCH_PATH is not set", ErrUnavailable)
		}
		return NewFileSource(cfg.WatchPath, logger)
	case KindPattern:
		return NewPatternSource(uint32(size.X), uint32(size.Y), cfg.CaptureFPS, logger), nil
	}
	return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
}

// CommonSizes are the capture resolutions tried against a camera.
var CommonSizes = []image.Point{
	{320, 240}, {640, 480}, {800, 600}, {1280, 720}, {1920, 1080}, {3840, 2160},
}

// ChooseSize returns the largest size that fits within want in both
// dimensions, or the smallest size when none fits.
func ChooseSize(choices []image.Point, want image.Point) image.Point {
	if len(choices) == 0 {
		return want
	}
	sorted := append([]image.Point(nil), choices...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].X*sorted[i].Y < sorted[j].X*sorted[j].Y
	})

	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].X <= want.X && sorted[i].Y <= want.Y {
			return sorted[i]
		}
	}
	return sorted[0]
}
