// Package transform provides the image-processing step applied to frames.
package transform

import (
	"errors"

	"camviewer/internal/frame"
)

var (
	ErrClosed       = errors.New("transform closed")
	ErrInvalidFrame = errors.New("invalid frame for transform")
)

// FrameTransform processes one frame synchronously. On failure the input is
// left untouched and the caller keeps using it.
type FrameTransform interface {
	Apply(f *frame.Frame, mode frame.Mode) (*frame.Frame, error)
	Close() error
}

// Func adapts a plain function to FrameTransform. Close is a no-op.
type Func func(f *frame.Frame, mode frame.Mode) (*frame.Frame, error)

func (fn Func) Apply(f *frame.Frame, mode frame.Mode) (*frame.Frame, error) {
	return fn(f, mode)
}

func (fn Func) Close() error { return nil }
