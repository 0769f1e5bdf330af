// Package frame defines the pixel buffer that flows through the capture pipeline.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"time"
)

// BytesPerPixel is the size of one packed RGBA pixel.
const BytesPerPixel = 4

var (
	ErrInvalidSize = errors.New("invalid frame size")
)

// Frame is a packed RGBA pixel buffer. Pix holds Width*Height pixels, row-major,
// with no padding between rows.
//
// A Frame is exclusively owned by whichever pipeline stage currently holds it.
// Stages that need to keep a frame past the hand-off must Clone it.
type Frame struct {
	Width     uint32
	Height    uint32
	Pix       []byte
	Seq       uint64
	Timestamp time.Time
}

// New allocates a zeroed (transparent black) frame.
func New(width, height uint32) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Pix:       make([]byte, int(width)*int(height)*BytesPerPixel),
		Timestamp: time.Now(),
	}
}

// FromRGBA copies an image.RGBA into a new frame, dropping any row stride padding.
func FromRGBA(img *image.RGBA) *Frame {
	b := img.Bounds()
	f := New(uint32(b.Dx()), uint32(b.Dy()))
	rowLen := b.Dx() * BytesPerPixel
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+rowLen]
		copy(f.Pix[y*rowLen:(y+1)*rowLen], src)
	}
	return f
}

// Empty reports whether the frame carries no pixels. A nil frame is empty.
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Pix) == 0
}

// Validate checks the pixel buffer length against the declared dimensions.
func (f *Frame) Validate() error {
	if f.Empty() {
		return fmt.Errorf("%w: empty frame", ErrInvalidSize)
	}
	want := int(f.Width) * int(f.Height) * BytesPerPixel
	if len(f.Pix) != want {
		return fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrInvalidSize, f.Width, f.Height, want, len(f.Pix))
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{
		Width:     f.Width,
		Height:    f.Height,
		Pix:       pix,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
	}
}

// Equal compares dimensions and pixel data. Sequence and timestamp are ignored.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Width == other.Width && f.Height == other.Height && bytes.Equal(f.Pix, other.Pix)
}

// Stride is the number of bytes per row.
func (f *Frame) Stride() int {
	return int(f.Width) * BytesPerPixel
}

// ToRGBA wraps the pixel buffer in an image.RGBA without copying.
func (f *Frame) ToRGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride(),
		Rect:   image.Rect(0, 0, int(f.Width), int(f.Height)),
	}
}

// Size returns the frame dimensions as an image.Point.
func (f *Frame) Size() image.Point {
	return image.Pt(int(f.Width), int(f.Height))
}
