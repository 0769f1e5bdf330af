// Package render owns every GPU-side resource of the viewer. All Device and
// TextureSink calls must happen on the render context: the goroutine running
// Renderer.Run, or a caller of Renderer.Invoke.
package render

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/math/f64"
)

var (
	ErrDeviceLost   = errors.New("render device lost")
	ErrQueueFull    = errors.New("render queue full")
	ErrQueueClosed  = errors.New("render queue closed")
	ErrBadTransform = errors.New("texture transform is not invertible")
)

// TextureID is an opaque device texture handle. Zero means "no texture".
type TextureID uint32

// Device is the slice of a GPU API the viewer needs.
type Device interface {
	CreateTexture() (TextureID, error)
	// AllocateTexture (re)initializes the full storage of a texture.
	AllocateTexture(id TextureID, width, height int) error
	// WriteTexture replaces the whole pixel region with packed RGBA data.
	WriteTexture(id TextureID, pix []byte) error
	DeleteTexture(id TextureID)
	Clear(c color.RGBA)
	// DrawTexture draws a full-screen quad sampling the texture through m.
	DrawTexture(id TextureID, m Matrix) error
	// DrawImage draws a full-screen quad sampling an externally owned image through m.
	DrawImage(img image.Image, m Matrix) error
}

// Matrix is a column-major 4x4 texture-coordinate transform, in the layout
// camera stacks hand out for external images.
type Matrix [16]float32

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// FlipVertical maps v to 1-v, the usual orientation fix for camera images.
func FlipVertical() Matrix {
	m := Identity()
	m[5] = -1
	m[13] = 1
	return m
}

// surfaceToSource returns the affine map from destination pixel coordinates
// to source pixel coordinates for a full-screen quad. Only the 2D part of the
// matrix (u,v rows and translation) takes part; z and w are ignored.
func (m Matrix) surfaceToSource(dst, src image.Point) f64.Aff3 {
	dw, dh := float64(dst.X), float64(dst.Y)
	sw, sh := float64(src.X), float64(src.Y)
	return f64.Aff3{
		float64(m[0]) * sw / dw, float64(m[4]) * sw / dh, float64(m[12]) * sw,
		float64(m[1]) * sh / dw, float64(m[5]) * sh / dh, float64(m[13]) * sh,
	}
}

// sourceToSurface inverts surfaceToSource, which is what x/image/draw expects.
func (m Matrix) sourceToSurface(dst, src image.Point) (f64.Aff3, error) {
	a := m.surfaceToSource(dst, src)
	det := a[0]*a[4] - a[1]*a[3]
	if det == 0 {
		return f64.Aff3{}, ErrBadTransform
	}
	return f64.Aff3{
		a[4] / det, -a[1] / det, (a[1]*a[5] - a[2]*a[4]) / det,
		-a[3] / det, a[0] / det, (a[2]*a[3] - a[0]*a[5]) / det,
	}, nil
}
