package render

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"
)

// SoftwareDevice implements Device on CPU memory. The surface plays the role
// of the window back buffer.
type SoftwareDevice struct {
	surface  *image.RGBA
	textures map[TextureID]*image.RGBA
	nextID   TextureID
	scaler   xdraw.Interpolator

	draws atomic.Uint64
}

// Surface size used when the configured one is not positive.
const (
	DefaultSurfaceWidth  = 1280
	DefaultSurfaceHeight = 720
)

// NewSoftwareDevice creates a device with a width x height surface.
func NewSoftwareDevice(width, height int) *SoftwareDevice {
	if width <= 0 || height <= 0 {
		width, height = DefaultSurfaceWidth, DefaultSurfaceHeight
	}
	return &SoftwareDevice{
		surface:  image.NewRGBA(image.Rect(0, 0, width, height)),
		textures: make(map[TextureID]*image.RGBA),
		scaler:   xdraw.BiLinear,
	}
}

func (d *SoftwareDevice) CreateTexture() (TextureID, error) {
	d.nextID++
	d.textures[d.nextID] = image.NewRGBA(image.Rectangle{})
	return d.nextID, nil
}

func (d *SoftwareDevice) AllocateTexture(id TextureID, width, height int) error {
	if _, ok := d.textures[id]; !ok {
		return fmt.Errorf("allocate texture %d: unknown texture", id)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("allocate texture %d: invalid size %dx%d", id, width, height)
	}
	d.textures[id] = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

func (d *SoftwareDevice) WriteTexture(id TextureID, pix []byte) error {
	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("write texture %d: unknown texture", id)
	}
	if len(pix) != len(tex.Pix) {
		return fmt.Errorf("write texture %d: got %d bytes, storage holds %d", id, len(pix), len(tex.Pix))
	}
	copy(tex.Pix, pix)
	return nil
}

func (d *SoftwareDevice) DeleteTexture(id TextureID) {
	delete(d.textures, id)
}

func (d *SoftwareDevice) Clear(c color.RGBA) {
	xdraw.Draw(d.surface, d.surface.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
}

func (d *SoftwareDevice) DrawTexture(id TextureID, m Matrix) error {
	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("draw texture %d: unknown texture", id)
	}
	return d.DrawImage(tex, m)
}

func (d *SoftwareDevice) DrawImage(img image.Image, m Matrix) error {
	src := img.Bounds()
	if src.Empty() {
		return nil
	}
	s2d, err := m.sourceToSurface(d.surface.Bounds().Size(), src.Size())
	if err != nil {
		return err
	}
	// Transform works in source-space coordinates relative to src.Min
	s2d[2] -= s2d[0]*float64(src.Min.X) + s2d[1]*float64(src.Min.Y)
	s2d[5] -= s2d[3]*float64(src.Min.X) + s2d[4]*float64(src.Min.Y)

	d.scaler.Transform(d.surface, s2d, img, src, xdraw.Src, nil)
	d.draws.Add(1)
	return nil
}

// Draws returns the number of successful draw calls.
func (d *SoftwareDevice) Draws() uint64 {
	return d.draws.Load()
}

// Snapshot copies the current surface. Render context only.
func (d *SoftwareDevice) Snapshot() *image.RGBA {
	out := image.NewRGBA(d.surface.Bounds())
	copy(out.Pix, d.surface.Pix)
	return out
}

// EncodeJPEG encodes the current surface as JPEG. Render context only.
func (d *SoftwareDevice) EncodeJPEG() ([]byte, error) {
	b := d.surface.Bounds()
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, d.surface.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap surface: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR); err != nil {
		return nil, fmt.Errorf("failed to convert surface: %w", err)
	}

	buf, err := gocv.IMEncode(".jpg", bgr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode surface: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
