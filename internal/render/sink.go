package render

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"camviewer/internal/frame"
	"camviewer/internal/logger"
)

// SourceKind tells which storage the displayable texture samples from.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceOwnedPixels
	SourceExternalStream
)

func (k SourceKind) String() string {
	switch k {
	case SourceOwnedPixels:
		return "pixels"
	case SourceExternalStream:
		return "external"
	default:
		return "none"
	}
}

// ExternalImage is an image whose storage is updated by its producer outside
// the render context (the zero-copy camera path).
type ExternalImage interface {
	// Latest returns the most recent complete image, or nil if none arrived yet.
	Latest() image.Image
	// Release frees the image and its underlying handle.
	Release() error
}

// Binding describes the texture currently backing the display.
type Binding struct {
	TextureID TextureID
	Width     uint32
	Height    uint32
	Kind      SourceKind
}

// SinkStats is safe to read from any goroutine.
type SinkStats struct {
	Uploads  uint64
	Reinits  uint64
	Draws    uint64
	Failures uint64
	Kind     SourceKind
	Width    uint32
	Height   uint32
}

// TextureSink owns exactly one displayable texture. All methods except Stats
// must be called on the render context; that confinement is what keeps
// Draw from ever observing a partial upload.
type TextureSink struct {
	device     Device
	logger     *logger.Logger
	background color.RGBA

	binding  Binding
	external ExternalImage
	matrix   Matrix
	failure  error

	uploads  atomic.Uint64
	reinits  atomic.Uint64
	draws    atomic.Uint64
	failures atomic.Uint64
	snapshot atomic.Pointer[Binding]
}

// NewTextureSink creates a sink drawing on device. No GPU storage is created
// until the first upload or external bind.
func NewTextureSink(device Device, logger *logger.Logger) *TextureSink {
	s := &TextureSink{
		device:     device,
		logger:     logger,
		background: color.RGBA{A: 0xFF},
		matrix:     Identity(),
	}
	s.publish()
	return s
}

// UploadPixels writes f into the owned texture, reallocating storage first
// when the dimensions (or the source kind) change.
func (s *TextureSink) UploadPixels(f *frame.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if s.failure != nil {
		return fmt.Errorf("%w: %v", ErrDeviceLost, s.failure)
	}

	if s.binding.Kind == SourceExternalStream {
		s.releaseExternal()
	}

	if s.binding.TextureID == 0 {
		id, err := s.device.CreateTexture()
		if err != nil {
			return s.fail(fmt.Errorf("create texture: %w", err))
		}
		s.binding = Binding{TextureID: id}
	}

	if s.binding.Kind != SourceOwnedPixels || s.binding.Width != f.Width || s.binding.Height != f.Height {
		if err := s.device.AllocateTexture(s.binding.TextureID, int(f.Width), int(f.Height)); err != nil {
			return s.fail(fmt.Errorf("allocate texture: %w", err))
		}
		s.binding.Width, s.binding.Height = f.Width, f.Height
		s.binding.Kind = SourceOwnedPixels
		s.reinits.Add(1)
		s.logger.Info("Texture initialized: %dx%d", f.Width, f.Height)
	}

	if err := s.device.WriteTexture(s.binding.TextureID, f.Pix); err != nil {
		return s.fail(fmt.Errorf("write texture: %w", err))
	}
	s.uploads.Add(1)
	s.publish()
	return nil
}

// BindExternalStream makes subsequent draws sample img through m instead of
// the owned texture. Owned storage is dropped on the switch.
func (s *TextureSink) BindExternalStream(img ExternalImage, m Matrix) error {
	if img == nil {
		return fmt.Errorf("bind external stream: nil image")
	}
	if s.failure != nil {
		return fmt.Errorf("%w: %v", ErrDeviceLost, s.failure)
	}

	if s.binding.Kind == SourceOwnedPixels && s.binding.TextureID != 0 {
		s.device.DeleteTexture(s.binding.TextureID)
	}
	if s.external != nil && s.external != img {
		s.releaseExternal()
	}

	s.external = img
	s.matrix = m
	s.binding = Binding{Kind: SourceExternalStream}
	if latest := img.Latest(); latest != nil {
		size := latest.Bounds().Size()
		s.binding.Width, s.binding.Height = uint32(size.X), uint32(size.Y)
	}
	s.reinits.Add(1)
	s.publish()
	s.logger.Info("External stream bound")
	return nil
}

// ReleaseExternalStream releases the bound external image, if any.
func (s *TextureSink) ReleaseExternalStream() error {
	if s.external == nil {
		return nil
	}
	err := s.releaseExternal()
	s.publish()
	return err
}

// Draw clears the surface and draws whichever source is active. With nothing
// initialized, or after a device failure, only the clear happens.
func (s *TextureSink) Draw() error {
	s.device.Clear(s.background)
	if s.failure != nil {
		return nil
	}

	var err error
	switch s.binding.Kind {
	case SourceOwnedPixels:
		err = s.device.DrawTexture(s.binding.TextureID, Identity())
	case SourceExternalStream:
		img := s.external.Latest()
		if img == nil {
			return nil
		}
		err = s.device.DrawImage(img, s.matrix)
	default:
		return nil
	}

	if err != nil {
		return s.fail(fmt.Errorf("draw: %w", err))
	}
	s.draws.Add(1)
	return nil
}

// Reinitialize drops all owned GPU storage and clears a previous failure.
// A bound external stream survives.
func (s *TextureSink) Reinitialize() {
	if s.binding.TextureID != 0 {
		s.device.DeleteTexture(s.binding.TextureID)
	}
	s.failure = nil
	if s.external != nil {
		s.binding = Binding{Kind: SourceExternalStream}
	} else {
		s.binding = Binding{}
	}
	s.publish()
	s.logger.Info("Texture sink reinitialized")
}

// Destroy releases everything the sink owns.
func (s *TextureSink) Destroy() error {
	err := s.releaseExternal()
	if s.binding.TextureID != 0 {
		s.device.DeleteTexture(s.binding.TextureID)
	}
	s.binding = Binding{}
	s.publish()
	return err
}

// Binding returns the current binding. Render context only.
func (s *TextureSink) Binding() Binding {
	return s.binding
}

// Failed reports whether the sink is in the failed state. Render context only.
func (s *TextureSink) Failed() bool {
	return s.failure != nil
}

// Stats returns counters and the last published binding. Safe from any goroutine.
func (s *TextureSink) Stats() SinkStats {
	b := s.snapshot.Load()
	return SinkStats{
		Uploads:  s.uploads.Load(),
		Reinits:  s.reinits.Load(),
		Draws:    s.draws.Load(),
		Failures: s.failures.Load(),
		Kind:     b.Kind,
		Width:    b.Width,
		Height:   b.Height,
	}
}

func (s *TextureSink) releaseExternal() error {
	if s.external == nil {
		return nil
	}
	err := s.external.Release()
	if err != nil {
		s.logger.Warning("Failed to release external stream: %v", err)
	}
	s.external = nil
	if s.binding.Kind == SourceExternalStream {
		s.binding = Binding{}
	}
	return err
}

func (s *TextureSink) fail(err error) error {
	s.failure = err
	s.failures.Add(1)
	s.logger.Error("GPU resource failure, drawing disabled until reinitialized: %v", err)
	return err
}

func (s *TextureSink) publish() {
	b := s.binding
	s.snapshot.Store(&b)
}
