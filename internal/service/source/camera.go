package source

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"camviewer/internal/frame"
	"camviewer/internal/logger"
	"camviewer/internal/render"

	"gocv.io/x/gocv"
)

// retryDelay is the pause after a failed read before the next attempt.
const retryDelay = 500 * time.Millisecond

// ProbeCamera opens and immediately closes the device.
func ProbeCamera(device string) bool {
	vc, err := openDevice(device)
	if err != nil {
		return false
	}
	defer vc.Close()
	return vc.IsOpened()
}

func openDevice(device string) (*gocv.VideoCapture, error) {
	// Numer urządzenia albo URL/ścieżka
	if id, err := strconv.Atoi(device); err == nil {
		return gocv.OpenVideoCapture(id)
	}
	return gocv.OpenVideoCapture(device)
}

// capture reads BGR frames from a camera and converts them to RGBA. It is
// used from a single goroutine.
type capture struct {
	device string
	size   image.Point
	fps    int
	logger *logger.Logger

	vc   *gocv.VideoCapture
	bgr  gocv.Mat
	rgba gocv.Mat
}

func newCapture(device string, size image.Point, fps int, logger *logger.Logger) *capture {
	return &capture{device: device, size: size, fps: fps, logger: logger}
}

func (c *capture) open() error {
	vc, err := openDevice(c.device)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: camera %s is not opened", ErrUnavailable, c.device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.size.X))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.size.Y))
	if c.fps > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}

	c.vc = vc
	c.bgr = gocv.NewMat()
	c.rgba = gocv.NewMat()
	c.logger.Info("📷 Camera %s opened at %.0fx%.0f", c.device,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))
	return nil
}

// read grabs the next frame as packed RGBA.
func (c *capture) read() (*frame.Frame, error) {
	if ok := c.vc.Read(&c.bgr); !ok || c.bgr.Empty() {
		return nil, fmt.Errorf("%w: camera %s returned no frame", ErrUnavailable, c.device)
	}
	if err := gocv.CvtColor(c.bgr, &c.rgba, gocv.ColorBGRToRGBA); err != nil {
		return nil, fmt.Errorf("failed to convert camera frame: %v", err)
	}
	f := &frame.Frame{
		Width:     uint32(c.rgba.Cols()),
		Height:    uint32(c.rgba.Rows()),
		Pix:       c.rgba.ToBytes(),
		Timestamp: time.Now(),
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *capture) close() error {
	if c.vc == nil {
		return nil
	}
	c.bgr.Close()
	c.rgba.Close()
	err := c.vc.Close()
	c.vc = nil
	c.logger.Info("📷 Camera %s closed", c.device)
	return err
}

// CameraSource delivers owned RGBA frames that go through the transform.
type CameraSource struct {
	cam    *capture
	logger *logger.Logger
}

func newCameraSource(cam *capture, logger *logger.Logger) *CameraSource {
	return &CameraSource{cam: cam, logger: logger}
}

func (s *CameraSource) Kind() Kind { return KindPixel }

func (s *CameraSource) Run(ctx context.Context, c Consumer) error {
	if err := s.cam.open(); err != nil {
		c.OnSourceError(err)
		return err
	}
	defer s.cam.close()

	for ctx.Err() == nil {
		f, err := s.cam.read()
		if err != nil {
			c.OnSourceError(err)
			if !sleepCtx(ctx, retryDelay) {
				break
			}
			continue
		}
		c.OnFrameAvailable(f)
	}
	return nil
}

func (s *CameraSource) Close() error { return nil }

// StreamSource binds the camera image to the sink and then only refreshes
// it; frames never pass through the transform. If the sink drops the binding
// (a fallback pattern replaced it) the next good frame binds a fresh image.
type StreamSource struct {
	cam    *capture
	logger *logger.Logger
}

func newStreamSource(cam *capture, logger *logger.Logger) *StreamSource {
	return &StreamSource{cam: cam, logger: logger}
}

func (s *StreamSource) Kind() Kind { return KindStream }

func (s *StreamSource) Run(ctx context.Context, c Consumer) error {
	if err := s.cam.open(); err != nil {
		c.OnSourceError(err)
		return err
	}
	defer s.cam.close()

	var shared *render.SharedImage
	for ctx.Err() == nil {
		f, err := s.cam.read()
		if err != nil {
			c.OnSourceError(err)
			if !sleepCtx(ctx, retryDelay) {
				break
			}
			continue
		}

		if shared == nil || shared.Released() {
			shared = render.NewSharedImage(nil)
			// Camera rows arrive top-down like the surface, so no flip
			if err := c.AttachExternalStream(ctx, shared, render.Identity()); err != nil {
				shared.Release()
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to attach camera stream: %w", err)
			}
		}
		if shared.Update(f.ToRGBA()) {
			c.OnExternalFrame(f.Width, f.Height)
		}
	}
	return nil
}

func (s *StreamSource) Close() error { return nil }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
