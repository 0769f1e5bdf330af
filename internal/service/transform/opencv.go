package transform

import (
	"fmt"
	"image"
	"sync"

	"camviewer/internal/frame"
	"camviewer/internal/logger"

	"gocv.io/x/gocv"
)

const (
	cannyLow       = 50
	cannyHigh      = 150
	edgeBlurSigma  = 1.4
	blurKernelSize = 15
)

// OpenCV runs the processing modes with gocv. Apply is safe for concurrent
// use; Close waits for an in-flight Apply to finish.
type OpenCV struct {
	mu     sync.Mutex
	closed bool
	logger *logger.Logger
}

// NewOpenCV creates the gocv-backed transform.
func NewOpenCV(logger *logger.Logger) *OpenCV {
	logger.Info("Image transform initialized (OpenCV %s)", gocv.OpenCVVersion())
	return &OpenCV{logger: logger}
}

// Apply returns a new frame with mode applied. The input frame is never modified.
func (t *OpenCV) Apply(f *frame.Frame, mode frame.Mode) (*frame.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unsupported processing mode %v", mode)
	}

	src, err := gocv.NewMatFromBytes(int(f.Height), int(f.Width), gocv.MatTypeCV8UC4, f.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap frame: %v", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	switch mode {
	case frame.ModeGrayscale:
		err = grayscale(src, &dst)
	case frame.ModeEdgeDetect:
		err = edgeDetect(src, &dst)
	case frame.ModeBlur:
		err = gocv.GaussianBlur(src, &dst, image.Pt(blurKernelSize, blurKernelSize), 0, 0, gocv.BorderDefault)
	case frame.ModePassthrough:
		src.CopyTo(&dst)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply %v: %v", mode, err)
	}

	return toFrame(f, dst)
}

// Close releases the transform. Later Apply calls return ErrClosed.
func (t *OpenCV) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.logger.Info("Image transform released")
	return nil
}

func grayscale(src gocv.Mat, dst *gocv.Mat) error {
	gray := gocv.NewMat()
	defer gray.Close()

	if err := gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray); err != nil {
		return err
	}
	return gocv.CvtColor(gray, dst, gocv.ColorGrayToRGBA)
}

func edgeDetect(src gocv.Mat, dst *gocv.Mat) error {
	gray := gocv.NewMat()
	defer gray.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	edges := gocv.NewMat()
	defer edges.Close()

	if err := gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray); err != nil {
		return err
	}
	// Wygładzenie przed Canny, inaczej szum daje mnóstwo krawędzi
	if err := gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), edgeBlurSigma, edgeBlurSigma, gocv.BorderDefault); err != nil {
		return err
	}
	if err := gocv.Canny(blurred, &edges, cannyLow, cannyHigh); err != nil {
		return err
	}
	return gocv.CvtColor(edges, dst, gocv.ColorGrayToRGBA)
}

// toFrame copies the Mat data into a new frame carrying the input's metadata.
func toFrame(in *frame.Frame, mat gocv.Mat) (*frame.Frame, error) {
	if mat.Empty() || mat.Cols() != int(in.Width) || mat.Rows() != int(in.Height) {
		return nil, fmt.Errorf("transform produced %dx%d, want %dx%d", mat.Cols(), mat.Rows(), in.Width, in.Height)
	}
	out := &frame.Frame{
		Width:     in.Width,
		Height:    in.Height,
		Pix:       make([]byte, len(in.Pix)),
		Seq:       in.Seq,
		Timestamp: in.Timestamp,
	}
	if n := copy(out.Pix, mat.ToBytes()); n != len(out.Pix) {
		return nil, fmt.Errorf("transform produced %d bytes, want %d", n, len(out.Pix))
	}
	return out, nil
}
