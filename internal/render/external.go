package render

import (
	"image"
	"sync"
)

// SharedImage is an ExternalImage fed by a producer goroutine. The producer
// writes into a back buffer and swaps it in whole, so Latest never returns a
// partially written image. A buffer handed out by Latest is never written
// again until a later Latest call has replaced it.
type SharedImage struct {
	mu        sync.Mutex
	front     *image.RGBA
	back      *image.RGBA
	lent      *image.RGBA
	released  bool
	onRelease func() error
}

// NewSharedImage creates an empty shared image. onRelease, if not nil, frees
// the producer-side handle and runs exactly once.
func NewSharedImage(onRelease func() error) *SharedImage {
	return &SharedImage{onRelease: onRelease}
}

// Update copies img into the back buffer and publishes it. It returns false
// once the image has been released.
func (s *SharedImage) Update(img *image.RGBA) bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return false
	}
	back := s.back
	s.back = nil
	s.mu.Unlock()

	// The copy happens outside the lock; only the swap is serialized.
	if back == nil || back.Bounds() != img.Bounds() {
		back = image.NewRGBA(img.Bounds())
	}
	copy(back.Pix, img.Pix)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	if s.front != s.lent {
		s.back = s.front
	}
	s.front = back
	return true
}

// Latest returns the most recent complete image.
func (s *SharedImage) Latest() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.front == nil {
		return nil
	}
	s.lent = s.front
	return s.front
}

// Release drops both buffers and frees the underlying handle.
func (s *SharedImage) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.front, s.back, s.lent = nil, nil, nil
	onRelease := s.onRelease
	s.mu.Unlock()

	if onRelease != nil {
		return onRelease()
	}
	return nil
}

// Released reports whether Release has been called.
func (s *SharedImage) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
