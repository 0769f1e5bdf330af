package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"camviewer/internal/frame"
	"camviewer/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// frameHeaderSize is the width and height, both little-endian uint32, that
// precede the packed RGBA pixels in a frame file.
const frameHeaderSize = 8

// FileSource watches a single file and emits its content as a frame every
// time a producer rewrites it.
type FileSource struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *logger.Logger
}

// NewFileSource watches path. The directory must exist; the file may appear later.
func NewFileSource(path string, logger *logger.Logger) (*FileSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	// Watching the directory survives producers that replace the file by rename
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &FileSource{
		path:    abs,
		watcher: watcher,
		logger:  logger,
	}, nil
}

func (s *FileSource) Kind() Kind { return KindFile }

func (s *FileSource) Run(ctx context.Context, c Consumer) error {
	s.logger.Info("👀 Watching %s for frames", s.path)

	var last []byte
	deliver := func() {
		data, err := os.ReadFile(s.path)
		if err != nil {
			c.OnSourceError(fmt.Errorf("%w: %v", ErrUnavailable, err))
			return
		}
		// skip the same event triggered twice
		if bytes.Equal(data, last) {
			return
		}
		f, err := DecodeFrame(data)
		if err != nil {
			c.OnSourceError(err)
			return
		}
		last = data
		c.OnFrameAvailable(f)
	}

	if _, err := os.Stat(s.path); err == nil {
		deliver()
	} else {
		c.OnSourceError(fmt.Errorf("%w: %s does not exist yet", ErrUnavailable, s.path))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				deliver()
			case event.Has(fsnotify.Remove):
				c.OnSourceError(fmt.Errorf("%w: %s was removed", ErrUnavailable, s.path))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warning("Watcher error: %v", err)
		}
	}
}

func (s *FileSource) Close() error {
	return s.watcher.Close()
}

// DecodeFrame parses a frame file.
func DecodeFrame(data []byte) (*frame.Frame, error) {
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("invalid frame data: too short")
	}
	f := &frame.Frame{
		Width:     binary.LittleEndian.Uint32(data[0:4]),
		Height:    binary.LittleEndian.Uint32(data[4:8]),
		Timestamp: time.Now(),
	}
	pix := data[frameHeaderSize:]
	f.Pix = make([]byte, len(pix))
	copy(f.Pix, pix)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeFrame serializes f in the frame file format.
func EncodeFrame(f *frame.Frame) []byte {
	out := make([]byte, frameHeaderSize+len(f.Pix))
	binary.LittleEndian.PutUint32(out[0:4], f.Width)
	binary.LittleEndian.PutUint32(out[4:8], f.Height)
	copy(out[frameHeaderSize:], f.Pix)
	return out
}

// WriteFrameFile replaces path with f atomically, so a watcher never reads a half-written frame.
func WriteFrameFile(path string, f *frame.Frame) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(EncodeFrame(f)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
