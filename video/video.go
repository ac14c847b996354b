package video

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrConnection reports a source that could not be opened.
	ErrConnection = errors.New("connection error")

	// ErrBrokenConnection reports a source that stopped being readable mid-session.
	ErrBrokenConnection = errors.New("connection was interrupted")

	// ErrAlreadyBound reports a second attempt to bind a duration to a capture.
	ErrAlreadyBound = errors.New("duration already bound")
)

// Raster is the pixel data of one frame.
type Raster interface {
	Dimensions() (width, height int)
	Image() (image.Image, error)
}

// JPEGEncoder is implemented by rasters that can encode themselves.
type JPEGEncoder interface {
	JPEG(quality int) ([]byte, error)
}

// Frame is the result of one capture step.
//
// Ok is false when the source failed to deliver pixels while still being
// open; Raster is nil in that case. Sources may reuse the raster buffer, so
// a frame is only valid until the next pull.
type Frame struct {
	Index  uint64
	Ok     bool
	Raster Raster
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return !f.Ok || f.Raster == nil
}

// Source is an open live video source provided by a video I/O library.
type Source interface {
	IsOpened() bool
	Read() (Raster, bool)
	FPS() float64
	Dimensions() (width, height int)
	Close() error
}

// Opener connects to a source identified by uri.
type Opener func(uri string) (Source, error)

// BrokenConnectionError is returned when a source reports itself closed
// while frames are still being pulled.
type BrokenConnectionError struct {
	URI    string
	Frames uint64
}

func (e *BrokenConnectionError) Error() string {
	return fmt.Sprintf("%s after %d frames from %s, is the link correct?", ErrBrokenConnection, e.Frames, e.URI)
}

func (e *BrokenConnectionError) Unwrap() error {
	return ErrBrokenConnection
}

// ImageRaster adapts an image.Image to a Raster.
type ImageRaster struct {
	Img image.Image
}

func (r ImageRaster) Dimensions() (int, int) {
	b := r.Img.Bounds()
	return b.Dx(), b.Dy()
}

func (r ImageRaster) Image() (image.Image, error) {
	return r.Img, nil
}
