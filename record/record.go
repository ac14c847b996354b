package record

import (
	"errors"
	"fmt"
	"math"

	"rtsprecord/video"
)

var (
	// ErrSinkOpen reports an output that could not be created.
	ErrSinkOpen = errors.New("cannot open recording target")

	// ErrSinkWrite reports a frame the output rejected.
	ErrSinkWrite = errors.New("cannot write frame")
)

// Target describes an output container.
type Target struct {
	Path   string
	Codec  string
	FPS    float64
	Width  int
	Height int
}

// Validate checks the target before any file is created.
func (t Target) Validate() error {
	if t.Path == "" {
		return errors.New("output path is empty")
	}

	if len(t.Codec) != 4 {
		return fmt.Errorf("codec %q is not a four character code", t.Codec)
	}

	if math.IsNaN(t.FPS) || math.IsInf(t.FPS, 0) || t.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %v", t.FPS)
	}

	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", t.Width, t.Height)
	}

	return nil
}

func (t Target) String() string {
	return fmt.Sprintf("%s [%s %dx%d@%g]", t.Path, t.Codec, t.Width, t.Height, t.FPS)
}

// Writer is a container backend. Frames handed to Write already match the
// target size.
type Writer interface {
	Write(raster video.Raster) error
	Close() error
}

// Opener creates a Writer for a validated target.
type Opener func(target Target) (Writer, error)

// Option configures a Sink.
type Option func(*Sink)

// WithSkipEmpty decides whether frames without pixels are dropped (true) or
// rejected with ErrSinkWrite (false).
func WithSkipEmpty(skip bool) Option {
	return func(s *Sink) {
		s.skipEmpty = skip
	}
}

// Sink appends frames to one recording target in arrival order. It is not
// safe for concurrent use.
type Sink struct {
	target    Target
	writer    Writer
	skipEmpty bool

	written uint64
	skipped uint64
	closed  bool
}

// Open validates target and opens it with opener.
func Open(target Target, opener Opener, opts ...Option) (*Sink, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrSinkOpen, target.Path, err)
	}

	writer, err := opener(target)

	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrSinkOpen, target, err)
	}

	s := &Sink{target: target, writer: writer, skipEmpty: true}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Target returns the configuration the sink was opened with.
func (s *Sink) Target() Target {
	return s.target
}

// Written is the number of frames appended so far.
func (s *Sink) Written() uint64 {
	return s.written
}

// Skipped is the number of empty frames dropped so far.
func (s *Sink) Skipped() uint64 {
	return s.skipped
}

// Write appends one frame.
func (s *Sink) Write(frame video.Frame) error {
	if s.closed {
		return fmt.Errorf("%w %d: target %s is closed", ErrSinkWrite, frame.Index, s.target.Path)
	}

	if frame.Empty() {
		if s.skipEmpty {
			s.skipped++
			return nil
		}

		return fmt.Errorf("%w %d: frame is empty", ErrSinkWrite, frame.Index)
	}

	w, h := frame.Raster.Dimensions()

	if w != s.target.Width || h != s.target.Height {
		return fmt.Errorf("%w %d: frame size %dx%d does not match %dx%d",
			ErrSinkWrite, frame.Index, w, h, s.target.Width, s.target.Height)
	}

	if err := s.writer.Write(frame.Raster); err != nil {
		return fmt.Errorf("%w %d: %v", ErrSinkWrite, frame.Index, err)
	}

	s.written++

	return nil
}

// Close finalizes the container. It is safe to call more than once.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("%w: finalize %s: %v", ErrSinkWrite, s.target.Path, err)
	}

	return nil
}
