package video

import (
	"fmt"
	"io"
	"iter"
	"math"

	"rtsprecord/duration"
)

// State is the position of a Capture in its frame sequence.
type State int

const (
	StateOpen State = iota
	StateDone
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDone:
		return "done"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Option configures a Capture.
type Option func(*Capture)

// WithProgress registers a callback invoked once per whole second of
// native playback pulled from the source.
func WithProgress(fn func(second uint64)) Option {
	return func(c *Capture) {
		c.progress = fn
	}
}

// WithFallbackFPS sets the frame rate used when the source does not report one.
func WithFallbackFPS(fps float64) Option {
	return func(c *Capture) {
		c.fallbackFPS = fps
	}
}

// Capture is an open stream handle that yields frames until its duration
// bound is reached or the source drops. It is not safe for concurrent use.
type Capture struct {
	uri    string
	src    Source
	fps    float64
	width  int
	height int

	// index counts every read, elapsed only reads made against a bound
	index    uint64
	elapsed  uint64
	limit    uint64
	reported uint64

	bound    duration.Spec
	hasBound bool
	pulled   bool

	state  State
	broken *BrokenConnectionError
	closed bool

	progress    func(second uint64)
	fallbackFPS float64
}

// Open connects to uri through opener and reads the stream metadata.
func Open(uri string, opener Opener, opts ...Option) (*Capture, error) {
	src, err := opener(uri)

	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", ErrConnection, uri, err)
	}

	if src == nil || !src.IsOpened() {
		if src != nil {
			src.Close()
		}

		return nil, fmt.Errorf("%w: cannot open %s", ErrConnection, uri)
	}

	ctx := &Capture{uri: uri, src: src}

	for _, opt := range opts {
		opt(ctx)
	}

	ctx.fps = src.FPS()

	if math.IsNaN(ctx.fps) || math.IsInf(ctx.fps, 0) || ctx.fps <= 0 {
		if ctx.fallbackFPS <= 0 {
			src.Close()
			return nil, fmt.Errorf("%w: %s reported frame rate %v", ErrConnection, uri, ctx.fps)
		}

		ctx.fps = ctx.fallbackFPS
	}

	ctx.width, ctx.height = src.Dimensions()

	if ctx.width <= 0 || ctx.height <= 0 {
		src.Close()
		return nil, fmt.Errorf("%w: %s reported frame size %dx%d", ErrConnection, uri, ctx.width, ctx.height)
	}

	return ctx, nil
}

// URI returns the source identifier.
func (ctx *Capture) URI() string {
	return ctx.uri
}

// Width of the source frames at open time.
func (ctx *Capture) Width() int {
	return ctx.width
}

// Height of the source frames at open time.
func (ctx *Capture) Height() int {
	return ctx.height
}

// FPS is the native frame rate of the source.
func (ctx *Capture) FPS() float64 {
	return ctx.fps
}

// Index is the number of frames read so far.
func (ctx *Capture) Index() uint64 {
	return ctx.index
}

// State returns the current state of the frame sequence.
func (ctx *Capture) State() State {
	return ctx.state
}

// Bind sets the duration bound. It must be called once, before the first pull.
func (ctx *Capture) Bind(spec duration.Spec) error {
	if ctx.hasBound || ctx.pulled {
		return ErrAlreadyBound
	}

	ctx.bound = spec
	ctx.hasBound = true
	ctx.limit = spec.Frames(ctx.fps)

	return nil
}

// Next pulls one frame. It returns io.EOF once the bound is reached and a
// *BrokenConnectionError when the source is no longer open.
func (ctx *Capture) Next() (Frame, error) {
	ctx.pulled = true

	switch ctx.state {
	case StateDone:
		return Frame{}, io.EOF
	case StateBroken:
		return Frame{}, ctx.broken
	}

	if ctx.closed || !ctx.src.IsOpened() {
		ctx.state = StateBroken
		ctx.broken = &BrokenConnectionError{URI: ctx.uri, Frames: ctx.index}

		return Frame{}, ctx.broken
	}

	ctx.report()

	if ctx.bound.Bounded() {
		if ctx.elapsed >= ctx.limit {
			ctx.state = StateDone
			return Frame{}, io.EOF
		}

		ctx.elapsed++
	}

	return ctx.read(), nil
}

// Frames returns the remaining sequence as an iterator. The iteration ends
// silently at the bound and yields the broken connection error once.
func (ctx *Capture) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			frame, err := ctx.Next()

			if err == io.EOF {
				return
			}

			if !yield(frame, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the source. It is safe to call more than once.
func (ctx *Capture) Close() error {
	if ctx.closed {
		return nil
	}

	ctx.closed = true

	return ctx.src.Close()
}

func (ctx *Capture) read() Frame {
	raster, ok := ctx.src.Read()

	frame := Frame{Index: ctx.index, Ok: ok && raster != nil}

	if frame.Ok {
		frame.Raster = raster
	}

	ctx.index++

	return frame
}

func (ctx *Capture) report() {
	if ctx.progress == nil {
		return
	}

	second := uint64(float64(ctx.index) / ctx.fps)

	if second > ctx.reported {
		ctx.reported = second
		ctx.progress(second)
	}
}
