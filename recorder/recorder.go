// Package recorder runs recording sessions: it connects to a live stream,
// drains its frames into an output container until the duration bound is
// reached or the connection drops, and reports how the session ended.
//
// A session owns exactly one capture and one sink. Both are released on
// every exit path. Frames already written are never rolled back: a broken
// connection, a cancelled context or a rejected frame all leave a valid
// partial recording behind.
//
// Example usage:
//
//	rec := recorder.New(
//		recorder.WithSourceOpener(cameras.Opener),
//		recorder.WithWriterOpener(ffmpeg.Open),
//		recorder.WithReporter(stream),
//	)
//	result, err := rec.Record(ctx, recorder.Request{
//		Source:   "rtsp://camera/stream1",
//		Output:   "output.avi",
//		Duration: duration.Text("5min"),
//	})
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"rtsprecord/duration"
	"rtsprecord/events"
	"rtsprecord/record"
	"rtsprecord/video"
)

// Defaults of the output container, independent of the source frame rate.
const (
	DefaultFPS   = 24.0
	DefaultCodec = "MJPG"
)

// Status is how a session ended.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusBroken      Status = "broken"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Request describes one recording run.
type Request struct {
	Source   string
	Output   string
	Duration duration.Value
}

// Result describes the output of a session, complete or partial.
type Result struct {
	SessionID string
	Source    string
	Output    string
	Status    Status
	Frames    uint64
	Skipped   uint64
	Elapsed   time.Duration
	Err       error
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSourceOpener sets how stream sources are opened.
func WithSourceOpener(opener video.Opener) Option {
	return func(r *Recorder) {
		r.openSource = opener
	}
}

// WithWriterOpener sets the container backend.
func WithWriterOpener(opener record.Opener) Option {
	return func(r *Recorder) {
		r.openWriter = opener
	}
}

// WithReporter sets where session events go.
func WithReporter(reporter events.Reporter) Option {
	return func(r *Recorder) {
		r.reporter = reporter
	}
}

// WithLogger sets the logger.
func WithLogger(logger hclog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithOutputFPS sets the frame rate written to the container.
func WithOutputFPS(fps float64) Option {
	return func(r *Recorder) {
		r.fps = fps
	}
}

// WithCodec sets the four character codec code of the container.
func WithCodec(codec string) Option {
	return func(r *Recorder) {
		r.codec = codec
	}
}

// WithSkipEmpty decides whether failed reads are dropped or fail the session.
func WithSkipEmpty(skip bool) Option {
	return func(r *Recorder) {
		r.skipEmpty = skip
	}
}

// WithFallbackFPS sets the native rate assumed for sources that report none.
func WithFallbackFPS(fps float64) Option {
	return func(r *Recorder) {
		r.fallbackFPS = fps
	}
}

// Recorder creates recording sessions. It holds no per-session state and
// can run several sessions, each from its own goroutine.
type Recorder struct {
	openSource  video.Opener
	openWriter  record.Opener
	reporter    events.Reporter
	logger      hclog.Logger
	fps         float64
	codec       string
	skipEmpty   bool
	fallbackFPS float64
}

// New creates a Recorder. A source and a writer opener must be supplied.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		reporter:  events.Discard,
		logger:    hclog.NewNullLogger(),
		fps:       DefaultFPS,
		codec:     DefaultCodec,
		skipEmpty: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Record runs one session. Cancelling ctx stops pulling frames; the frame in
// flight is still written.
//
// Errors before the first frame (duration, connection, output) are returned
// with a zero Result. Once frames flow, the Result always describes the
// output on disk and the error, if any, explains why the session ended early.
func (r *Recorder) Record(ctx context.Context, req Request) (Result, error) {
	if r.openSource == nil || r.openWriter == nil {
		return Result{}, errors.New("recorder: source and writer openers are required")
	}

	bound, err := duration.Parse(req.Duration)

	if err != nil {
		return Result{}, err
	}

	s, err := r.open(req)

	if err != nil {
		return Result{}, err
	}

	defer s.close()

	return s.run(ctx, bound)
}

func (r *Recorder) open(req Request) (*Session, error) {
	id := uuid.NewString()
	logger := r.logger.With("session", id)

	var s *Session

	capture, err := video.Open(req.Source, r.openSource,
		video.WithFallbackFPS(r.fallbackFPS),
		video.WithProgress(func(second uint64) {
			s.report(events.Progress, func(e *events.Event) {
				e.Second = second
			})
		}),
	)

	if err != nil {
		logger.Error("failed to open stream", "source", req.Source, "error", err)
		return nil, err
	}

	target := record.Target{
		Path:   req.Output,
		Codec:  r.codec,
		FPS:    r.fps,
		Width:  capture.Width(),
		Height: capture.Height(),
	}

	sink, err := record.Open(target, r.openWriter, record.WithSkipEmpty(r.skipEmpty))

	if err != nil {
		capture.Close()
		logger.Error("failed to open output", "output", req.Output, "error", err)
		return nil, err
	}

	s = &Session{
		ID:       id,
		Capture:  capture,
		Sink:     sink,
		reporter: r.reporter,
		logger:   logger,
	}

	logger.Debug("session opened",
		"source", req.Source,
		"native_fps", capture.FPS(),
		"target", target.String(),
	)

	return s, nil
}

// Session binds one capture to one sink for a single recording run.
type Session struct {
	ID      string
	Capture *video.Capture
	Sink    *record.Sink

	reporter events.Reporter
	logger   hclog.Logger
	started  time.Time
}

func (s *Session) run(ctx context.Context, bound duration.Spec) (Result, error) {
	if err := s.Capture.Bind(bound); err != nil {
		return Result{}, err
	}

	s.started = time.Now()
	s.report(events.Started, nil)

	s.logger.Info("recording",
		"source", s.Capture.URI(),
		"output", s.Sink.Target().Path,
		"duration", bound.String(),
	)

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(StatusInterrupted, events.Cancelled, err)
		}

		frame, err := s.Capture.Next()

		if err == io.EOF {
			break
		}

		if err != nil {
			return s.finish(StatusBroken, events.ConnectionLost, err)
		}

		if err := s.Sink.Write(frame); err != nil {
			return s.finish(StatusFailed, events.Failed, err)
		}
	}

	if err := s.Sink.Close(); err != nil {
		return s.finish(StatusFailed, events.Failed, err)
	}

	return s.finish(StatusCompleted, events.Saved, nil)
}

func (s *Session) finish(status Status, kind events.Kind, err error) (Result, error) {
	// flush the partial output before reporting it
	if closeErr := s.Sink.Close(); closeErr != nil && err == nil {
		status, kind, err = StatusFailed, events.Failed, closeErr
	}

	result := Result{
		SessionID: s.ID,
		Source:    s.Capture.URI(),
		Output:    s.Sink.Target().Path,
		Status:    status,
		Frames:    s.Sink.Written(),
		Skipped:   s.Sink.Skipped(),
		Elapsed:   time.Since(s.started),
		Err:       err,
	}

	s.report(kind, func(e *events.Event) {
		e.Frames = result.Frames
		e.Err = err
	})

	if err != nil {
		return result, fmt.Errorf("recording %s: %w", status, err)
	}

	return result, nil
}

func (s *Session) report(kind events.Kind, fill func(e *events.Event)) {
	if s == nil {
		return
	}

	e := events.Event{
		Session: s.ID,
		Kind:    kind,
		Time:    time.Now(),
		Source:  s.Capture.URI(),
		Output:  s.Sink.Target().Path,
	}

	if fill != nil {
		fill(&e)
	}

	s.reporter.Report(e)
}

func (s *Session) close() {
	if err := s.Sink.Close(); err != nil {
		s.logger.Warn("failed to finalize output", "error", err)
	}

	if err := s.Capture.Close(); err != nil {
		s.logger.Warn("failed to release stream", "error", err)
	}
}
