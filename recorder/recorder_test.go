package recorder

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtsprecord/duration"
	"rtsprecord/events"
	"rtsprecord/record"
	"rtsprecord/video"
)

type fakeSource struct {
	fps     float64
	width   int
	height  int
	breakAt int
	reads   int
	closed  bool
	onRead  func(n int)
}

func (s *fakeSource) IsOpened() bool {
	return !s.closed && (s.breakAt < 0 || s.reads < s.breakAt)
}

func (s *fakeSource) Read() (video.Raster, bool) {
	s.reads++

	if s.onRead != nil {
		s.onRead(s.reads)
	}

	return video.ImageRaster{Img: image.NewGray(image.Rect(0, 0, s.width, s.height))}, true
}

func (s *fakeSource) FPS() float64 {
	return s.fps
}

func (s *fakeSource) Dimensions() (int, int) {
	return s.width, s.height
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeWriter struct {
	target  record.Target
	written int
	failAt  int
	closed  bool
}

func (w *fakeWriter) Write(video.Raster) error {
	if w.failAt > 0 && w.written+1 == w.failAt {
		return errors.New("disk full")
	}

	w.written++

	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fixture struct {
	source *fakeSource
	writer *fakeWriter
	events []events.Event
	opened int
}

func newFixture(fps float64, breakAt int) *fixture {
	return &fixture{
		source: &fakeSource{fps: fps, width: 32, height: 24, breakAt: breakAt},
		writer: &fakeWriter{},
	}
}

func (f *fixture) recorder(opts ...Option) *Recorder {
	base := []Option{
		WithSourceOpener(func(string) (video.Source, error) {
			f.opened++
			return f.source, nil
		}),
		WithWriterOpener(func(target record.Target) (record.Writer, error) {
			f.writer.target = target
			return f.writer, nil
		}),
		WithReporter(events.ReporterFunc(func(e events.Event) {
			f.events = append(f.events, e)
		})),
	}

	return New(append(base, opts...)...)
}

func (f *fixture) kinds() []events.Kind {
	var kinds []events.Kind

	for _, e := range f.events {
		if e.Kind != events.Progress {
			kinds = append(kinds, e.Kind)
		}
	}

	return kinds
}

func TestRecord_Completed(t *testing.T) {
	f := newFixture(25, -1)

	result, err := f.recorder().Record(context.Background(), Request{
		Source:   "rtsp://camera/stream1",
		Output:   "out.avi",
		Duration: duration.Text("3sec"),
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, uint64(75), result.Frames)
	assert.Equal(t, 75, f.writer.written)
	assert.NotEmpty(t, result.SessionID)
	assert.True(t, f.writer.closed)
	assert.True(t, f.source.closed)

	assert.Equal(t, []events.Kind{events.Started, events.Saved}, f.kinds())

	last := f.events[len(f.events)-1]
	assert.Equal(t, result.SessionID, last.Session)
	assert.Equal(t, uint64(75), last.Frames)
}

func TestRecord_TargetFromCapture(t *testing.T) {
	f := newFixture(30, -1)

	_, err := f.recorder(WithOutputFPS(12), WithCodec("XVID")).Record(context.Background(), Request{
		Source:   "rtsp://camera/stream1",
		Output:   "out.avi",
		Duration: duration.Numeric(1),
	})

	require.NoError(t, err)
	assert.Equal(t, record.Target{Path: "out.avi", Codec: "XVID", FPS: 12, Width: 32, Height: 24}, f.writer.target)
	assert.Equal(t, 30, f.writer.written)
}

func TestRecord_Progress(t *testing.T) {
	f := newFixture(10, -1)

	_, err := f.recorder().Record(context.Background(), Request{
		Source:   "0",
		Output:   "out.avi",
		Duration: duration.Numeric(3),
	})

	require.NoError(t, err)

	var seconds []uint64

	for _, e := range f.events {
		if e.Kind == events.Progress {
			seconds = append(seconds, e.Second)
		}
	}

	assert.Equal(t, []uint64{1, 2, 3}, seconds)
}

func TestRecord_Broken(t *testing.T) {
	f := newFixture(25, 7)

	result, err := f.recorder().Record(context.Background(), Request{
		Source:   "rtsp://camera/stream1",
		Output:   "out.avi",
		Duration: duration.None{},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, video.ErrBrokenConnection)
	assert.Equal(t, StatusBroken, result.Status)
	assert.Equal(t, uint64(7), result.Frames)
	assert.True(t, f.writer.closed)
	assert.True(t, f.source.closed)
	assert.Equal(t, []events.Kind{events.Started, events.ConnectionLost}, f.kinds())
}

func TestRecord_InvalidDuration(t *testing.T) {
	f := newFixture(25, -1)

	_, err := f.recorder().Record(context.Background(), Request{
		Source:   "rtsp://camera/stream1",
		Output:   "out.avi",
		Duration: duration.Text("5weeks"),
	})

	assert.ErrorIs(t, err, duration.ErrInvalidDuration)
	assert.Zero(t, f.opened)
	assert.Empty(t, f.events)
}

func TestRecord_ConnectionError(t *testing.T) {
	rec := New(
		WithSourceOpener(func(string) (video.Source, error) {
			return nil, errors.New("no route to host")
		}),
		WithWriterOpener(func(record.Target) (record.Writer, error) {
			t.Fatal("writer must not be opened")
			return nil, nil
		}),
	)

	_, err := rec.Record(context.Background(), Request{Source: "rtsp://x", Output: "out.avi", Duration: duration.Numeric(1)})
	assert.ErrorIs(t, err, video.ErrConnection)
}

func TestRecord_SinkOpenError(t *testing.T) {
	f := newFixture(25, -1)

	rec := New(
		WithSourceOpener(func(string) (video.Source, error) { return f.source, nil }),
		WithWriterOpener(func(record.Target) (record.Writer, error) {
			return nil, errors.New("permission denied")
		}),
	)

	_, err := rec.Record(context.Background(), Request{Source: "rtsp://x", Output: "/root/out.avi", Duration: duration.Numeric(1)})
	assert.ErrorIs(t, err, record.ErrSinkOpen)
	assert.True(t, f.source.closed)
}

func TestRecord_WriteError(t *testing.T) {
	f := newFixture(25, -1)
	f.writer.failAt = 5

	result, err := f.recorder().Record(context.Background(), Request{Source: "rtsp://x", Output: "out.avi", Duration: duration.Numeric(1)})

	assert.ErrorIs(t, err, record.ErrSinkWrite)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, uint64(4), result.Frames)
	assert.True(t, f.writer.closed)
	assert.Equal(t, []events.Kind{events.Started, events.Failed}, f.kinds())
}

func TestRecord_Cancelled(t *testing.T) {
	f := newFixture(25, -1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.source.onRead = func(n int) {
		if n == 10 {
			cancel()
		}
	}

	result, err := f.recorder().Record(ctx, Request{Source: "rtsp://x", Output: "out.avi", Duration: duration.None{}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusInterrupted, result.Status)
	assert.Equal(t, uint64(10), result.Frames)
	assert.True(t, f.writer.closed)
	assert.True(t, f.source.closed)
	assert.Equal(t, []events.Kind{events.Started, events.Cancelled}, f.kinds())
}

func TestRecord_ZeroDuration(t *testing.T) {
	f := newFixture(25, -1)

	result, err := f.recorder().Record(context.Background(), Request{Source: "rtsp://x", Output: "out.avi", Duration: duration.Numeric(0)})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Zero(t, result.Frames)
	assert.True(t, f.writer.closed)
}

func TestRecord_MissingOpeners(t *testing.T) {
	_, err := New().Record(context.Background(), Request{Source: "x", Output: "y"})
	assert.Error(t, err)
}
