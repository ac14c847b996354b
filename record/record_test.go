package record

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtsprecord/video"
)

type fakeWriter struct {
	rasters  []video.Raster
	failAt   int
	closed   int
	closeErr error
}

func (ctx *fakeWriter) Write(r video.Raster) error {
	if ctx.failAt > 0 && len(ctx.rasters)+1 == ctx.failAt {
		return errors.New("encoder rejected frame")
	}

	ctx.rasters = append(ctx.rasters, r)

	return nil
}

func (ctx *fakeWriter) Close() error {
	ctx.closed++
	return ctx.closeErr
}

func target() Target {
	return Target{Path: "out.avi", Codec: "MJPG", FPS: 24, Width: 4, Height: 3}
}

func frame(i uint64, w, h int) video.Frame {
	return video.Frame{
		Index:  i,
		Ok:     true,
		Raster: video.ImageRaster{Img: image.NewGray(image.Rect(0, 0, w, h))},
	}
}

func openFake(t *testing.T, opts ...Option) (*Sink, *fakeWriter) {
	t.Helper()

	w := &fakeWriter{}

	s, err := Open(target(), func(Target) (Writer, error) { return w, nil }, opts...)
	require.NoError(t, err)

	return s, w
}

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Target)
	}{
		{"empty path", func(t *Target) { t.Path = "" }},
		{"short codec", func(t *Target) { t.Codec = "MJP" }},
		{"long codec", func(t *Target) { t.Codec = "MJPEG" }},
		{"zero fps", func(t *Target) { t.FPS = 0 }},
		{"negative fps", func(t *Target) { t.FPS = -24 }},
		{"zero width", func(t *Target) { t.Width = 0 }},
		{"zero height", func(t *Target) { t.Height = 0 }},
	}

	require.NoError(t, target().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := target()
			tt.mutate(&tg)

			opened := false

			_, err := Open(tg, func(Target) (Writer, error) {
				opened = true
				return &fakeWriter{}, nil
			})

			assert.ErrorIs(t, err, ErrSinkOpen)
			assert.False(t, opened, "opener must not run for an invalid target")
		})
	}
}

func TestOpen_BackendError(t *testing.T) {
	_, err := Open(target(), func(Target) (Writer, error) {
		return nil, errors.New("permission denied")
	})

	require.ErrorIs(t, err, ErrSinkOpen)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestWrite_PreservesOrder(t *testing.T) {
	s, w := openFake(t)

	var want []video.Raster

	for i := range uint64(10) {
		f := frame(i, 4, 3)
		want = append(want, f.Raster)
		require.NoError(t, s.Write(f))
	}

	assert.Equal(t, uint64(10), s.Written())
	assert.Equal(t, want, w.rasters)
}

func TestWrite_DimensionMismatch(t *testing.T) {
	s, w := openFake(t)

	err := s.Write(frame(0, 8, 6))
	require.ErrorIs(t, err, ErrSinkWrite)
	assert.Contains(t, err.Error(), "8x6")
	assert.Empty(t, w.rasters)
	assert.Equal(t, uint64(0), s.Written())
}

func TestWrite_EmptyFrames(t *testing.T) {
	s, w := openFake(t)

	require.NoError(t, s.Write(video.Frame{Index: 0}))
	require.NoError(t, s.Write(frame(1, 4, 3)))
	assert.Equal(t, uint64(1), s.Skipped())
	assert.Equal(t, uint64(1), s.Written())
	assert.Len(t, w.rasters, 1)

	strict, _ := openFake(t, WithSkipEmpty(false))
	assert.ErrorIs(t, strict.Write(video.Frame{Index: 0}), ErrSinkWrite)
}

func TestWrite_BackendError(t *testing.T) {
	s, w := openFake(t)
	w.failAt = 2

	require.NoError(t, s.Write(frame(0, 4, 3)))
	assert.ErrorIs(t, s.Write(frame(1, 4, 3)), ErrSinkWrite)
	assert.Equal(t, uint64(1), s.Written())
}

func TestClose(t *testing.T) {
	s, w := openFake(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, w.closed)

	assert.ErrorIs(t, s.Write(frame(0, 4, 3)), ErrSinkWrite)

	failing, fw := openFake(t)
	fw.closeErr = errors.New("disk full")
	assert.ErrorIs(t, failing.Close(), ErrSinkWrite)
}
