// Package ffmpeg writes recordings through the OpenCV VideoWriter, which
// delegates encoding and muxing to FFmpeg.
package ffmpeg

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"rtsprecord/record"
	"rtsprecord/video"
)

var ErrNotOpened = errors.New("video writer not opened")

// Matter is implemented by rasters already held in an OpenCV matrix.
type Matter interface {
	Mat() gocv.Mat
}

// Video is an open OpenCV video writer.
type Video struct {
	path   string
	writer *gocv.VideoWriter
}

// Open creates the output described by target.
func Open(target record.Target) (record.Writer, error) {
	writer, err := gocv.VideoWriterFile(target.Path, target.Codec, target.FPS, target.Width, target.Height, true)

	if err != nil {
		return nil, err
	}

	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: %s with codec %s", ErrNotOpened, target.Path, target.Codec)
	}

	return &Video{path: target.Path, writer: writer}, nil
}

// Write encodes one frame.
func (ctx *Video) Write(raster video.Raster) error {
	if m, ok := raster.(Matter); ok {
		return ctx.writer.Write(m.Mat())
	}

	img, err := raster.Image()

	if err != nil {
		return err
	}

	mat, err := gocv.ImageToMatRGB(img)

	if err != nil {
		return err
	}

	defer mat.Close()

	// VideoWriter expects BGR
	if err := gocv.CvtColor(mat, &mat, gocv.ColorRGBToBGR); err != nil {
		return err
	}

	return ctx.writer.Write(mat)
}

// Close finalizes the container.
func (ctx *Video) Close() error {
	return ctx.writer.Close()
}
