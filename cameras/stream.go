package cameras

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"rtsprecord/video"
)

// LiveStream is a network stream, file or capture device opened through
// OpenCV. It reuses a single Mat for every read, so a raster returned by
// Read is only valid until the next call.
type LiveStream struct {
	uri  string
	vCap *gocv.VideoCapture
	img  gocv.Mat
}

// Open connects to uri. A bare number selects a local capture device,
// anything else goes through the FFmpeg backend (rtsp://, http://, files).
func Open(uri string) (*LiveStream, error) {
	vCap, err := capture(uri)

	if err != nil {
		return nil, err
	}

	return &LiveStream{
		uri:  uri,
		vCap: vCap,
		img:  gocv.NewMat(),
	}, nil
}

// Opener adapts Open to video.Opener.
func Opener(uri string) (video.Source, error) {
	stream, err := Open(uri)

	if err != nil {
		return nil, err
	}

	return stream, nil
}

func capture(uri string) (*gocv.VideoCapture, error) {
	uri = strings.TrimSpace(uri)

	if uri == "" {
		return nil, fmt.Errorf("empty stream link")
	}

	if device, err := strconv.Atoi(uri); err == nil {
		return gocv.OpenVideoCaptureWithAPI(device, gocv.VideoCaptureAny)
	}

	return gocv.OpenVideoCaptureWithAPI(uri, gocv.VideoCaptureFFmpeg)
}

// IsOpened reports whether OpenCV still holds the stream.
func (ctx *LiveStream) IsOpened() bool {
	return ctx.vCap != nil && ctx.vCap.IsOpened()
}

// Read grabs the next frame. It returns false when the decoder produced no
// pixels; the stream may still be open.
func (ctx *LiveStream) Read() (video.Raster, bool) {
	if ok := ctx.vCap.Read(&ctx.img); !ok {
		return nil, false
	}

	if ctx.img.Empty() {
		return nil, false
	}

	return &Raster{mat: ctx.img}, true
}

// FPS is the frame rate the stream advertises, 0 when unknown.
func (ctx *LiveStream) FPS() float64 {
	return ctx.vCap.Get(gocv.VideoCaptureFPS)
}

// Dimensions is the frame size the stream advertises.
func (ctx *LiveStream) Dimensions() (int, int) {
	return int(ctx.vCap.Get(gocv.VideoCaptureFrameWidth)), int(ctx.vCap.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the frame buffer and the stream.
func (ctx *LiveStream) Close() error {
	if err := ctx.img.Close(); err != nil {
		return err
	}

	return ctx.vCap.Close()
}

// Raster is a decoded BGR frame held by OpenCV.
type Raster struct {
	mat gocv.Mat
}

// NewRaster wraps mat. The caller keeps ownership of mat.
func NewRaster(mat gocv.Mat) *Raster {
	return &Raster{mat: mat}
}

// Mat returns the underlying matrix.
func (ctx *Raster) Mat() gocv.Mat {
	return ctx.mat
}

func (ctx *Raster) Dimensions() (int, int) {
	return ctx.mat.Cols(), ctx.mat.Rows()
}

func (ctx *Raster) Image() (image.Image, error) {
	return ctx.mat.ToImage()
}

// JPEG encodes the frame without leaving OpenCV.
func (ctx *Raster) JPEG(quality int) ([]byte, error) {
	buff, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, ctx.mat, []int{gocv.IMWriteJpegQuality, quality})

	if err != nil {
		return nil, err
	}

	defer buff.Close()

	return append([]byte(nil), buff.GetBytes()...), nil
}
