package mjpeg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/jpeg"
	"math"
	"os"

	"rtsprecord/record"
	"rtsprecord/video"
)

// Codec is the only fourcc this writer produces.
const Codec = "MJPG"

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Pointers in AVI are 32 bit. Writing beyond that corrupts the whole file.
const maxFileSize = 4200000000 // 2^32 = 4 294 967 296

var (
	// ErrTooLarge reports if more frames cannot be added,
	// else the video file would get corrupted.
	ErrTooLarge = errors.New("video file too large")

	// errImproperState signals improper state (due to a previous error).
	errImproperState = errors.New("improper state")

	// ErrClosed reports a write to a finalized file.
	ErrClosed = errors.New("avi writer closed")
)

// Writer streams JPEG frames into an *.avi file with the MJPEG codec.
// The header is written on open; the index and frame counts on Close.
type Writer struct {
	riff

	path    string
	width   int32
	height  int32
	rate    int32
	scale   int32
	quality int

	// Position of the frames count fields
	framesCountFieldPos, framesCountFieldPos2 int64
	// Position of the MOVI chunk
	moviPos int64

	// index holds one idx1 entry (16 bytes) per frame
	index  bytes.Buffer
	frames int
	closed bool
}

// Opener returns a record.Opener producing Writers with the given JPEG quality.
func Opener(quality int) record.Opener {
	return func(target record.Target) (record.Writer, error) {
		return Open(target, quality)
	}
}

// Open creates the file at target.Path and writes the AVI header.
// The Close() method of the Writer must be called to finalize the video file.
func Open(target record.Target, quality int) (*Writer, error) {
	if target.Codec != Codec {
		return nil, fmt.Errorf("mjpeg: unsupported codec %q, want %q", target.Codec, Codec)
	}

	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	f, err := os.Create(target.Path)

	if err != nil {
		return nil, err
	}

	ctx := &Writer{
		riff:    riff{f: f, lengthFields: make([]int64, 0, 5)},
		path:    target.Path,
		width:   int32(target.Width),
		height:  int32(target.Height),
		quality: quality,
	}

	ctx.rate, ctx.scale = rate(target.FPS)

	ctx.writeHeader()

	if ctx.err != nil {
		f.Close()
		return nil, ctx.err
	}

	return ctx, nil
}

// rate splits fps into the dwRate/dwScale pair of the stream header.
func rate(fps float64) (int32, int32) {
	if fps >= 1 && fps == math.Trunc(fps) {
		return int32(fps), 1
	}

	r := int32(math.Round(fps * 1000))

	if r < 1 {
		r = 1
	}

	return r, 1000
}

func (ctx *Writer) writeHeader() {
	ctx.writeStr("RIFF")   // RIFF type
	ctx.writeLengthField() // File length (remaining bytes after this field) (nesting level 0)
	ctx.writeStr("AVI ")   // AVI signature
	ctx.writeStr("LIST")   // LIST chunk: data encoding
	ctx.writeLengthField() // Chunk length (nesting level 1)
	ctx.writeStr("hdrl")   // LIST chunk type
	ctx.writeStr("avih")   // avih sub-chunk
	ctx.writeInt32(0x38)   // Sub-chunk length excluding the first 8 bytes of avih signature and size

	ctx.writeInt32(int32(int64(ctx.scale) * 1000000 / int64(ctx.rate))) // Frame delay time in microsec
	ctx.writeInt32(0)                                                   // dwMaxBytesPerSec (maximum data rate of the file in bytes per second)
	ctx.writeInt32(0)                                                   // Reserved
	ctx.writeInt32(0x10)                                                // dwFlags, 0x10 bit: AVIF_HASINDEX

	ctx.framesCountFieldPos = ctx.pos()

	ctx.writeInt32(0)          // Number of frames
	ctx.writeInt32(0)          // Initial frame for non-interleaved files
	ctx.writeInt32(1)          // Number of streams in the video; here 1 video, no audio
	ctx.writeInt32(0)          // dwSuggestedBufferSize
	ctx.writeInt32(ctx.width)  // Image width in pixels
	ctx.writeInt32(ctx.height) // Image height in pixels
	ctx.writeInt32(0)          // Reserved
	ctx.writeInt32(0)
	ctx.writeInt32(0)
	ctx.writeInt32(0)

	// Write stream information
	ctx.writeStr("LIST")      // LIST chunk: stream headers
	ctx.writeLengthField()    // Chunk size (nesting level 2)
	ctx.writeStr("strl")      // LIST chunk type: stream list
	ctx.writeStr("strh")      // Stream header
	ctx.writeInt32(56)        // Length of the strh sub-chunk
	ctx.writeStr("vids")      // fccType - type of data stream - here 'vids' for video stream
	ctx.writeStr(Codec)       // MJPG for Motion JPEG
	ctx.writeInt32(0)         // dwFlags
	ctx.writeInt16(0)         // wPriority
	ctx.writeInt16(0)         // wLanguage
	ctx.writeInt32(0)         // dwInitialFrames
	ctx.writeInt32(ctx.scale) // dwScale
	ctx.writeInt32(ctx.rate)  // dwRate, the actual FPS is calculated by dividing this by dwScale
	ctx.writeInt32(0)         // dwStart

	ctx.framesCountFieldPos2 = ctx.pos()

	ctx.writeInt32(0)                 // dwLength, set equal to the number of frames
	ctx.writeInt32(0)                 // dwSuggestedBufferSize
	ctx.writeInt32(-1)                // dwQuality, -1 lets drivers use the default quality value
	ctx.writeInt32(0)                 // dwSampleSize, 0 means that each frame is in its own chunk
	ctx.writeInt16(0)                 // rcFrame left
	ctx.writeInt16(0)                 //   ..top
	ctx.writeInt16(int16(ctx.width))  //   ..right
	ctx.writeInt16(int16(ctx.height)) //   ..bottom

	// end of 'strh' chunk, stream format follows
	ctx.writeStr("strf")                       // stream format chunk
	ctx.writeLengthField()                     // Chunk size (nesting level 3)
	ctx.writeInt32(40)                         // biSize of the BITMAPINFOHEADER structure
	ctx.writeInt32(ctx.width)                  // biWidth, width in pixels
	ctx.writeInt32(ctx.height)                 // biHeight, height in pixels
	ctx.writeInt16(1)                          // biPlanes, number of color planes in which the data is stored
	ctx.writeInt16(24)                         // biBitCount, number of bits per pixel
	ctx.writeStr(Codec)                        // biCompression, type of compression used
	ctx.writeInt32(ctx.width * ctx.height * 3) // biSizeImage (buffer size for decompressed image)
	ctx.writeInt32(0)                          // biXPelsPerMeter
	ctx.writeInt32(0)                          // biYPelsPerMeter
	ctx.writeInt32(0)                          // biClrUsed (color table size; for 8-bit only)
	ctx.writeInt32(0)                          // biClrImportant
	ctx.finalizeLengthField()                  // 'strf' chunk finished (nesting level 3)

	ctx.writeStr("strn") // Use 'strn' to provide a zero terminated text string describing the stream

	name := "rtsprecord"

	// Name must be 0-terminated and stream name length (the length of the chunk) must be even
	if len(name)&0x01 == 0 {
		name = name + " \000" // padding space plus terminating 0
	} else {
		name = name + "\000" // terminating 0
	}

	ctx.writeInt32(int32(len(name))) // Length of the strn sub-CHUNK (must be even)
	ctx.writeStr(name)
	ctx.finalizeLengthField() // LIST 'strl' finished (nesting level 2)
	ctx.finalizeLengthField() // LIST 'hdrl' finished (nesting level 1)

	ctx.writeStr("LIST")   // The second LIST chunk, which contains the actual data
	ctx.writeLengthField() // Chunk length (nesting level 1)

	ctx.moviPos = ctx.pos()

	ctx.writeStr("movi") // LIST chunk type: 'movi'
}

// Write encodes raster as JPEG and appends it as one frame.
func (ctx *Writer) Write(raster video.Raster) error {
	data, err := ctx.encode(raster)

	if err != nil {
		return err
	}

	return ctx.AddFrame(data)
}

func (ctx *Writer) encode(raster video.Raster) ([]byte, error) {
	if enc, ok := raster.(video.JPEGEncoder); ok {
		return enc.JPEG(ctx.quality)
	}

	img, err := raster.Image()

	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ctx.quality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// AddFrame adds a frame from a JPEG encoded data slice.
func (ctx *Writer) AddFrame(data []byte) error {
	if ctx.closed {
		return ErrClosed
	}

	if ctx.err != nil {
		return ctx.err
	}

	framePos := ctx.pos()

	// Index entry size: 16 bytes (for each frame)
	if framePos+int64(len(data))+int64(ctx.frames*16) > maxFileSize {
		return ErrTooLarge
	}

	ctx.writeStr("00dc") // compressed frame
	ctx.writeInt32(int32(len(data)))
	ctx.write(data)

	// chunks are word aligned
	if len(data)&0x01 != 0 {
		ctx.write([]byte{0})
	}

	if ctx.err != nil {
		return ctx.err
	}

	// flags AVIIF_KEYFRAME, offset relative to 'movi', size
	entry := make([]byte, 16)
	copy(entry, "00dc")
	binary.LittleEndian.PutUint32(entry[4:], 0x10)
	binary.LittleEndian.PutUint32(entry[8:], uint32(framePos-ctx.moviPos))
	binary.LittleEndian.PutUint32(entry[12:], uint32(len(data)))
	ctx.index.Write(entry)

	ctx.frames++

	return nil
}

// Frames returns the number of frames written.
func (ctx *Writer) Frames() int {
	return ctx.frames
}

// Close writes the index, fills in the frame counts and closes the file.
func (ctx *Writer) Close() error {
	if ctx.closed {
		return nil
	}

	ctx.closed = true

	ctx.finalizeLengthField() // LIST 'movi' finished (nesting level 1)

	ctx.writeStr("idx1")                   // idx1 chunk
	ctx.writeInt32(int32(ctx.index.Len())) // Chunk length
	ctx.write(ctx.index.Bytes())

	ctx.patchInt32(ctx.framesCountFieldPos, int32(ctx.frames))
	ctx.patchInt32(ctx.framesCountFieldPos2, int32(ctx.frames))

	ctx.finalizeLengthField() // 'RIFF' File finished (nesting level 0)

	if err := ctx.f.Close(); err != nil && ctx.err == nil {
		ctx.err = err
	}

	if ctx.err != nil {
		return fmt.Errorf("mjpeg: finalize %s: %w", ctx.path, ctx.err)
	}

	return nil
}
