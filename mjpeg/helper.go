package mjpeg

import (
	"encoding/binary"
	"os"
)

// riff writes little endian RIFF fields to a file and remembers the first
// error, so header blocks can be written without checking every field.
type riff struct {
	f   *os.File
	err error

	// lengthFields holds the positions of length fields still to be filled,
	// used as a stack (LIFO)
	lengthFields []int64
}

// Write data to file
func (ctx *riff) write(data []byte) {
	if ctx.err != nil {
		return
	}

	_, ctx.err = ctx.f.Write(data)
}

// writeStr writes a four character code or string.
func (ctx *riff) writeStr(s string) {
	ctx.write([]byte(s))
}

// writeInt16 writes a 16-bit int value.
func (ctx *riff) writeInt16(n int16) {
	buff := make([]byte, 2)
	binary.LittleEndian.PutUint16(buff, uint16(n))
	ctx.write(buff)
}

// writeInt32 writes a 32-bit int value.
func (ctx *riff) writeInt32(n int32) {
	buff := make([]byte, 4)
	binary.LittleEndian.PutUint32(buff, uint32(n))
	ctx.write(buff)
}

// seek moves the file offset.
func (ctx *riff) seek(offset int64, whence int) int64 {
	if ctx.err != nil {
		return 0
	}

	pos, err := ctx.f.Seek(offset, whence)

	if err != nil {
		ctx.err = err
	}

	return pos
}

// pos returns the current file position.
func (ctx *riff) pos() int64 {
	return ctx.seek(0, 1) // Seek relative to current pos
}

// writeLengthField writes an empty int field and saves its position as it
// will be filled later by finalizeLengthField.
func (ctx *riff) writeLengthField() {
	ctx.lengthFields = append(ctx.lengthFields, ctx.pos())
	ctx.writeInt32(0)
}

// finalizeLengthField fills the last open length field with the number of
// bytes written since it.
func (ctx *riff) finalizeLengthField() {
	if ctx.err != nil {
		return
	}

	n := len(ctx.lengthFields)

	if n == 0 {
		ctx.err = errImproperState
		return
	}

	pos := ctx.pos()
	field := ctx.lengthFields[n-1]
	ctx.lengthFields = ctx.lengthFields[:n-1]

	ctx.seek(field, 0)
	ctx.writeInt32(int32(pos - field - 4))

	// Seek "back" but align to a 2-byte boundary
	if pos&0x01 != 0 {
		pos++
	}

	ctx.seek(pos, 0)
}

// patchInt32 overwrites the int field at offset and returns to the current position.
func (ctx *riff) patchInt32(offset int64, n int32) {
	pos := ctx.pos()
	ctx.seek(offset, 0)
	ctx.writeInt32(n)
	ctx.seek(pos, 0)
}
