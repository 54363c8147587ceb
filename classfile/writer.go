package classfile

import (
	"encoding/binary"
	"io"
)

// ---------------------------------------------------------------------------
// Writer: Big-endian byte writer
// ---------------------------------------------------------------------------

// Writer emits big-endian class-file data to an underlying io.Writer.
// The first write error is returned by every subsequent call, so a
// sequence of writes only needs a single error check at the end.
type Writer struct {
	w       io.Writer
	scratch [4]byte
	err     error
}

// NewWriter creates a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error encountered, or nil.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(p []byte) error {
	if w.err != nil {
		return w.err
	}
	if _, err := w.w.Write(p); err != nil {
		w.err = err
	}
	return w.err
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) error {
	w.scratch[0] = v
	return w.write(w.scratch[:1])
}

// WriteU16 writes a big-endian uint16.
func (w *Writer) WriteU16(v uint16) error {
	binary.BigEndian.PutUint16(w.scratch[:2], v)
	return w.write(w.scratch[:2])
}

// WriteU32 writes a big-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	binary.BigEndian.PutUint32(w.scratch[:4], v)
	return w.write(w.scratch[:4])
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(p []byte) error {
	return w.write(p)
}
