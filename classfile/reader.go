// Package classfile decodes and re-encodes JVM class files, with full
// support for the attribute structures attached to classes, fields,
// methods and code bodies.
package classfile

import (
	"encoding/binary"
	"errors"
)

// ---------------------------------------------------------------------------
// Error Types
// ---------------------------------------------------------------------------

var (
	ErrUnexpectedEOF    = errors.New("unexpected end of class data")
	ErrInvalidMagic     = errors.New("invalid magic number: expected 0xCAFEBABE")
	ErrInvalidPoolIndex = errors.New("invalid constant pool index")
	ErrCorruptAttribute = errors.New("corrupt attribute body")
	ErrPoolOverflow     = errors.New("constant pool overflow")
)

// ---------------------------------------------------------------------------
// Reader: Bounds-checked big-endian byte cursor
// ---------------------------------------------------------------------------

// Reader is a cursor over class-file data. All multi-byte reads are
// big-endian. Every read is bounds-checked and fails with
// ErrUnexpectedEOF rather than reading past the end of the data.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if r.off+1 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// ReadBytes reads n bytes and returns them as a fresh copy, so the
// result does not alias the underlying input buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

// Sub consumes n bytes and returns a new Reader bounded to exactly
// those bytes. Reads on the sub-reader can never touch bytes beyond
// the boundary, and reads on the sub-reader never move this reader.
func (r *Reader) Sub(n int) (*Reader, error) {
	body, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(body), nil
}
