package classfile

import (
	"bytes"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Reader Tests
// ---------------------------------------------------------------------------

func TestReaderBigEndian(t *testing.T) {
	r := NewReader([]byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE})

	b, err := r.ReadU8()
	if err != nil || b != 0x12 {
		t.Errorf("ReadU8 = %#x, %v; want 0x12", b, err)
	}
	v16, err := r.ReadU16()
	if err != nil || v16 != 0x3456 {
		t.Errorf("ReadU16 = %#x, %v; want 0x3456", v16, err)
	}
	v32, err := r.ReadU32()
	if err != nil || v32 != 0x789ABCDE {
		t.Errorf("ReadU32 = %#x, %v; want 0x789ABCDE", v32, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestReaderUnderflow(t *testing.T) {
	r := NewReader([]byte{0x01})

	if _, err := r.ReadU16(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadU16 error = %v, want ErrUnexpectedEOF", err)
	}
	// A failed read must not move the cursor.
	if r.Offset() != 0 {
		t.Errorf("Offset() = %d after failed read, want 0", r.Offset())
	}
	if _, err := r.ReadBytes(2); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadBytes error = %v, want ErrUnexpectedEOF", err)
	}
	if _, err := r.ReadU8(); err != nil {
		t.Errorf("ReadU8 failed: %v", err)
	}
	if _, err := r.ReadU8(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadU8 at end error = %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	r := NewReader(src)

	out, err := r.ReadBytes(4)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	src[0] = 99
	if out[0] != 1 {
		t.Error("ReadBytes result aliases the input buffer")
	}
}

func TestSubIsolation(t *testing.T) {
	r := NewReader([]byte{0, 1, 2, 3, 4, 5})

	sub, err := r.Sub(3)
	if err != nil {
		t.Fatalf("Sub failed: %v", err)
	}
	// The outer cursor advances by exactly the sub length, up front.
	if r.Offset() != 3 {
		t.Errorf("outer Offset() = %d, want 3", r.Offset())
	}

	if _, err := sub.ReadBytes(3); err != nil {
		t.Fatalf("sub ReadBytes failed: %v", err)
	}
	// Reads past the boundary fail instead of touching outer bytes.
	if _, err := sub.ReadU8(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("sub read past boundary = %v, want ErrUnexpectedEOF", err)
	}
	// Sub reads never move the outer cursor.
	if r.Offset() != 3 {
		t.Errorf("outer Offset() = %d after sub reads, want 3", r.Offset())
	}

	if _, err := r.Sub(10); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("oversized Sub error = %v, want ErrUnexpectedEOF", err)
	}
}

// ---------------------------------------------------------------------------
// Writer Tests
// ---------------------------------------------------------------------------

func TestWriterBigEndian(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteU8(0x12); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
	if err := w.WriteU16(0x3456); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	if err := w.WriteU32(0x789ABCDE); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	if err := w.WriteBytes([]byte{0xFF}); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	want := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xFF}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wrote %x, want %x", buf.Bytes(), want)
	}
}

// failingWriter fails every write after the first n bytes.
type failingWriter struct {
	n int
}

var errSink = errors.New("sink failed")

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errSink
	}
	f.n -= len(p)
	return len(p), nil
}

func TestWriterStickyError(t *testing.T) {
	w := NewWriter(&failingWriter{n: 2})

	if err := w.WriteU16(1); err != nil {
		t.Fatalf("first WriteU16 failed: %v", err)
	}
	if err := w.WriteU16(2); !errors.Is(err, errSink) {
		t.Fatalf("second WriteU16 error = %v, want sink error", err)
	}
	// The error sticks for all later writes.
	if err := w.WriteU8(3); !errors.Is(err, errSink) {
		t.Errorf("WriteU8 after failure = %v, want sink error", err)
	}
	if !errors.Is(w.Err(), errSink) {
		t.Errorf("Err() = %v, want sink error", w.Err())
	}
}
