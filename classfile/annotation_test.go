package classfile

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Element Value Round Trips
// ---------------------------------------------------------------------------

func encodeElementValue(t *testing.T, v ElementValue) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := EncodeElementValue(w, v); err != nil {
		t.Fatalf("EncodeElementValue failed: %v", err)
	}
	return buf.Bytes()
}

func TestElementValueRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value ElementValue
	}{
		{"Int", &ConstElement{Kind: ElementTagInt, Index: 3}},
		{"Boolean", &ConstElement{Kind: ElementTagBoolean, Index: 4}},
		{"String", &ConstElement{Kind: ElementTagString, Index: 5}},
		{"Class", &ConstElement{Kind: ElementTagClass, Index: 6}},
		{"Enum", &EnumElement{TypeNameIndex: 7, ConstNameIndex: 8}},
		{"EmptyArray", &ArrayElement{Elements: []ElementValue{}}},
		{"FlatArray", &ArrayElement{Elements: []ElementValue{
			&ConstElement{Kind: ElementTagShort, Index: 1},
			&ConstElement{Kind: ElementTagShort, Index: 2},
		}}},
		{"NestedAnnotation", &AnnotationElement{Annotation: &Annotation{
			TypeIndex: 9,
			Pairs: []ElementValuePair{
				{NameIndex: 10, Value: &ConstElement{Kind: ElementTagLong, Index: 11}},
			},
		}}},
		{"ArrayOfArrays", &ArrayElement{Elements: []ElementValue{
			&ArrayElement{Elements: []ElementValue{
				&ConstElement{Kind: ElementTagByte, Index: 12},
			}},
			&ArrayElement{Elements: []ElementValue{}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := encodeElementValue(t, tt.value)
			if uint32(len(out)) != tt.value.Length() {
				t.Errorf("encoded %d bytes, Length() says %d", len(out), tt.value.Length())
			}

			r := NewReader(out)
			decoded, err := DecodeElementValue(r)
			if err != nil {
				t.Fatalf("DecodeElementValue failed: %v", err)
			}
			if r.Remaining() != 0 {
				t.Errorf("decoder left %d bytes unread", r.Remaining())
			}

			reencoded := encodeElementValue(t, decoded)
			if !bytes.Equal(reencoded, out) {
				t.Errorf("second encode = %x, want %x", reencoded, out)
			}
		})
	}
}

func TestArrayElementRecursiveLength(t *testing.T) {
	// An array holding one nested annotation with one pair. The array
	// length must be the count field plus the element's full recursive
	// length, not a flat per-element approximation.
	nested := &Annotation{
		TypeIndex: 1,
		Pairs: []ElementValuePair{
			{NameIndex: 2, Value: &ConstElement{Kind: ElementTagInt, Index: 3}},
		},
	}
	array := &ArrayElement{Elements: []ElementValue{
		&AnnotationElement{Annotation: nested},
	}}

	// Annotation: type(2) + count(2) + pair(name 2 + tag 1 + index 2) = 9.
	if got := nested.Length(); got != 9 {
		t.Fatalf("nested annotation Length() = %d, want 9", got)
	}
	// Array: tag(1) + count(2) + element(tag 1 + 9) = 13.
	if got := array.Length(); got != 13 {
		t.Errorf("array Length() = %d, want 13", got)
	}

	out := encodeElementValue(t, array)
	if uint32(len(out)) != array.Length() {
		t.Errorf("encoded %d bytes, Length() says %d", len(out), array.Length())
	}
}

func TestAnnotationRoundTrip(t *testing.T) {
	ann := &Annotation{
		TypeIndex: 20,
		Pairs: []ElementValuePair{
			{NameIndex: 21, Value: &ConstElement{Kind: ElementTagString, Index: 22}},
			{NameIndex: 23, Value: &ArrayElement{Elements: []ElementValue{
				&AnnotationElement{Annotation: &Annotation{TypeIndex: 24}},
				&EnumElement{TypeNameIndex: 25, ConstNameIndex: 26},
			}}},
		},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := ann.Encode(w); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if uint32(buf.Len()) != ann.Length() {
		t.Errorf("encoded %d bytes, Length() says %d", buf.Len(), ann.Length())
	}

	r := NewReader(buf.Bytes())
	decoded, err := DecodeAnnotation(r)
	if err != nil {
		t.Fatalf("DecodeAnnotation failed: %v", err)
	}
	if r.Remaining() != 0 {
		t.Errorf("decoder left %d bytes unread", r.Remaining())
	}
	if decoded.TypeIndex != ann.TypeIndex || len(decoded.Pairs) != len(ann.Pairs) {
		t.Fatalf("round trip mismatch: %#v", decoded)
	}

	var buf2 bytes.Buffer
	if err := decoded.Encode(NewWriter(&buf2)); err != nil {
		t.Fatalf("second Encode failed: %v", err)
	}
	if !bytes.Equal(buf2.Bytes(), buf.Bytes()) {
		t.Errorf("second encode = %x, want %x", buf2.Bytes(), buf.Bytes())
	}
}

func TestAnnotationPairOrderPreserved(t *testing.T) {
	ann := &Annotation{
		TypeIndex: 1,
		Pairs: []ElementValuePair{
			{NameIndex: 30, Value: &ConstElement{Kind: ElementTagInt, Index: 1}},
			{NameIndex: 10, Value: &ConstElement{Kind: ElementTagInt, Index: 2}},
			{NameIndex: 20, Value: &ConstElement{Kind: ElementTagInt, Index: 3}},
		},
	}

	var buf bytes.Buffer
	if err := ann.Encode(NewWriter(&buf)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeAnnotation(NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeAnnotation failed: %v", err)
	}

	var names []uint16
	for _, pair := range decoded.Pairs {
		names = append(names, pair.NameIndex)
	}
	if want := []uint16{30, 10, 20}; !reflect.DeepEqual(names, want) {
		t.Errorf("pair order = %v, want %v", names, want)
	}
}

func TestUnsupportedElementValueTag(t *testing.T) {
	_, err := DecodeElementValue(NewReader([]byte{'X', 0, 1}))
	if err == nil {
		t.Fatal("DecodeElementValue succeeded, want unsupported tag error")
	}
	if !strings.Contains(err.Error(), "unsupported element value tag") {
		t.Errorf("error = %v, want unsupported tag message", err)
	}
}

func TestTruncatedElementValue(t *testing.T) {
	// Array declares two elements but the input ends after one.
	var b testAttrBuilder
	b.writeU8(ElementTagArray)
	b.writeU16(2)
	b.writeU8(ElementTagInt)
	b.writeU16(5)

	_, err := DecodeElementValue(NewReader(b.bytes()))
	if err == nil {
		t.Fatal("DecodeElementValue succeeded, want truncation error")
	}
}
