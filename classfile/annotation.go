package classfile

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Element Value Tags
// ---------------------------------------------------------------------------

// Element value discriminant characters. The primitive kinds all carry
// a single constant pool index; the remaining kinds are composite.
const (
	ElementTagByte       uint8 = 'B'
	ElementTagChar       uint8 = 'C'
	ElementTagDouble     uint8 = 'D'
	ElementTagFloat      uint8 = 'F'
	ElementTagInt        uint8 = 'I'
	ElementTagLong       uint8 = 'J'
	ElementTagShort      uint8 = 'S'
	ElementTagBoolean    uint8 = 'Z'
	ElementTagString     uint8 = 's'
	ElementTagClass      uint8 = 'c'
	ElementTagEnum       uint8 = 'e'
	ElementTagAnnotation uint8 = '@'
	ElementTagArray      uint8 = '['
)

// ---------------------------------------------------------------------------
// ElementValue: Recursive tagged annotation argument value
// ---------------------------------------------------------------------------

// ElementValue is a recursive annotation argument value. The variant
// set is closed. Index references are preserved as-is; this package
// never interprets the referenced constants.
type ElementValue interface {
	// ElementTag returns the single-byte discriminant written before
	// the value payload.
	ElementTag() uint8

	// Length returns the encoded size of this value in bytes, the tag
	// byte included. Composite values are summed recursively.
	Length() uint32

	encodeBody(w *Writer) error
}

// ConstElement is any of the primitive-index element value kinds
// (byte, char, double, float, int, long, short, boolean, string,
// class): a discriminant plus one constant pool index.
type ConstElement struct {
	Kind  uint8
	Index uint16
}

func (e *ConstElement) ElementTag() uint8 { return e.Kind }
func (e *ConstElement) Length() uint32    { return 1 + 2 }

func (e *ConstElement) encodeBody(w *Writer) error {
	return w.WriteU16(e.Index)
}

// EnumElement references an enum constant by type name and constant
// name.
type EnumElement struct {
	TypeNameIndex  uint16
	ConstNameIndex uint16
}

func (e *EnumElement) ElementTag() uint8 { return ElementTagEnum }
func (e *EnumElement) Length() uint32    { return 1 + 4 }

func (e *EnumElement) encodeBody(w *Writer) error {
	if err := w.WriteU16(e.TypeNameIndex); err != nil {
		return err
	}
	return w.WriteU16(e.ConstNameIndex)
}

// AnnotationElement holds a nested annotation. The pointer is the
// indirection that breaks the Annotation <-> ElementValue cycle.
type AnnotationElement struct {
	Annotation *Annotation
}

func (e *AnnotationElement) ElementTag() uint8 { return ElementTagAnnotation }

func (e *AnnotationElement) Length() uint32 {
	return 1 + e.Annotation.Length()
}

func (e *AnnotationElement) encodeBody(w *Writer) error {
	return e.Annotation.Encode(w)
}

// ArrayElement holds an ordered list of element values, each of which
// may itself be an annotation or another array.
type ArrayElement struct {
	Elements []ElementValue
}

func (e *ArrayElement) ElementTag() uint8 { return ElementTagArray }

// Length sums each element's own recursive length. A flat per-element
// size would under-count arrays holding nested annotations or arrays.
func (e *ArrayElement) Length() uint32 {
	length := uint32(1 + 2)
	for _, elem := range e.Elements {
		length += elem.Length()
	}
	return length
}

func (e *ArrayElement) encodeBody(w *Writer) error {
	if err := w.WriteU16(uint16(len(e.Elements))); err != nil {
		return err
	}
	for _, elem := range e.Elements {
		if err := EncodeElementValue(w, elem); err != nil {
			return err
		}
	}
	return nil
}

// DecodeElementValue reads one element value: the discriminant byte,
// then the variant payload, recursing for nested annotations and
// arrays.
func DecodeElementValue(r *Reader) (ElementValue, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("failed to read element value tag: %w", err)
	}

	switch tag {
	case ElementTagByte, ElementTagChar, ElementTagDouble, ElementTagFloat,
		ElementTagInt, ElementTagLong, ElementTagShort, ElementTagBoolean,
		ElementTagString, ElementTagClass:
		index, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read element value index: %w", err)
		}
		return &ConstElement{Kind: tag, Index: index}, nil
	case ElementTagEnum:
		typeName, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read enum type name index: %w", err)
		}
		constName, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read enum constant name index: %w", err)
		}
		return &EnumElement{TypeNameIndex: typeName, ConstNameIndex: constName}, nil
	case ElementTagAnnotation:
		nested, err := DecodeAnnotation(r)
		if err != nil {
			return nil, err
		}
		return &AnnotationElement{Annotation: nested}, nil
	case ElementTagArray:
		count, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read element value array count: %w", err)
		}
		elements := make([]ElementValue, 0, count)
		for i := uint16(0); i < count; i++ {
			elem, err := DecodeElementValue(r)
			if err != nil {
				return nil, fmt.Errorf("failed to read array element %d: %w", i, err)
			}
			elements = append(elements, elem)
		}
		return &ArrayElement{Elements: elements}, nil
	default:
		return nil, fmt.Errorf("unsupported element value tag %q", tag)
	}
}

// EncodeElementValue writes the discriminant byte and the variant
// payload, the structural inverse of DecodeElementValue.
func EncodeElementValue(w *Writer, v ElementValue) error {
	if err := w.WriteU8(v.ElementTag()); err != nil {
		return err
	}
	return v.encodeBody(w)
}

// ---------------------------------------------------------------------------
// Annotation: Type reference plus ordered name/value pairs
// ---------------------------------------------------------------------------

// ElementValuePair is one named argument of an annotation.
type ElementValuePair struct {
	NameIndex uint16
	Value     ElementValue
}

// Annotation is a type reference plus an ordered list of name/value
// pairs. Pair order is preserved exactly through a decode/encode
// round trip.
type Annotation struct {
	TypeIndex uint16
	Pairs     []ElementValuePair
}

// Length returns the encoded size of the annotation in bytes.
func (a *Annotation) Length() uint32 {
	length := uint32(2 + 2)
	for i := range a.Pairs {
		length += 2 + a.Pairs[i].Value.Length()
	}
	return length
}

// DecodeAnnotation reads one annotation: the type index, the pair
// count, then each name/value pair in order.
func DecodeAnnotation(r *Reader) (*Annotation, error) {
	typeIndex, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation type index: %w", err)
	}
	pairCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation pair count: %w", err)
	}

	pairs := make([]ElementValuePair, 0, pairCount)
	for i := uint16(0); i < pairCount; i++ {
		nameIndex, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read pair %d name index: %w", i, err)
		}
		value, err := DecodeElementValue(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read pair %d value: %w", i, err)
		}
		pairs = append(pairs, ElementValuePair{NameIndex: nameIndex, Value: value})
	}

	return &Annotation{TypeIndex: typeIndex, Pairs: pairs}, nil
}

// Encode writes the annotation, the structural inverse of
// DecodeAnnotation.
func (a *Annotation) Encode(w *Writer) error {
	if err := w.WriteU16(a.TypeIndex); err != nil {
		return err
	}
	if err := w.WriteU16(uint16(len(a.Pairs))); err != nil {
		return err
	}
	for i := range a.Pairs {
		if err := w.WriteU16(a.Pairs[i].NameIndex); err != nil {
			return err
		}
		if err := EncodeElementValue(w, a.Pairs[i].Value); err != nil {
			return err
		}
	}
	return nil
}
