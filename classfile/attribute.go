package classfile

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cafebabe.classfile")

// ---------------------------------------------------------------------------
// Attribute Names
// ---------------------------------------------------------------------------

const (
	attrNameConstantValue             = "ConstantValue"
	attrNameCode                      = "Code"
	attrNameDeprecated                = "Deprecated"
	attrNameExceptions                = "Exceptions"
	attrNameLineNumberTable           = "LineNumberTable"
	attrNameSourceFile                = "SourceFile"
	attrNameRuntimeVisibleAnnotations = "RuntimeVisibleAnnotations"
)

// attributeHeaderSize is the name index (2) plus the declared body
// length (4) that prefix every attribute.
const attributeHeaderSize = 6

// ---------------------------------------------------------------------------
// Attribute: Tagged variant over the known attribute kinds
// ---------------------------------------------------------------------------

// Attribute is implemented by every known attribute variant. The
// variant set is closed: encodeBody is unexported so no type outside
// this package can pose as an attribute.
type Attribute interface {
	// AttrName returns the registered name the dispatcher matches on.
	AttrName() string

	// Length returns the exact number of bytes Encode will emit for
	// this attribute, the 6-byte name+length prefix included. It is
	// computed analytically from the in-memory tree so the length
	// field can be written ahead of the body without backpatching.
	Length() uint32

	encodeBody(cp *ConstantPool, w *Writer) error
}

// ConstantValueAttribute references a constant pool entry holding a
// field's compile-time constant.
type ConstantValueAttribute struct {
	ValueIndex uint16
}

func (a *ConstantValueAttribute) AttrName() string { return attrNameConstantValue }
func (a *ConstantValueAttribute) Length() uint32   { return attributeHeaderSize + 2 }

func (a *ConstantValueAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	return w.WriteU16(a.ValueIndex)
}

// DeprecatedAttribute is a zero-size marker.
type DeprecatedAttribute struct{}

func (a *DeprecatedAttribute) AttrName() string { return attrNameDeprecated }
func (a *DeprecatedAttribute) Length() uint32   { return attributeHeaderSize }

func (a *DeprecatedAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	return nil
}

// SourceFileAttribute references the UTF-8 entry naming the source
// file the class was compiled from.
type SourceFileAttribute struct {
	SourceFileIndex uint16
}

func (a *SourceFileAttribute) AttrName() string { return attrNameSourceFile }
func (a *SourceFileAttribute) Length() uint32   { return attributeHeaderSize + 2 }

func (a *SourceFileAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	return w.WriteU16(a.SourceFileIndex)
}

// ExceptionsAttribute lists the class indices of the checked
// exceptions a method declares.
type ExceptionsAttribute struct {
	ExceptionIndexes []uint16
}

func (a *ExceptionsAttribute) AttrName() string { return attrNameExceptions }

func (a *ExceptionsAttribute) Length() uint32 {
	return attributeHeaderSize + 2 + 2*uint32(len(a.ExceptionIndexes))
}

func (a *ExceptionsAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	if err := w.WriteU16(uint16(len(a.ExceptionIndexes))); err != nil {
		return err
	}
	for _, index := range a.ExceptionIndexes {
		if err := w.WriteU16(index); err != nil {
			return err
		}
	}
	return nil
}

// LineNumberEntry maps a code offset to a source line.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// LineNumberTableAttribute maps code offsets to source lines, in
// decode order.
type LineNumberTableAttribute struct {
	Entries []LineNumberEntry
}

func (a *LineNumberTableAttribute) AttrName() string { return attrNameLineNumberTable }

func (a *LineNumberTableAttribute) Length() uint32 {
	return attributeHeaderSize + 2 + 4*uint32(len(a.Entries))
}

func (a *LineNumberTableAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	if err := w.WriteU16(uint16(len(a.Entries))); err != nil {
		return err
	}
	for _, entry := range a.Entries {
		if err := w.WriteU16(entry.StartPC); err != nil {
			return err
		}
		if err := w.WriteU16(entry.LineNumber); err != nil {
			return err
		}
	}
	return nil
}

// ExceptionHandler is one exception table entry of a code body. The
// pc-range and catch-type invariants are the consumer's to enforce;
// this package preserves the values as decoded.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// CodeAttribute carries a method's instruction bytes, its exception
// table, and a nested attribute list (which recursively uses the
// same dispatcher that decoded the code attribute itself). The
// instruction bytes are opaque to this package.
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionHandler
	Attributes     []Attribute
}

func (a *CodeAttribute) AttrName() string { return attrNameCode }

func (a *CodeAttribute) Length() uint32 {
	length := uint32(attributeHeaderSize + 2 + 2 + 4)
	length += uint32(len(a.Code))
	length += 2 + 8*uint32(len(a.ExceptionTable))
	length += 2
	for _, child := range a.Attributes {
		length += child.Length()
	}
	return length
}

func (a *CodeAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	if err := w.WriteU16(a.MaxStack); err != nil {
		return err
	}
	if err := w.WriteU16(a.MaxLocals); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(len(a.Code))); err != nil {
		return err
	}
	if err := w.WriteBytes(a.Code); err != nil {
		return err
	}
	if err := w.WriteU16(uint16(len(a.ExceptionTable))); err != nil {
		return err
	}
	for _, handler := range a.ExceptionTable {
		if err := w.WriteU16(handler.StartPC); err != nil {
			return err
		}
		if err := w.WriteU16(handler.EndPC); err != nil {
			return err
		}
		if err := w.WriteU16(handler.HandlerPC); err != nil {
			return err
		}
		if err := w.WriteU16(handler.CatchType); err != nil {
			return err
		}
	}
	if err := w.WriteU16(uint16(len(a.Attributes))); err != nil {
		return err
	}
	for _, child := range a.Attributes {
		if err := EncodeAttribute(cp, w, child); err != nil {
			return err
		}
	}
	return nil
}

// AnnotationsAttribute holds the runtime-visible annotations of a
// class, field or method, in decode order.
type AnnotationsAttribute struct {
	Annotations []Annotation
}

func (a *AnnotationsAttribute) AttrName() string { return attrNameRuntimeVisibleAnnotations }

func (a *AnnotationsAttribute) Length() uint32 {
	length := uint32(attributeHeaderSize + 2)
	for i := range a.Annotations {
		length += a.Annotations[i].Length()
	}
	return length
}

func (a *AnnotationsAttribute) encodeBody(cp *ConstantPool, w *Writer) error {
	if err := w.WriteU16(uint16(len(a.Annotations))); err != nil {
		return err
	}
	for i := range a.Annotations {
		if err := a.Annotations[i].Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// AttributeDecoder: Name dispatch over an isolated sub-cursor
// ---------------------------------------------------------------------------

// AttributeDecoder decodes attributes against a constant pool.
type AttributeDecoder struct {
	// Pool resolves attribute name indices.
	Pool *ConstantPool

	// OnUnknown, if non-nil, is invoked with the resolved name of
	// every attribute that matches no known variant. When nil, the
	// name is logged at debug level. Decoding succeeds either way.
	OnUnknown func(name string)
}

// NewAttributeDecoder creates a decoder resolving names through pool.
func NewAttributeDecoder(pool *ConstantPool) *AttributeDecoder {
	return &AttributeDecoder{Pool: pool}
}

// Decode reads one attribute: a u16 name index, a u32 declared body
// length, and exactly that many body bytes. The body is copied into an
// isolated bounded sub-cursor before the variant decoder runs, so a
// variant can neither read past its declared length nor disturb the
// outer cursor; r always advances by exactly the declared length.
//
// A name that matches no known variant yields (nil, nil): the Unknown
// sentinel, with the body already consumed. A decode failure inside a
// matched variant is an error, never downgraded to the sentinel.
func (d *AttributeDecoder) Decode(r *Reader) (Attribute, error) {
	nameIndex, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read attribute name index: %w", err)
	}
	length, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read attribute length: %w", err)
	}

	name, err := d.Pool.Utf8(nameIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attribute name: %w", err)
	}

	body, err := r.Sub(int(length))
	if err != nil {
		return nil, fmt.Errorf("attribute %s: declared length %d exceeds remaining input: %w", name, length, err)
	}

	var attr Attribute
	switch name {
	case attrNameConstantValue:
		attr, err = decodeConstantValue(body)
	case attrNameCode:
		attr, err = d.decodeCode(body)
	case attrNameDeprecated:
		attr = &DeprecatedAttribute{}
	case attrNameExceptions:
		attr, err = decodeExceptions(body)
	case attrNameLineNumberTable:
		attr, err = decodeLineNumberTable(body)
	case attrNameSourceFile:
		attr, err = decodeSourceFile(body)
	case attrNameRuntimeVisibleAnnotations:
		attr, err = decodeAnnotationsAttribute(body)
	default:
		if d.OnUnknown != nil {
			d.OnUnknown(name)
		} else {
			log.Debugf("skipping unrecognized attribute %q (%d bytes)", name, length)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptAttribute, name, err)
	}
	return attr, nil
}

// DecodeList runs Decode once per declared slot. The declared count is
// a budget of decode attempts, not the final list size: attempts that
// yield the Unknown sentinel are discarded and do not occupy a slot,
// so the result may hold fewer than declared entries.
func (d *AttributeDecoder) DecodeList(r *Reader, declared uint16) ([]Attribute, error) {
	attrs := make([]Attribute, 0, declared)
	for remaining := declared; remaining > 0; remaining-- {
		attr, err := d.Decode(r)
		if err != nil {
			return nil, err
		}
		if attr == nil {
			continue
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// ---------------------------------------------------------------------------
// Variant Body Decoders
// ---------------------------------------------------------------------------

func decodeConstantValue(r *Reader) (Attribute, error) {
	index, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return &ConstantValueAttribute{ValueIndex: index}, nil
}

func decodeSourceFile(r *Reader) (Attribute, error) {
	index, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return &SourceFileAttribute{SourceFileIndex: index}, nil
}

func decodeExceptions(r *Reader) (Attribute, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	indexes := make([]uint16, count)
	for i := range indexes {
		indexes[i], err = r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read exception index %d: %w", i, err)
		}
	}
	return &ExceptionsAttribute{ExceptionIndexes: indexes}, nil
}

func decodeLineNumberTable(r *Reader) (Attribute, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	entries := make([]LineNumberEntry, count)
	for i := range entries {
		entries[i].StartPC, err = r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read line number entry %d: %w", i, err)
		}
		entries[i].LineNumber, err = r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("failed to read line number entry %d: %w", i, err)
		}
	}
	return &LineNumberTableAttribute{Entries: entries}, nil
}

func (d *AttributeDecoder) decodeCode(r *Reader) (Attribute, error) {
	code := &CodeAttribute{}

	var err error
	code.MaxStack, err = r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read max stack: %w", err)
	}
	code.MaxLocals, err = r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read max locals: %w", err)
	}

	codeLen, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read code length: %w", err)
	}
	code.Code, err = r.ReadBytes(int(codeLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read %d code bytes: %w", codeLen, err)
	}

	handlerCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read exception table count: %w", err)
	}
	code.ExceptionTable = make([]ExceptionHandler, handlerCount)
	for i := range code.ExceptionTable {
		h := &code.ExceptionTable[i]
		if h.StartPC, err = r.ReadU16(); err != nil {
			return nil, fmt.Errorf("failed to read exception handler %d: %w", i, err)
		}
		if h.EndPC, err = r.ReadU16(); err != nil {
			return nil, fmt.Errorf("failed to read exception handler %d: %w", i, err)
		}
		if h.HandlerPC, err = r.ReadU16(); err != nil {
			return nil, fmt.Errorf("failed to read exception handler %d: %w", i, err)
		}
		if h.CatchType, err = r.ReadU16(); err != nil {
			return nil, fmt.Errorf("failed to read exception handler %d: %w", i, err)
		}
	}

	attrCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read nested attribute count: %w", err)
	}
	code.Attributes, err = d.DecodeList(r, attrCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read nested attributes: %w", err)
	}

	return code, nil
}

func decodeAnnotationsAttribute(r *Reader) (Attribute, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	annotations := make([]Annotation, 0, count)
	for i := uint16(0); i < count; i++ {
		ann, err := DecodeAnnotation(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read annotation %d: %w", i, err)
		}
		annotations = append(annotations, *ann)
	}
	return &AnnotationsAttribute{Annotations: annotations}, nil
}

// ---------------------------------------------------------------------------
// Attribute Encoding
// ---------------------------------------------------------------------------

// EncodeAttribute writes one attribute: the name index (interning the
// registered name into the pool if needed), the body length, then the
// body. This is the canonical producer of attribute bytes; the length
// field always equals Length() - 6.
func EncodeAttribute(cp *ConstantPool, w *Writer, a Attribute) error {
	nameIndex, err := cp.InternUtf8(a.AttrName())
	if err != nil {
		return fmt.Errorf("failed to intern attribute name %q: %w", a.AttrName(), err)
	}
	if err := w.WriteU16(nameIndex); err != nil {
		return err
	}
	if err := w.WriteU32(a.Length() - attributeHeaderSize); err != nil {
		return err
	}
	return a.encodeBody(cp, w)
}
