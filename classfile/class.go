package classfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// Class File Constants
// ---------------------------------------------------------------------------

// Magic identifies a class file.
const Magic uint32 = 0xCAFEBABE

// Access flags for classes, fields and methods.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
)

// ---------------------------------------------------------------------------
// Class File Model
// ---------------------------------------------------------------------------

// FieldInfo is one field record: access flags, name and descriptor
// indices, and the field's attribute list.
type FieldInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// MethodInfo is one method record: access flags, name and descriptor
// indices, and the method's attribute list (a Code attribute among
// them for non-abstract, non-native methods).
type MethodInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// ClassFile is a fully decoded class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*FieldInfo
	Methods      []*MethodInfo
	Attributes   []Attribute
}

// ClassName resolves the class's own name through the constant pool.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.resolveClassName(cf.ThisClass)
}

// SuperClassName resolves the superclass name, or "" when the class
// has no superclass (java/lang/Object itself).
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.resolveClassName(cf.SuperClass)
}

func (cf *ClassFile) resolveClassName(index uint16) (string, error) {
	entry, err := cf.Pool.Entry(index)
	if err != nil {
		return "", err
	}
	class, ok := entry.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("%w: %d is not a class entry (tag %d)", ErrInvalidPoolIndex, index, entry.Tag())
	}
	return cf.Pool.Utf8(class.NameIndex)
}

// ---------------------------------------------------------------------------
// Class File Decoding
// ---------------------------------------------------------------------------

// DecodeClassFile decodes a complete class file from data.
func DecodeClassFile(data []byte) (*ClassFile, error) {
	return decodeClassFile(NewReader(data), nil)
}

// DecodeClassFileFrom decodes a complete class file from an io.Reader.
func DecodeClassFileFrom(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read class data: %w", err)
	}
	return DecodeClassFile(data)
}

// LoadClassFile decodes the class file at path.
func LoadClassFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open class file: %w", err)
	}
	defer f.Close()
	return DecodeClassFileFrom(f)
}

// DecodeClassFileWithObserver decodes a class file, invoking onUnknown
// with the name of every attribute that matches no known variant.
func DecodeClassFileWithObserver(data []byte, onUnknown func(name string)) (*ClassFile, error) {
	return decodeClassFile(NewReader(data), onUnknown)
}

func decodeClassFile(r *Reader, onUnknown func(name string)) (*ClassFile, error) {
	magic, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: got 0x%08X", ErrInvalidMagic, magic)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.ReadU16(); err != nil {
		return nil, fmt.Errorf("failed to read minor version: %w", err)
	}
	if cf.MajorVersion, err = r.ReadU16(); err != nil {
		return nil, fmt.Errorf("failed to read major version: %w", err)
	}

	cf.Pool, err = DecodeConstantPool(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read constant pool: %w", err)
	}

	decoder := &AttributeDecoder{Pool: cf.Pool, OnUnknown: onUnknown}

	if cf.AccessFlags, err = r.ReadU16(); err != nil {
		return nil, fmt.Errorf("failed to read access flags: %w", err)
	}
	if cf.ThisClass, err = r.ReadU16(); err != nil {
		return nil, fmt.Errorf("failed to read this class index: %w", err)
	}
	if cf.SuperClass, err = r.ReadU16(); err != nil {
		return nil, fmt.Errorf("failed to read super class index: %w", err)
	}

	interfaceCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read interface count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfaceCount)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = r.ReadU16(); err != nil {
			return nil, fmt.Errorf("failed to read interface %d: %w", i, err)
		}
	}

	fieldCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read field count: %w", err)
	}
	cf.Fields = make([]*FieldInfo, fieldCount)
	for i := range cf.Fields {
		field := &FieldInfo{}
		if err := decodeMember(r, decoder, &field.AccessFlags, &field.NameIndex, &field.DescriptorIndex, &field.Attributes); err != nil {
			return nil, fmt.Errorf("failed to read field %d: %w", i, err)
		}
		cf.Fields[i] = field
	}

	methodCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read method count: %w", err)
	}
	cf.Methods = make([]*MethodInfo, methodCount)
	for i := range cf.Methods {
		method := &MethodInfo{}
		if err := decodeMember(r, decoder, &method.AccessFlags, &method.NameIndex, &method.DescriptorIndex, &method.Attributes); err != nil {
			return nil, fmt.Errorf("failed to read method %d: %w", i, err)
		}
		cf.Methods[i] = method
	}

	attrCount, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read class attribute count: %w", err)
	}
	cf.Attributes, err = decoder.DecodeList(r, attrCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read class attributes: %w", err)
	}

	return cf, nil
}

// decodeMember reads the shared field/method record layout: flags,
// name index, descriptor index, then the attribute list with the
// declared count treated as a budget of decode attempts.
func decodeMember(r *Reader, decoder *AttributeDecoder, flags, name, descriptor *uint16, attrs *[]Attribute) error {
	var err error
	if *flags, err = r.ReadU16(); err != nil {
		return fmt.Errorf("failed to read access flags: %w", err)
	}
	if *name, err = r.ReadU16(); err != nil {
		return fmt.Errorf("failed to read name index: %w", err)
	}
	if *descriptor, err = r.ReadU16(); err != nil {
		return fmt.Errorf("failed to read descriptor index: %w", err)
	}
	attrCount, err := r.ReadU16()
	if err != nil {
		return fmt.Errorf("failed to read attribute count: %w", err)
	}
	*attrs, err = decoder.DecodeList(r, attrCount)
	if err != nil {
		return fmt.Errorf("failed to read attributes: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Class File Encoding
// ---------------------------------------------------------------------------

// Encode writes the class file to w. Attribute names referenced by the
// attribute lists are interned into the pool before the pool section
// is written, so the emitted pool always resolves every name the
// attribute bodies reference.
func (cf *ClassFile) Encode(out io.Writer) error {
	// Intern attribute names up front: the pool section precedes the
	// attribute sections in the file.
	if err := cf.internAttributeNames(); err != nil {
		return err
	}

	w := NewWriter(out)
	if err := w.WriteU32(Magic); err != nil {
		return err
	}
	if err := w.WriteU16(cf.MinorVersion); err != nil {
		return err
	}
	if err := w.WriteU16(cf.MajorVersion); err != nil {
		return err
	}

	if err := cf.Pool.EncodeConstantPool(w); err != nil {
		return fmt.Errorf("failed to write constant pool: %w", err)
	}

	if err := w.WriteU16(cf.AccessFlags); err != nil {
		return err
	}
	if err := w.WriteU16(cf.ThisClass); err != nil {
		return err
	}
	if err := w.WriteU16(cf.SuperClass); err != nil {
		return err
	}

	if err := w.WriteU16(uint16(len(cf.Interfaces))); err != nil {
		return err
	}
	for _, index := range cf.Interfaces {
		if err := w.WriteU16(index); err != nil {
			return err
		}
	}

	if err := w.WriteU16(uint16(len(cf.Fields))); err != nil {
		return err
	}
	for i, field := range cf.Fields {
		if err := encodeMember(cf.Pool, w, field.AccessFlags, field.NameIndex, field.DescriptorIndex, field.Attributes); err != nil {
			return fmt.Errorf("failed to write field %d: %w", i, err)
		}
	}

	if err := w.WriteU16(uint16(len(cf.Methods))); err != nil {
		return err
	}
	for i, method := range cf.Methods {
		if err := encodeMember(cf.Pool, w, method.AccessFlags, method.NameIndex, method.DescriptorIndex, method.Attributes); err != nil {
			return fmt.Errorf("failed to write method %d: %w", i, err)
		}
	}

	if err := w.WriteU16(uint16(len(cf.Attributes))); err != nil {
		return err
	}
	for _, attr := range cf.Attributes {
		if err := EncodeAttribute(cf.Pool, w, attr); err != nil {
			return err
		}
	}

	return w.Err()
}

// EncodeToBytes encodes the class file into a byte slice.
func (cf *ClassFile) EncodeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := cf.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (cf *ClassFile) internAttributeNames() error {
	for _, field := range cf.Fields {
		if err := internNames(cf.Pool, field.Attributes); err != nil {
			return err
		}
	}
	for _, method := range cf.Methods {
		if err := internNames(cf.Pool, method.Attributes); err != nil {
			return err
		}
	}
	return internNames(cf.Pool, cf.Attributes)
}

func internNames(cp *ConstantPool, attrs []Attribute) error {
	for _, attr := range attrs {
		if _, err := cp.InternUtf8(attr.AttrName()); err != nil {
			return err
		}
		if code, ok := attr.(*CodeAttribute); ok {
			if err := internNames(cp, code.Attributes); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeMember(cp *ConstantPool, w *Writer, flags, name, descriptor uint16, attrs []Attribute) error {
	if err := w.WriteU16(flags); err != nil {
		return err
	}
	if err := w.WriteU16(name); err != nil {
		return err
	}
	if err := w.WriteU16(descriptor); err != nil {
		return err
	}
	if err := w.WriteU16(uint16(len(attrs))); err != nil {
		return err
	}
	for _, attr := range attrs {
		if err := EncodeAttribute(cp, w, attr); err != nil {
			return err
		}
	}
	return nil
}
