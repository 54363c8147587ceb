package classfile

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Constant Pool Tags
// ---------------------------------------------------------------------------

const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
)

// ---------------------------------------------------------------------------
// Constant Pool Entries
// ---------------------------------------------------------------------------

// Constant is implemented by all constant pool entry types.
type Constant interface {
	Tag() uint8
}

type ConstantUtf8 struct {
	Value string
}

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct {
	Value int32
}

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct {
	Value float32
}

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct {
	Value int64
}

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct {
	Value float64
}

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct {
	NameIndex uint16
}

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct {
	StringIndex uint16
}

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// ---------------------------------------------------------------------------
// ConstantPool: Index <-> string resolution and interning
// ---------------------------------------------------------------------------

// ConstantPool holds the class file's constant pool. Indices are
// 1-based; slot 0 is never valid. Long and Double entries occupy two
// slots, with the second slot left nil, matching the on-disk count
// accounting.
type ConstantPool struct {
	entries []Constant // entries[0] is always nil

	// utf8Index maps interned UTF-8 values to their pool index so the
	// encoder can resolve names without a linear scan.
	utf8Index map[string]uint16
}

// NewConstantPool creates an empty constant pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		entries:   make([]Constant, 1),
		utf8Index: make(map[string]uint16),
	}
}

// Count returns the constant_pool_count value: one more than the
// number of occupied slots.
func (cp *ConstantPool) Count() uint16 {
	return uint16(len(cp.entries))
}

// Entry returns the entry at the given 1-based index.
func (cp *ConstantPool) Entry(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(cp.entries) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolIndex, index)
	}
	e := cp.entries[index]
	if e == nil {
		return nil, fmt.Errorf("%w: %d is the unusable second slot of a long or double", ErrInvalidPoolIndex, index)
	}
	return e, nil
}

// Utf8 resolves the entry at index to its UTF-8 string value. It fails
// with ErrInvalidPoolIndex if the index is out of range or the entry
// is not a UTF-8 entry.
func (cp *ConstantPool) Utf8(index uint16) (string, error) {
	e, err := cp.Entry(index)
	if err != nil {
		return "", err
	}
	u, ok := e.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("%w: %d is not a UTF-8 entry (tag %d)", ErrInvalidPoolIndex, index, e.Tag())
	}
	return u.Value, nil
}

// Add appends an entry and returns its index. Long and Double entries
// consume an extra slot.
func (cp *ConstantPool) Add(c Constant) (uint16, error) {
	slots := 1
	if c.Tag() == TagLong || c.Tag() == TagDouble {
		slots = 2
	}
	if len(cp.entries)+slots > math.MaxUint16 {
		return 0, ErrPoolOverflow
	}
	index := uint16(len(cp.entries))
	cp.entries = append(cp.entries, c)
	if slots == 2 {
		cp.entries = append(cp.entries, nil)
	}
	if u, ok := c.(*ConstantUtf8); ok {
		if _, exists := cp.utf8Index[u.Value]; !exists {
			cp.utf8Index[u.Value] = index
		}
	}
	return index, nil
}

// InternUtf8 returns the index of the UTF-8 entry with the given
// value, adding one if the pool does not already contain it.
func (cp *ConstantPool) InternUtf8(s string) (uint16, error) {
	if index, ok := cp.utf8Index[s]; ok {
		return index, nil
	}
	return cp.Add(&ConstantUtf8{Value: s})
}

// ---------------------------------------------------------------------------
// Constant Pool Decoding
// ---------------------------------------------------------------------------

// DecodeConstantPool reads the constant pool section: a u16 count
// followed by count-1 entries (long and double entries consume two of
// the counted slots).
func DecodeConstantPool(r *Reader) (*ConstantPool, error) {
	count, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("failed to read constant pool count: %w", err)
	}

	cp := NewConstantPool()
	for index := uint16(1); index < count; index++ {
		c, err := decodeConstant(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read constant %d: %w", index, err)
		}
		if _, err := cp.Add(c); err != nil {
			return nil, err
		}
		if c.Tag() == TagLong || c.Tag() == TagDouble {
			index++
		}
	}
	return cp, nil
}

func decodeConstant(r *Reader) (Constant, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagUtf8:
		length, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		return &ConstantUtf8{Value: string(raw)}, nil
	case TagInteger:
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return &ConstantInteger{Value: int32(v)}, nil
	case TagFloat:
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return &ConstantFloat{Value: math.Float32frombits(v)}, nil
	case TagLong:
		hi, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		lo, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return &ConstantLong{Value: int64(uint64(hi)<<32 | uint64(lo))}, nil
	case TagDouble:
		hi, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		lo, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return &ConstantDouble{Value: math.Float64frombits(uint64(hi)<<32 | uint64(lo))}, nil
	case TagClass:
		nameIndex, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		return &ConstantClass{NameIndex: nameIndex}, nil
	case TagString:
		stringIndex, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		return &ConstantString{StringIndex: stringIndex}, nil
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		classIndex, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		natIndex, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		switch tag {
		case TagFieldref:
			return &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}, nil
		case TagMethodref:
			return &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}, nil
		default:
			return &ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}, nil
		}
	case TagNameAndType:
		nameIndex, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		descIndex, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		return &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}, nil
	default:
		return nil, fmt.Errorf("unsupported constant pool tag %d", tag)
	}
}

// ---------------------------------------------------------------------------
// Constant Pool Encoding
// ---------------------------------------------------------------------------

// EncodeConstantPool writes the constant pool section.
func (cp *ConstantPool) EncodeConstantPool(w *Writer) error {
	if err := w.WriteU16(cp.Count()); err != nil {
		return err
	}
	for index := 1; index < len(cp.entries); index++ {
		c := cp.entries[index]
		if c == nil {
			continue // second slot of a long or double
		}
		if err := encodeConstant(w, c); err != nil {
			return fmt.Errorf("failed to write constant %d: %w", index, err)
		}
	}
	return w.Err()
}

func encodeConstant(w *Writer, c Constant) error {
	if err := w.WriteU8(c.Tag()); err != nil {
		return err
	}
	switch e := c.(type) {
	case *ConstantUtf8:
		if err := w.WriteU16(uint16(len(e.Value))); err != nil {
			return err
		}
		return w.WriteBytes([]byte(e.Value))
	case *ConstantInteger:
		return w.WriteU32(uint32(e.Value))
	case *ConstantFloat:
		return w.WriteU32(math.Float32bits(e.Value))
	case *ConstantLong:
		bits := uint64(e.Value)
		if err := w.WriteU32(uint32(bits >> 32)); err != nil {
			return err
		}
		return w.WriteU32(uint32(bits))
	case *ConstantDouble:
		bits := math.Float64bits(e.Value)
		if err := w.WriteU32(uint32(bits >> 32)); err != nil {
			return err
		}
		return w.WriteU32(uint32(bits))
	case *ConstantClass:
		return w.WriteU16(e.NameIndex)
	case *ConstantString:
		return w.WriteU16(e.StringIndex)
	case *ConstantFieldref:
		if err := w.WriteU16(e.ClassIndex); err != nil {
			return err
		}
		return w.WriteU16(e.NameAndTypeIndex)
	case *ConstantMethodref:
		if err := w.WriteU16(e.ClassIndex); err != nil {
			return err
		}
		return w.WriteU16(e.NameAndTypeIndex)
	case *ConstantInterfaceMethodref:
		if err := w.WriteU16(e.ClassIndex); err != nil {
			return err
		}
		return w.WriteU16(e.NameAndTypeIndex)
	case *ConstantNameAndType:
		if err := w.WriteU16(e.NameIndex); err != nil {
			return err
		}
		return w.WriteU16(e.DescriptorIndex)
	default:
		return fmt.Errorf("unsupported constant pool entry %T", c)
	}
}
