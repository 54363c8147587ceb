// Package export produces compact, serializable summaries of decoded
// class files for indexing and interchange.
package export

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/cafebabe/classfile"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Summary Types
// ---------------------------------------------------------------------------

// ClassSummary is a flattened view of a decoded class file: names
// resolved through the constant pool, attribute payloads reduced to
// the facts useful for indexing.
type ClassSummary struct {
	Name         string          `cbor:"name"`
	SuperName    string          `cbor:"super,omitempty"`
	MajorVersion uint16          `cbor:"major"`
	MinorVersion uint16          `cbor:"minor"`
	AccessFlags  uint16          `cbor:"flags"`
	SourceFile   string          `cbor:"source,omitempty"`
	Deprecated   bool            `cbor:"deprecated,omitempty"`
	Annotations  []string        `cbor:"annotations,omitempty"`
	Fields       []FieldSummary  `cbor:"fields,omitempty"`
	Methods      []MethodSummary `cbor:"methods,omitempty"`
}

// FieldSummary is one field of a summarized class.
type FieldSummary struct {
	Name        string   `cbor:"name"`
	Descriptor  string   `cbor:"descriptor"`
	AccessFlags uint16   `cbor:"flags"`
	HasConstant bool     `cbor:"constant,omitempty"`
	Deprecated  bool     `cbor:"deprecated,omitempty"`
	Annotations []string `cbor:"annotations,omitempty"`
}

// MethodSummary is one method of a summarized class.
type MethodSummary struct {
	Name        string   `cbor:"name"`
	Descriptor  string   `cbor:"descriptor"`
	AccessFlags uint16   `cbor:"flags"`
	MaxStack    uint16   `cbor:"maxStack,omitempty"`
	MaxLocals   uint16   `cbor:"maxLocals,omitempty"`
	CodeSize    uint32   `cbor:"codeSize,omitempty"`
	LineCount   int      `cbor:"lineCount,omitempty"`
	Throws      []string `cbor:"throws,omitempty"`
	Deprecated  bool     `cbor:"deprecated,omitempty"`
	Annotations []string `cbor:"annotations,omitempty"`
}

// ---------------------------------------------------------------------------
// Summarization
// ---------------------------------------------------------------------------

// Summarize flattens a decoded class file into a ClassSummary.
func Summarize(cf *classfile.ClassFile) (*ClassSummary, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve class name: %w", err)
	}
	superName, err := cf.SuperClassName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve superclass name: %w", err)
	}

	summary := &ClassSummary{
		Name:         name,
		SuperName:    superName,
		MajorVersion: cf.MajorVersion,
		MinorVersion: cf.MinorVersion,
		AccessFlags:  cf.AccessFlags,
	}

	for _, attr := range cf.Attributes {
		switch a := attr.(type) {
		case *classfile.SourceFileAttribute:
			if source, err := cf.Pool.Utf8(a.SourceFileIndex); err == nil {
				summary.SourceFile = source
			}
		case *classfile.DeprecatedAttribute:
			summary.Deprecated = true
		case *classfile.AnnotationsAttribute:
			summary.Annotations = annotationTypes(cf.Pool, a)
		}
	}

	for _, field := range cf.Fields {
		fs := FieldSummary{AccessFlags: field.AccessFlags}
		if fs.Name, err = cf.Pool.Utf8(field.NameIndex); err != nil {
			return nil, fmt.Errorf("failed to resolve field name: %w", err)
		}
		if fs.Descriptor, err = cf.Pool.Utf8(field.DescriptorIndex); err != nil {
			return nil, fmt.Errorf("failed to resolve field descriptor: %w", err)
		}
		for _, attr := range field.Attributes {
			switch a := attr.(type) {
			case *classfile.ConstantValueAttribute:
				fs.HasConstant = true
			case *classfile.DeprecatedAttribute:
				fs.Deprecated = true
			case *classfile.AnnotationsAttribute:
				fs.Annotations = annotationTypes(cf.Pool, a)
			}
		}
		summary.Fields = append(summary.Fields, fs)
	}

	for _, method := range cf.Methods {
		ms := MethodSummary{AccessFlags: method.AccessFlags}
		if ms.Name, err = cf.Pool.Utf8(method.NameIndex); err != nil {
			return nil, fmt.Errorf("failed to resolve method name: %w", err)
		}
		if ms.Descriptor, err = cf.Pool.Utf8(method.DescriptorIndex); err != nil {
			return nil, fmt.Errorf("failed to resolve method descriptor: %w", err)
		}
		for _, attr := range method.Attributes {
			switch a := attr.(type) {
			case *classfile.CodeAttribute:
				ms.MaxStack = a.MaxStack
				ms.MaxLocals = a.MaxLocals
				ms.CodeSize = uint32(len(a.Code))
				for _, nested := range a.Attributes {
					if lnt, ok := nested.(*classfile.LineNumberTableAttribute); ok {
						ms.LineCount += len(lnt.Entries)
					}
				}
			case *classfile.ExceptionsAttribute:
				for _, index := range a.ExceptionIndexes {
					if thrown, err := resolveClassName(cf.Pool, index); err == nil {
						ms.Throws = append(ms.Throws, thrown)
					}
				}
			case *classfile.DeprecatedAttribute:
				ms.Deprecated = true
			case *classfile.AnnotationsAttribute:
				ms.Annotations = annotationTypes(cf.Pool, a)
			}
		}
		summary.Methods = append(summary.Methods, ms)
	}

	return summary, nil
}

// annotationTypes resolves the type descriptor of each annotation,
// best effort: unresolvable indices are preserved numerically rather
// than dropped.
func annotationTypes(cp *classfile.ConstantPool, a *classfile.AnnotationsAttribute) []string {
	types := make([]string, 0, len(a.Annotations))
	for i := range a.Annotations {
		descriptor, err := cp.Utf8(a.Annotations[i].TypeIndex)
		if err != nil {
			descriptor = fmt.Sprintf("#%d", a.Annotations[i].TypeIndex)
		}
		types = append(types, descriptor)
	}
	return types
}

func resolveClassName(cp *classfile.ConstantPool, index uint16) (string, error) {
	entry, err := cp.Entry(index)
	if err != nil {
		return "", err
	}
	class, ok := entry.(*classfile.ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant %d is not a class entry", index)
	}
	return cp.Utf8(class.NameIndex)
}

// ---------------------------------------------------------------------------
// CBOR Wire Format
// ---------------------------------------------------------------------------

// Marshal serializes a ClassSummary to canonical CBOR bytes.
func Marshal(s *ClassSummary) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a ClassSummary from CBOR bytes.
func Unmarshal(data []byte) (*ClassSummary, error) {
	var s ClassSummary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("export: unmarshal class summary: %w", err)
	}
	return &s, nil
}
