package main

import (
	"fmt"
	"strings"

	"github.com/chazu/cafebabe/classfile"
)

// renderClassFile produces a human-readable dump of a decoded class:
// header facts, then every member with its full attribute tree.
func renderClassFile(cf *classfile.ClassFile) (string, error) {
	var sb strings.Builder

	name, err := cf.ClassName()
	if err != nil {
		return "", err
	}
	superName, err := cf.SuperClassName()
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&sb, "class %s", name)
	if superName != "" {
		fmt.Fprintf(&sb, " extends %s", superName)
	}
	fmt.Fprintf(&sb, "\n  version %d.%d, flags 0x%04X, constant pool %d entries\n",
		cf.MajorVersion, cf.MinorVersion, cf.AccessFlags, cf.Pool.Count()-1)

	for _, field := range cf.Fields {
		fieldName, _ := cf.Pool.Utf8(field.NameIndex)
		descriptor, _ := cf.Pool.Utf8(field.DescriptorIndex)
		fmt.Fprintf(&sb, "  field %s %s (flags 0x%04X)\n", fieldName, descriptor, field.AccessFlags)
		renderAttributes(&sb, cf, field.Attributes, 2)
	}

	for _, method := range cf.Methods {
		methodName, _ := cf.Pool.Utf8(method.NameIndex)
		descriptor, _ := cf.Pool.Utf8(method.DescriptorIndex)
		fmt.Fprintf(&sb, "  method %s%s (flags 0x%04X)\n", methodName, descriptor, method.AccessFlags)
		renderAttributes(&sb, cf, method.Attributes, 2)
	}

	renderAttributes(&sb, cf, cf.Attributes, 1)
	return sb.String(), nil
}

func renderAttributes(sb *strings.Builder, cf *classfile.ClassFile, attrs []classfile.Attribute, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, attr := range attrs {
		switch a := attr.(type) {
		case *classfile.ConstantValueAttribute:
			fmt.Fprintf(sb, "%sConstantValue #%d\n", indent, a.ValueIndex)
		case *classfile.DeprecatedAttribute:
			fmt.Fprintf(sb, "%sDeprecated\n", indent)
		case *classfile.SourceFileAttribute:
			source, _ := cf.Pool.Utf8(a.SourceFileIndex)
			fmt.Fprintf(sb, "%sSourceFile %q\n", indent, source)
		case *classfile.ExceptionsAttribute:
			fmt.Fprintf(sb, "%sExceptions %v\n", indent, a.ExceptionIndexes)
		case *classfile.LineNumberTableAttribute:
			fmt.Fprintf(sb, "%sLineNumberTable (%d entries)\n", indent, len(a.Entries))
			for _, entry := range a.Entries {
				fmt.Fprintf(sb, "%s  pc %d -> line %d\n", indent, entry.StartPC, entry.LineNumber)
			}
		case *classfile.CodeAttribute:
			fmt.Fprintf(sb, "%sCode (stack %d, locals %d, %d bytes, %d handlers)\n",
				indent, a.MaxStack, a.MaxLocals, len(a.Code), len(a.ExceptionTable))
			for _, handler := range a.ExceptionTable {
				fmt.Fprintf(sb, "%s  try [%d,%d) handler %d catch #%d\n",
					indent, handler.StartPC, handler.EndPC, handler.HandlerPC, handler.CatchType)
			}
			renderAttributes(sb, cf, a.Attributes, depth+1)
		case *classfile.AnnotationsAttribute:
			fmt.Fprintf(sb, "%sRuntimeVisibleAnnotations (%d)\n", indent, len(a.Annotations))
			for i := range a.Annotations {
				renderAnnotation(sb, cf, &a.Annotations[i], depth+1)
			}
		}
	}
}

func renderAnnotation(sb *strings.Builder, cf *classfile.ClassFile, ann *classfile.Annotation, depth int) {
	indent := strings.Repeat("  ", depth)
	typeName, err := cf.Pool.Utf8(ann.TypeIndex)
	if err != nil {
		typeName = fmt.Sprintf("#%d", ann.TypeIndex)
	}
	fmt.Fprintf(sb, "%s@%s\n", indent, typeName)
	for _, pair := range ann.Pairs {
		pairName, err := cf.Pool.Utf8(pair.NameIndex)
		if err != nil {
			pairName = fmt.Sprintf("#%d", pair.NameIndex)
		}
		fmt.Fprintf(sb, "%s  %s = %s\n", indent, pairName, renderElementValue(pair.Value))
	}
}

func renderElementValue(v classfile.ElementValue) string {
	switch e := v.(type) {
	case *classfile.ConstElement:
		return fmt.Sprintf("%c#%d", e.Kind, e.Index)
	case *classfile.EnumElement:
		return fmt.Sprintf("enum #%d.#%d", e.TypeNameIndex, e.ConstNameIndex)
	case *classfile.AnnotationElement:
		return fmt.Sprintf("@#%d(%d pairs)", e.Annotation.TypeIndex, len(e.Annotation.Pairs))
	case *classfile.ArrayElement:
		parts := make([]string, 0, len(e.Elements))
		for _, elem := range e.Elements {
			parts = append(parts, renderElementValue(elem))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%T", v)
	}
}
