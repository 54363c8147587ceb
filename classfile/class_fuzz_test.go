package classfile

import (
	"testing"
)

// ---------------------------------------------------------------------------
// FuzzDecodeClassFile: ensure the decoder never panics on arbitrary
// input. Errors are expected and acceptable; panics are bugs.
// ---------------------------------------------------------------------------

func FuzzDecodeClassFile(f *testing.F) {
	original := buildFuzzSeedClass(f)
	seed, err := original.EncodeToBytes()
	if err != nil {
		f.Fatalf("EncodeToBytes failed: %v", err)
	}
	f.Add(seed)
	f.Add(seed[:8])
	f.Add([]byte{0xCA, 0xFE, 0xBA, 0xBE})

	f.Fuzz(func(t *testing.T, data []byte) {
		cf, err := DecodeClassFile(data)
		if err != nil {
			return
		}
		// Anything that decodes must re-encode, and the re-encoding
		// must decode again (unknown attributes were already dropped
		// on the first pass, so the second pass is lossless).
		out, err := cf.EncodeToBytes()
		if err != nil {
			t.Fatalf("decoded class failed to encode: %v", err)
		}
		if _, err := DecodeClassFile(out); err != nil {
			t.Fatalf("re-encoded class failed to decode: %v", err)
		}
	})
}

// buildFuzzSeedClass mirrors buildTestClass but takes the fuzzing
// harness instead of *testing.T.
func buildFuzzSeedClass(f *testing.F) *ClassFile {
	f.Helper()

	cp := NewConstantPool()
	mustUtf8 := func(s string) uint16 {
		index, err := cp.InternUtf8(s)
		if err != nil {
			f.Fatalf("InternUtf8(%q) failed: %v", s, err)
		}
		return index
	}
	objectName := mustUtf8("java/lang/Object")
	objectClass, err := cp.Add(&ConstantClass{NameIndex: objectName})
	if err != nil {
		f.Fatalf("Add failed: %v", err)
	}
	selfName := mustUtf8("Fuzz")
	selfClass, err := cp.Add(&ConstantClass{NameIndex: selfName})
	if err != nil {
		f.Fatalf("Add failed: %v", err)
	}

	return &ClassFile{
		MajorVersion: 52,
		Pool:         cp,
		AccessFlags:  AccPublic,
		ThisClass:    selfClass,
		SuperClass:   objectClass,
		Methods: []*MethodInfo{
			{
				AccessFlags:     AccPublic,
				NameIndex:       mustUtf8("run"),
				DescriptorIndex: mustUtf8("()V"),
				Attributes: []Attribute{
					&CodeAttribute{MaxStack: 1, MaxLocals: 1, Code: []byte{0xB1}},
				},
			},
		},
	}
}
