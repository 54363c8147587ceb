package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/cafebabe/export"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexAndLookup(t *testing.T) {
	s := openTestStore(t)

	summary := &export.ClassSummary{
		Name:         "example/Hello",
		SuperName:    "java/lang/Object",
		MajorVersion: 52,
		SourceFile:   "Hello.java",
		Methods: []export.MethodSummary{
			{Name: "run", Descriptor: "()V", MaxStack: 1, MaxLocals: 1, CodeSize: 1},
		},
	}
	if err := s.IndexClass(summary); err != nil {
		t.Fatalf("IndexClass failed: %v", err)
	}

	got, err := s.LookupClass("example/Hello")
	if err != nil {
		t.Fatalf("LookupClass failed: %v", err)
	}
	if !reflect.DeepEqual(got, summary) {
		t.Errorf("LookupClass = %+v, want %+v", got, summary)
	}
}

func TestLookupMissingClass(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LookupClass("no/Such")
	if !errors.Is(err, ErrClassNotFound) {
		t.Errorf("error = %v, want ErrClassNotFound", err)
	}
}

func TestIndexReplacesExisting(t *testing.T) {
	s := openTestStore(t)

	if err := s.IndexClass(&export.ClassSummary{Name: "example/A", MajorVersion: 50}); err != nil {
		t.Fatalf("IndexClass failed: %v", err)
	}
	if err := s.IndexClass(&export.ClassSummary{Name: "example/A", MajorVersion: 55}); err != nil {
		t.Fatalf("IndexClass (replace) failed: %v", err)
	}

	got, err := s.LookupClass("example/A")
	if err != nil {
		t.Fatalf("LookupClass failed: %v", err)
	}
	if got.MajorVersion != 55 {
		t.Errorf("MajorVersion = %d, want 55 (replaced)", got.MajorVersion)
	}

	names, err := s.ListClasses()
	if err != nil {
		t.Fatalf("ListClasses failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("ListClasses = %v, want a single entry", names)
	}
}

func TestListAndSubclasses(t *testing.T) {
	s := openTestStore(t)

	for _, summary := range []*export.ClassSummary{
		{Name: "example/B", SuperName: "example/A"},
		{Name: "example/A", SuperName: "java/lang/Object"},
		{Name: "example/C", SuperName: "example/A"},
	} {
		if err := s.IndexClass(summary); err != nil {
			t.Fatalf("IndexClass(%s) failed: %v", summary.Name, err)
		}
	}

	names, err := s.ListClasses()
	if err != nil {
		t.Fatalf("ListClasses failed: %v", err)
	}
	if want := []string{"example/A", "example/B", "example/C"}; !reflect.DeepEqual(names, want) {
		t.Errorf("ListClasses = %v, want %v", names, want)
	}

	subs, err := s.Subclasses("example/A")
	if err != nil {
		t.Fatalf("Subclasses failed: %v", err)
	}
	if want := []string{"example/B", "example/C"}; !reflect.DeepEqual(subs, want) {
		t.Errorf("Subclasses = %v, want %v", subs, want)
	}
}
