package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "doc.json")

	if err := WriteFileAtomic(target, []byte("first"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0644); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected 'second', got %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
	if !Exists(target) {
		t.Error("Exists returned false for written file")
	}
	if Exists(filepath.Dir(target)) {
		t.Error("Exists returned true for a directory")
	}
}

func TestWriteFileExclusive(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.json")

	written, err := WriteFileExclusive(target, []byte("first"), 0644)
	if err != nil || !written {
		t.Fatalf("first write = %v, %v", written, err)
	}
	written, err = WriteFileExclusive(target, []byte("second"), 0644)
	if err != nil || written {
		t.Fatalf("second write = %v, %v", written, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("existing file was replaced, got %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file left behind, found %d entries", len(entries))
	}
}
