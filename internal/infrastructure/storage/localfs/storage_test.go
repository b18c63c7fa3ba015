package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveWritesSanitizedFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Save(context.Background(), "../../../etc/passwd evil.txt", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Fatalf("file escaped the base dir: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestNewCreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "docs")
	if _, err := New(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("base dir not created: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":         "report.pdf",
		"my notes.txt":       "my_notes.txt",
		"../../secret.txt":   "secret.txt",
		"weird\x00name?.txt": "weird_name_.txt",
		"":                   "document.bin",
		".":                  "document.bin",
	}
	for input, want := range cases {
		if got := SanitizeFilename(input); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
