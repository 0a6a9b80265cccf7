package jdf

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return path
}

func TestExtractZip(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantSub string
	}{
		{"files at root", map[string]string{CarrierFile: "x", LinesFile: "y"}, ""},
		{"files in a folder", map[string]string{"JDF/" + CarrierFile: "x", "JDF/" + LinesFile: "y"}, "JDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			dir, err := ExtractZip(writeZip(t, tt.files), dest, 0)
			if err != nil {
				t.Fatalf("ExtractZip failed: %v", err)
			}
			if want := filepath.Join(dest, tt.wantSub); dir != want {
				t.Errorf("bundle dir = %s, want %s", dir, want)
			}
			if ok, _ := Exists(dir, LinesFile); !ok {
				t.Errorf("%s not extracted", LinesFile)
			}
		})
	}
}

func TestExtractZipRejectsPathTraversal(t *testing.T) {
	path := writeZip(t, map[string]string{"../evil.txt": "x"})
	if _, err := ExtractZip(path, t.TempDir(), 0); err == nil {
		t.Error("ExtractZip should reject entries escaping the destination")
	}
}

func TestExtractZipInvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	os.WriteFile(path, []byte("not a zip"), 0644)
	if _, err := ExtractZip(path, t.TempDir(), 0); err == nil {
		t.Error("ExtractZip should fail for a non-zip file")
	}
}

func TestExtractZipSizeLimit(t *testing.T) {
	files := map[string]string{CarrierFile: "0123456789", LinesFile: "0123456789"}

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{"under limit", 100, false},
		{"exactly at limit", 20, false},
		{"single entry over limit", 5, true},
		{"entries together over limit", 15, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractZip(writeZip(t, files), t.TempDir(), tt.limit)
			if tt.wantErr && !errors.Is(err, ErrArchiveTooLarge) {
				t.Errorf("err = %v, want ErrArchiveTooLarge", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ExtractZip failed: %v", err)
			}
		})
	}
}
