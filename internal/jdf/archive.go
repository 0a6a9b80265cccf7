package jdf

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrArchiveTooLarge is returned when an archive unpacks to more than the
// allowed number of bytes.
var ErrArchiveTooLarge = errors.New("jdf: archive too large")

// DefaultMaxExtractBytes caps the unpacked size of an archive when no limit
// is configured.
const DefaultMaxExtractBytes int64 = 512 << 20

// ExtractZip unpacks the archive at zipPath into destDir and returns the
// directory that holds the bundle files. Archives that wrap the files in a
// single folder are handled by searching for the carrier file. At most
// maxBytes are written across all entries; a non-positive maxBytes means
// DefaultMaxExtractBytes.
func ExtractZip(zipPath, destDir string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxExtractBytes
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	remaining := maxBytes
	for _, f := range r.File {
		n, err := extractFile(f, destDir, remaining)
		if err != nil {
			return "", err
		}
		remaining -= n
	}

	return FindBundleDir(destDir)
}

// extractFile writes one entry and returns the number of bytes written. It
// fails with ErrArchiveTooLarge once more than limit bytes would be written.
func extractFile(f *zip.File, destDir string, limit int64) (int64, error) {
	target := filepath.Join(destDir, f.Name)
	root := filepath.Clean(destDir) + string(os.PathSeparator)
	if !strings.HasPrefix(target, root) {
		return 0, fmt.Errorf("illegal file path in zip: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return 0, os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	// Read one byte past the limit to tell "exactly at" from "over".
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return n, err
	}
	if n > limit {
		return n, fmt.Errorf("%w: %s exceeds the unpacked size limit", ErrArchiveTooLarge, f.Name)
	}
	return n, nil
}

// FindBundleDir returns root if it contains the carrier file, otherwise the
// first subdirectory that does. If none does, root is returned and the
// import reports the missing file.
func FindBundleDir(root string) (string, error) {
	if ok, err := Exists(root, CarrierFile); err != nil || ok {
		return root, err
	}

	found := ""
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == CarrierFile {
			found = filepath.Dir(path)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return root, nil
	}
	return found, nil
}
