// Package jdftest builds JDF bundles on disk for tests.
package jdftest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// Bundle maps file names to their UTF-8 content. Files are encoded as
// Windows-1250 when written.
type Bundle map[string]string

// Sample returns a small but complete bundle: one carrier, one line, two
// stops, one code, one connection visiting both stops.
func Sample() Bundle {
	return Bundle{
		"Dopravci.txt": `"12345678","CZ12345678","Dopravní podnik a.s.","1","","Hlavní 1, Brno","","","","","","www.dopravce.cz","1";` + "\r\n",
		"Linky.txt":    `"100001","Praha - Brno","12345678","A","A","0","0","1","","L1","01012023","31122023","01012023","31122023","","1";` + "\r\n",
		"Zastavky.txt": strings.Join([]string{
			`"1","Praha,hl.n.","Praha","","","CZ";`,
			`"2","Brno,,ÚAN Zvonařka","Brno","","","CZ";`,
		}, "\r\n") + "\r\n",
		"Pevnykod.txt": `"1","X","";` + "\r\n",
		"Spoje.txt":    `"100001","1","X","","","","","","","","","","","1","","1";` + "\r\n",
		"Zasspoje.txt": strings.Join([]string{
			`"100001","1","1","1","","","","","0","","0800","1","1";`,
			`"100001","1","2","2","","","","","210.5","1030","","1","2";`,
		}, "\r\n") + "\r\n",
		"VerzeJDF.txt": `"1.11","","","","25122023","";` + "\r\n",
	}
}

// Clone returns a copy of b that can be modified freely.
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Write stores the bundle in a new temporary directory and returns its path.
func Write(t *testing.T, b Bundle) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range b {
		if err := os.WriteFile(filepath.Join(dir, name), Encode(t, content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

// Zip stores the bundle as a zip archive, optionally below a folder inside
// the archive, and returns the archive path.
func Zip(t *testing.T, b Bundle, folder string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range b {
		w, err := zw.Create(filepath.ToSlash(filepath.Join(folder, name)))
		if err != nil {
			t.Fatalf("Failed to add %s to zip: %v", name, err)
		}
		if _, err := w.Write(Encode(t, content)); err != nil {
			t.Fatalf("Failed to write %s to zip: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return path
}

// Encode converts UTF-8 text to Windows-1250.
func Encode(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1250.NewEncoder().String(s)
	if err != nil {
		t.Fatalf("Failed to encode %q: %v", s, err)
	}
	return []byte(out)
}
