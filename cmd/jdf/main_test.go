package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jizdni-rady/backend/internal/jdf/jdftest"
)

func TestSchemaCommand(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{"sqlite", "AUTOINCREMENT"},
		{"postgres", "GENERATED"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"schema", "--dialect", tt.dialect})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("schema failed: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("%s schema does not mention %s", tt.dialect, tt.want)
			}
		})
	}
}

func TestImportCommand(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_DATABASE", filepath.Join(t.TempDir(), "jdf.db"))
	t.Setenv("JDF_TEMP_DIR", t.TempDir())

	tests := []struct {
		name string
		arg  string
	}{
		{"directory", jdftest.Write(t, jdftest.Sample())},
		{"zip", jdftest.Zip(t, jdftest.Sample(), "JDF")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs([]string{"import", tt.arg})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("import failed: %v", err)
			}
		})
	}
}

func TestImportCommandMissingFile(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_DATABASE", filepath.Join(t.TempDir(), "jdf.db"))

	b := jdftest.Sample()
	delete(b, "Spoje.txt")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"import", jdftest.Write(t, b)})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Error("import should fail when a required file is missing")
	}
}
