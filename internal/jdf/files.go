package jdf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File names inside a bundle. Lookups are case-sensitive.
const (
	CarrierFile         = "Dopravci.txt"
	LinesFile           = "Linky.txt"
	StopsFile           = "Zastavky.txt"
	CodesFile           = "Pevnykod.txt"
	ConnectionsFile     = "Spoje.txt"
	StopConnectionsFile = "Zasspoje.txt"
	VersionFile         = "VerzeJDF.txt"
)

// RequiredFiles lists the files an import cannot proceed without, in stage order.
var RequiredFiles = []string{
	CarrierFile,
	LinesFile,
	StopsFile,
	CodesFile,
	ConnectionsFile,
	StopConnectionsFile,
}

// Exists reports whether name is a regular file inside dir.
func Exists(dir, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// MissingFiles returns the required files absent from dir.
func MissingFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("bundle directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("bundle path %s is not a directory", dir)
	}

	var missing []string
	for _, name := range RequiredFiles {
		ok, err := Exists(dir, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
