package jdf

import (
	"path/filepath"
	"time"
)

// Version is the content of the optional VerzeJDF.txt file.
type Version struct {
	Label *string
	Date  *time.Time
}

// ReadVersion reads the version file of a bundle. It returns nil without
// error when the file is absent or empty.
func ReadVersion(dir string) (*Version, error) {
	ok, err := Exists(dir, VersionFile)
	if err != nil || !ok {
		return nil, err
	}

	records, err := ReadFile(filepath.Join(dir, VersionFile))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	row := records[0]
	return &Version{
		Label: AsString(Field(row, 0)),
		Date:  AsDate(Field(row, 4)),
	}, nil
}
