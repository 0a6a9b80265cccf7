package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrRequiredFileMissing is returned when a bundle lacks a required file.
	// Errors carrying it also match jdf.ErrFileNotFound.
	ErrRequiredFileMissing = errors.New("required file missing")
	// ErrInvalidCarrierFile is returned when the carrier file does not hold exactly one row.
	ErrInvalidCarrierFile = errors.New("invalid carrier file")
	// ErrInvalidStopsFile is returned when the stops file holds no rows.
	ErrInvalidStopsFile = errors.New("invalid stops file")
	// ErrMissingKey is returned in strict mode for rows with an incomplete natural key.
	ErrMissingKey = errors.New("incomplete natural key")
)

// StageError reports the stage an import failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
