package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jizdni-rady/backend/internal/importer"
	"github.com/jizdni-rady/backend/internal/jdf"
)

// BundleImporter runs an import over an extracted bundle directory
type BundleImporter interface {
	Run(ctx context.Context, dir string) (*importer.Result, error)
}

// UploadOptions controls where uploads are unpacked and how large they may be
type UploadOptions struct {
	TempDir         string
	KeepTemp        bool
	MaxUploadBytes  int64
	MaxExtractBytes int64
}

// JDFHandler handles JDF bundle uploads
type JDFHandler struct {
	importer BundleImporter
	opts     UploadOptions
}

// NewJDFHandler creates a new handler with the given importer
func NewJDFHandler(imp BundleImporter, opts UploadOptions) *JDFHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	return &JDFHandler{importer: imp, opts: opts}
}

// ImportResponse is the JSON response structure for POST /api/jdf/zip
type ImportResponse struct {
	Success     bool            `json:"success"`
	RunID       string          `json:"runId"`
	State       importer.State  `json:"state"`
	FailedStage string          `json:"failedStage,omitempty"`
	RolledBack  bool            `json:"rolledBack,omitempty"`
	Counts      importer.Counts `json:"counts"`
	Version     *string         `json:"version,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// UploadZip handles POST /api/jdf/zip
// Accepts a zipped JDF bundle in the multipart field "file" and imports it
func (h *JDFHandler) UploadZip(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required", err)
		return
	}
	defer file.Close()

	workDir, err := os.MkdirTemp(h.opts.TempDir, "jdf-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prepare upload", err)
		return
	}
	if h.opts.KeepTemp {
		log.Printf("Keeping upload %s in %s", header.Filename, workDir)
	} else {
		defer os.RemoveAll(workDir)
	}

	zipPath := filepath.Join(workDir, "bundle.zip")
	if err := saveUpload(file, zipPath); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store upload", err)
		return
	}

	dir, err := jdf.ExtractZip(zipPath, filepath.Join(workDir, "bundle"), h.opts.MaxExtractBytes)
	if errors.Is(err, jdf.ErrArchiveTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Archive too large", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid JDF archive", err)
		return
	}

	log.Printf("Importing uploaded bundle %s (%d bytes)", header.Filename, header.Size)
	// A started import runs to completion even if the client goes away.
	res, err := h.importer.Run(context.WithoutCancel(r.Context()), dir)
	if res == nil {
		writeError(w, http.StatusInternalServerError, "Import failed", err)
		return
	}

	resp := ImportResponse{
		Success:     err == nil,
		RunID:       res.RunID.String(),
		State:       res.State,
		FailedStage: res.FailedStage,
		RolledBack:  res.RolledBack,
		Counts:      res.Counts,
	}
	if res.Version != nil {
		resp.Version = res.Version.Label
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, importStatus(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// importStatus maps bundle problems to 422 and everything else to 500.
func importStatus(err error) int {
	for _, target := range []error{
		importer.ErrRequiredFileMissing,
		importer.ErrInvalidCarrierFile,
		importer.ErrInvalidStopsFile,
		importer.ErrMissingKey,
		jdf.ErrMalformedRow,
		jdf.ErrDecode,
	} {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func saveUpload(src io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write upload: %w", err)
	}
	return out.Close()
}
