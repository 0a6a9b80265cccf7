package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jizdni-rady/backend/internal/models"
)

// ImportRunRepository defines the interface for import history reads
type ImportRunRepository interface {
	ListRuns(ctx context.Context, limit int) ([]models.ImportRun, error)
}

// ImportRunHandler handles HTTP requests for the import history
type ImportRunHandler struct {
	repo ImportRunRepository
}

// NewImportRunHandler creates a new handler with the given repository
func NewImportRunHandler(repo ImportRunRepository) *ImportRunHandler {
	return &ImportRunHandler{repo: repo}
}

// ListRunsResponse is the JSON response structure for GET /api/imports
type ListRunsResponse struct {
	Runs  []models.ImportRun `json:"runs"`
	Count int                `json:"count"`
}

// ListRuns handles GET /api/imports
func (h *ImportRunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve import runs", err)
		return
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Count: len(runs)})
}
