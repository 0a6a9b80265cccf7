package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jizdni-rady/backend/internal/models"
	"github.com/jizdni-rady/backend/internal/repository"
)

// CarrierRepository defines the interface for carrier data operations
type CarrierRepository interface {
	GetCarrierLines(ctx context.Context, id int64) (*models.CarrierLines, error)
}

// CarrierHandler handles HTTP requests for carriers
type CarrierHandler struct {
	repo CarrierRepository
}

// NewCarrierHandler creates a new handler with the given repository
func NewCarrierHandler(repo CarrierRepository) *CarrierHandler {
	return &CarrierHandler{repo: repo}
}

// GetCarrierLines handles GET /api/carriers/{id}/lines
func (h *CarrierHandler) GetCarrierLines(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	carrier, err := h.repo.GetCarrierLines(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Carrier not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve carrier", err)
		return
	}
	writeJSON(w, http.StatusOK, carrier)
}
