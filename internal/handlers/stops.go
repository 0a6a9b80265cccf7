package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jizdni-rady/backend/internal/geo"
	"github.com/jizdni-rady/backend/internal/models"
	"github.com/jizdni-rady/backend/internal/repository"
)

const defaultNearestLimit = 5

// StopRepository defines the interface for stop data operations
type StopRepository interface {
	ListStops(ctx context.Context) ([]models.StopSummary, error)
	GetStopDetail(ctx context.Context, id int64) (*models.StopDetail, error)
	NearestStops(ctx context.Context, lat, lon float64, limit int) ([]models.NearbyStop, error)
	UpdateStopCoords(ctx context.Context, id int64, lat, lon float64) error
}

// StopHandler handles HTTP requests for stops
type StopHandler struct {
	repo StopRepository
}

// NewStopHandler creates a new handler with the given repository
func NewStopHandler(repo StopRepository) *StopHandler {
	return &StopHandler{repo: repo}
}

// ListStopsResponse is the JSON response structure for GET /api/stops
type ListStopsResponse struct {
	Stops []models.StopSummary `json:"stops"`
	Count int                  `json:"count"`
}

// NearestStopsResponse is the JSON response structure for GET /api/stops/nearest
type NearestStopsResponse struct {
	Stops []models.NearbyStop `json:"stops"`
	Count int                 `json:"count"`
}

// UpdateCoordsRequest is the body of PUT /api/stops/{id}/coords
type UpdateCoordsRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// ListStops handles GET /api/stops
func (h *StopHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	stops, err := h.repo.ListStops(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve stops", err)
		return
	}
	writeJSON(w, http.StatusOK, ListStopsResponse{Stops: stops, Count: len(stops)})
}

// GetStop handles GET /api/stops/{id}
// Returns the stop with every stop connection that visits it
func (h *StopHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	stop, err := h.repo.GetStopDetail(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Stop not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve stop", err)
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// NearestStops handles GET /api/stops/nearest?lat=&lon=&limit=
func (h *StopHandler) NearestStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || !geo.ValidCoordinates(lat, lon) {
		writeError(w, http.StatusBadRequest, "lat and lon query parameters must be valid coordinates", nil)
		return
	}

	limit := defaultNearestLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	stops, err := h.repo.NearestStops(r.Context(), lat, lon, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to find nearest stops", err)
		return
	}
	writeJSON(w, http.StatusOK, NearestStopsResponse{Stops: stops, Count: len(stops)})
}

// UpdateCoords handles PUT /api/stops/{id}/coords
func (h *StopHandler) UpdateCoords(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateCoordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if req.Lat == nil || req.Lon == nil || !geo.ValidCoordinates(*req.Lat, *req.Lon) {
		writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates", nil)
		return
	}

	err := h.repo.UpdateStopCoords(r.Context(), id, *req.Lat, *req.Lon)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Stop not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update stop", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
