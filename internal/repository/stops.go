package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/jizdni-rady/backend/internal/geo"
	"github.com/jizdni-rady/backend/internal/models"
)

// StopRepository handles read queries and coordinate updates for stops
type StopRepository struct {
	db *sqlx.DB
}

// NewStopRepository creates a new StopRepository
func NewStopRepository(db *sqlx.DB) *StopRepository {
	return &StopRepository{db: db}
}

// ListStops returns every stop with its coordinates
func (r *StopRepository) ListStops(ctx context.Context) ([]models.StopSummary, error) {
	stops := []models.StopSummary{}
	if err := r.db.SelectContext(ctx, &stops, `SELECT id, name, lat, lon FROM stops ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	return stops, nil
}

// GetStopDetail returns a stop with the stop connections that visit it.
// Returns ErrNotFound if the stop does not exist.
func (r *StopRepository) GetStopDetail(ctx context.Context, id int64) (*models.StopDetail, error) {
	var stop struct {
		ID             int64    `db:"id"`
		NameNormalized *string  `db:"name_normalized"`
		Lat            *float64 `db:"lat"`
		Lon            *float64 `db:"lon"`
	}
	err := r.db.GetContext(ctx, &stop, r.db.Rebind(`SELECT id, name_normalized, lat, lon FROM stops WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stop %d: %w", id, err)
	}

	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(`
		SELECT sc.id, sc.arrival, sc.departure, l.id, l.name, l.number
		FROM stop_connections sc
		LEFT JOIN lines l ON l.id = sc.line_id
		WHERE sc.stop_id = ?
		ORDER BY sc.id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query stop connections: %w", err)
	}
	defer rows.Close()

	detail := &models.StopDetail{
		ID:             stop.ID,
		NameNormalized: stop.NameNormalized,
		Lat:            stop.Lat,
		Lon:            stop.Lon,
		Visits:         []models.StopVisit{},
	}
	for rows.Next() {
		var v models.StopVisit
		var lineID *int64
		var lineName, lineNumber *string
		if err := rows.Scan(&v.ID, &v.Arrival, &v.Departure, &lineID, &lineName, &lineNumber); err != nil {
			return nil, fmt.Errorf("failed to scan stop connection: %w", err)
		}
		if lineID != nil {
			v.Line = &models.LineRef{ID: *lineID, Name: lineName, Number: lineNumber}
		}
		detail.Visits = append(detail.Visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop connections: %w", err)
	}

	return detail, nil
}

// NearestStops returns up to limit stops ordered by distance from the point.
// Stops without coordinates are ignored.
func (r *StopRepository) NearestStops(ctx context.Context, lat, lon float64, limit int) ([]models.NearbyStop, error) {
	var located []struct {
		ID   int64   `db:"id"`
		Name *string `db:"name"`
		Lat  float64 `db:"lat"`
		Lon  float64 `db:"lon"`
	}
	err := r.db.SelectContext(ctx, &located, `
		SELECT id, name, lat, lon FROM stops
		WHERE lat IS NOT NULL AND lon IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query located stops: %w", err)
	}

	nearby := make([]models.NearbyStop, 0, len(located))
	for _, s := range located {
		nearby = append(nearby, models.NearbyStop{
			ID:             s.ID,
			Name:           s.Name,
			Lat:            s.Lat,
			Lon:            s.Lon,
			DistanceMeters: geo.Haversine(lat, lon, s.Lat, s.Lon),
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})
	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby, nil
}

// UpdateStopCoords sets the coordinates of a stop.
// Returns ErrNotFound if the stop does not exist.
func (r *StopRepository) UpdateStopCoords(ctx context.Context, id int64, lat, lon float64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE stops SET lat = ?, lon = ? WHERE id = ?`), lat, lon, id)
	if err != nil {
		return fmt.Errorf("failed to update stop %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update stop %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
