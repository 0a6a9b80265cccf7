package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jizdni-rady/backend/internal/models"
)

// CarrierRepository handles read queries for carriers and their lines
type CarrierRepository struct {
	db *sqlx.DB
}

// NewCarrierRepository creates a new CarrierRepository
func NewCarrierRepository(db *sqlx.DB) *CarrierRepository {
	return &CarrierRepository{db: db}
}

// GetCarrierLines returns a carrier with its lines.
// Returns ErrNotFound if the carrier does not exist.
func (r *CarrierRepository) GetCarrierLines(ctx context.Context, id int64) (*models.CarrierLines, error) {
	var carrier struct {
		ID      int64   `db:"id"`
		Name    *string `db:"name"`
		Website *string `db:"website"`
	}
	err := r.db.GetContext(ctx, &carrier, r.db.Rebind(`SELECT id, name, website FROM carriers WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query carrier %d: %w", id, err)
	}

	lines := []models.LineRef{}
	err = r.db.SelectContext(ctx, &lines,
		r.db.Rebind(`SELECT id, name, number FROM lines WHERE carrier_id = ? ORDER BY number, id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines of carrier %d: %w", id, err)
	}

	return &models.CarrierLines{
		ID:      carrier.ID,
		Name:    carrier.Name,
		Website: carrier.Website,
		Lines:   lines,
	}, nil
}
