package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jizdni-rady/backend/internal/models"
)

// ImportRunRepository reads the import history
type ImportRunRepository struct {
	db *sqlx.DB
}

// NewImportRunRepository creates a new ImportRunRepository
func NewImportRunRepository(db *sqlx.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

// ListRuns returns the most recent import runs, newest first
func (r *ImportRunRepository) ListRuns(ctx context.Context, limit int) ([]models.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}

	runs := []models.ImportRun{}
	err := r.db.SelectContext(ctx, &runs, r.db.Rebind(`
		SELECT run_id, version, version_date, state, failed_stage, error,
			carriers, lines, stops, codes, connections, stop_connections,
			started_at, finished_at
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	return runs, nil
}
