package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jizdni-rady/backend/internal/db"
	"github.com/jizdni-rady/backend/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Connect(db.SQLite, filepath.Join(t.TempDir(), "jdf.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}
	return database
}

func str(s string) *string { return &s }

func num(n int) *int { return &n }

func TestCreateCarrierConflict(t *testing.T) {
	repo := NewJDFRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.CreateCarrier(ctx, &models.Carrier{ICO: str("12345678")}); err != nil {
		t.Fatalf("CreateCarrier failed: %v", err)
	}
	_, err := repo.CreateCarrier(ctx, &models.Carrier{ICO: str("12345678")})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestFindMatchesNullKeys(t *testing.T) {
	repo := NewJDFRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.CreateConnection(ctx, &models.Connection{LineNumber: num(100001), Code1: str("X")})
	if err != nil {
		t.Fatalf("CreateConnection failed: %v", err)
	}

	found, err := repo.FindConnection(ctx, num(100001), nil)
	if err != nil {
		t.Fatalf("FindConnection failed: %v", err)
	}
	if found == nil || found.ID != id {
		t.Errorf("FindConnection(100001, nil) = %+v, want id %d", found, id)
	}

	found, err = repo.FindConnection(ctx, num(100001), num(1))
	if err != nil {
		t.Fatalf("FindConnection failed: %v", err)
	}
	if found != nil {
		t.Errorf("FindConnection(100001, 1) = %+v, want nil", found)
	}
}

func TestUpdateStopKeepsCoordinates(t *testing.T) {
	database := setupTestDB(t)
	repo := NewJDFRepository(database)
	stops := NewStopRepository(database.Conn())
	ctx := context.Background()

	id, err := repo.CreateStop(ctx, &models.Stop{Name: str("Brno"), MatchKey: str("Brno")})
	if err != nil {
		t.Fatalf("CreateStop failed: %v", err)
	}
	if err := stops.UpdateStopCoords(ctx, id, 49.19, 16.61); err != nil {
		t.Fatalf("UpdateStopCoords failed: %v", err)
	}

	if err := repo.UpdateStop(ctx, id, &models.Stop{Name: str("Brno"), Country: str("CZ"), MatchKey: str("Brno")}); err != nil {
		t.Fatalf("UpdateStop failed: %v", err)
	}

	s, err := repo.FindStopByKey(ctx, str("Brno"))
	if err != nil || s == nil {
		t.Fatalf("FindStopByKey = (%v, %v)", s, err)
	}
	if s.Lat == nil || *s.Lat != 49.19 || s.Lon == nil || *s.Lon != 16.61 {
		t.Errorf("coordinates lost: lat=%v lon=%v", s.Lat, s.Lon)
	}
	if s.Country == nil || *s.Country != "CZ" {
		t.Errorf("Country = %v, want CZ", s.Country)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	repo := NewJDFRepository(setupTestDB(t))
	err := repo.UpdateCode(context.Background(), 999, &models.Code{InternalCode: str("1")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionConflictKeepsTransactionUsable(t *testing.T) {
	database := setupTestDB(t)
	repo := NewJDFRepository(database)
	ctx := context.Background()

	err := repo.Session(ctx, true, func(store ImportStore) error {
		if _, err := store.CreateCode(ctx, &models.Code{InternalCode: str("1"), Code: str("X")}); err != nil {
			return err
		}
		if _, err := store.CreateCode(ctx, &models.Code{InternalCode: str("1")}); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate create err = %v, want ErrConflict", err)
		}
		existing, err := store.FindCode(ctx, str("1"))
		if err != nil || existing == nil {
			t.Fatalf("FindCode after conflict = (%v, %v)", existing, err)
		}
		return store.UpdateCode(ctx, existing.ID, &models.Code{InternalCode: str("1"), Code: str("Y")})
	})
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	var code string
	if err := database.Conn().Get(&code, "SELECT code FROM codes WHERE internal_code = '1'"); err != nil {
		t.Fatalf("Failed to read code: %v", err)
	}
	if code != "Y" {
		t.Errorf("code = %q, want Y", code)
	}
}

func TestSessionRollsBackOnError(t *testing.T) {
	database := setupTestDB(t)
	repo := NewJDFRepository(database)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.Session(ctx, true, func(store ImportStore) error {
		if _, err := store.CreateCarrier(ctx, &models.Carrier{ICO: str("1")}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	var n int
	database.Conn().Get(&n, "SELECT COUNT(*) FROM carriers")
	if n != 0 {
		t.Errorf("carriers = %d after rollback, want 0", n)
	}
}

func TestRecordRunAndListRuns(t *testing.T) {
	database := setupTestDB(t)
	repo := NewJDFRepository(database)
	runs := NewImportRunRepository(database.Conn())
	ctx := context.Background()

	older := &models.ImportRun{RunID: "a", State: "failed", FailedStage: str("stops"), Error: str("no rows")}
	newer := &models.ImportRun{RunID: "b", State: "complete", Stops: 3}
	older.StartedAt = mustTime(t, "2024-01-01T10:00:00Z")
	older.FinishedAt = older.StartedAt
	newer.StartedAt = mustTime(t, "2024-01-02T10:00:00Z")
	newer.FinishedAt = newer.StartedAt

	for _, run := range []*models.ImportRun{older, newer} {
		if err := repo.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	got, err := runs.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "b" || got[1].RunID != "a" {
		t.Fatalf("ListRuns order = %+v, want b then a", got)
	}
	if got[1].FailedStage == nil || *got[1].FailedStage != "stops" {
		t.Errorf("FailedStage = %v, want stops", got[1].FailedStage)
	}
	if got[0].Stops != 3 {
		t.Errorf("Stops = %d, want 3", got[0].Stops)
	}
}
