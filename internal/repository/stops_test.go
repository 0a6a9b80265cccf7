package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jizdni-rady/backend/internal/models"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time %q: %v", s, err)
	}
	return ts
}

func seedStops(t *testing.T, repo *JDFRepository, stops *StopRepository) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	coords := []struct {
		name     string
		lat, lon float64
		located  bool
	}{
		{"Praha", 50.0833, 14.4167, true},
		{"Brno", 49.1951, 16.6068, true},
		{"Kolín", 50.0281, 15.2006, true},
		{"Nowhere", 0, 0, false},
	}

	ids := map[string]int64{}
	for _, c := range coords {
		id, err := repo.CreateStop(ctx, &models.Stop{Name: str(c.name), MatchKey: str(c.name)})
		if err != nil {
			t.Fatalf("CreateStop failed: %v", err)
		}
		if c.located {
			if err := stops.UpdateStopCoords(ctx, id, c.lat, c.lon); err != nil {
				t.Fatalf("UpdateStopCoords failed: %v", err)
			}
		}
		ids[c.name] = id
	}
	return ids
}

func TestListStops(t *testing.T) {
	database := setupTestDB(t)
	stops := NewStopRepository(database.Conn())
	seedStops(t, NewJDFRepository(database), stops)

	got, err := stops.ListStops(context.Background())
	if err != nil {
		t.Fatalf("ListStops failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("ListStops returned %d stops, want 4", len(got))
	}
	if got[3].Lat != nil {
		t.Errorf("unlocated stop has lat %v", *got[3].Lat)
	}
}

func TestNearestStops(t *testing.T) {
	database := setupTestDB(t)
	stops := NewStopRepository(database.Conn())
	ids := seedStops(t, NewJDFRepository(database), stops)

	// Near Praha: Praha, then Kolín, then Brno. The stop without
	// coordinates is never returned.
	got, err := stops.NearestStops(context.Background(), 50.08, 14.42, 2)
	if err != nil {
		t.Fatalf("NearestStops failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("NearestStops returned %d stops, want 2", len(got))
	}
	if got[0].ID != ids["Praha"] || got[1].ID != ids["Kolín"] {
		t.Errorf("NearestStops order = %d, %d", got[0].ID, got[1].ID)
	}
	if got[0].DistanceMeters > 1000 {
		t.Errorf("distance to Praha = %.0fm, want < 1000m", got[0].DistanceMeters)
	}

	all, _ := stops.NearestStops(context.Background(), 50.08, 14.42, 10)
	if len(all) != 3 {
		t.Errorf("NearestStops returned %d stops, want 3 located stops", len(all))
	}
}

func TestGetStopDetail(t *testing.T) {
	database := setupTestDB(t)
	repo := NewJDFRepository(database)
	stops := NewStopRepository(database.Conn())
	ctx := context.Background()

	stopID, _ := repo.CreateStop(ctx, &models.Stop{Name: str("Brno,,centrum"), NameNormalized: str("Brno, centrum"), MatchKey: str("Brno")})
	lineID, _ := repo.CreateLine(ctx, &models.Line{Number: str("100001"), Name: str("Praha - Brno")})
	if _, err := repo.CreateStopConnection(ctx, &models.StopConnection{
		LineNumber: num(100001), ConnectionNumber: num(1), StopNumber: num(2),
		Arrival: str("1030"), LineID: &lineID, StopID: &stopID,
	}); err != nil {
		t.Fatalf("CreateStopConnection failed: %v", err)
	}
	if _, err := repo.CreateStopConnection(ctx, &models.StopConnection{
		LineNumber: num(100001), ConnectionNumber: num(2), StopNumber: num(2), StopID: &stopID,
	}); err != nil {
		t.Fatalf("CreateStopConnection failed: %v", err)
	}

	detail, err := stops.GetStopDetail(ctx, stopID)
	if err != nil {
		t.Fatalf("GetStopDetail failed: %v", err)
	}
	if detail.NameNormalized == nil || *detail.NameNormalized != "Brno, centrum" {
		t.Errorf("NameNormalized = %v", detail.NameNormalized)
	}
	if len(detail.Visits) != 2 {
		t.Fatalf("Visits = %d, want 2", len(detail.Visits))
	}
	if detail.Visits[0].Line == nil || detail.Visits[0].Line.ID != lineID {
		t.Errorf("first visit line = %+v, want id %d", detail.Visits[0].Line, lineID)
	}
	if detail.Visits[1].Line != nil {
		t.Errorf("unlinked visit has line %+v", detail.Visits[1].Line)
	}

	if _, err := stops.GetStopDetail(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStopCoordsNotFound(t *testing.T) {
	stops := NewStopRepository(setupTestDB(t).Conn())
	if err := stops.UpdateStopCoords(context.Background(), 42, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetCarrierLines(t *testing.T) {
	database := setupTestDB(t)
	repo := NewJDFRepository(database)
	carriers := NewCarrierRepository(database.Conn())
	ctx := context.Background()

	carrierID, _ := repo.CreateCarrier(ctx, &models.Carrier{ICO: str("12345678"), Name: str("Dopravce")})
	for _, number := range []string{"100002", "100001"} {
		if _, err := repo.CreateLine(ctx, &models.Line{Number: str(number), ICOCarrier: str("12345678"), CarrierID: &carrierID}); err != nil {
			t.Fatalf("CreateLine failed: %v", err)
		}
	}

	got, err := carriers.GetCarrierLines(ctx, carrierID)
	if err != nil {
		t.Fatalf("GetCarrierLines failed: %v", err)
	}
	if len(got.Lines) != 2 || *got.Lines[0].Number != "100001" {
		t.Errorf("Lines = %+v, want two lines ordered by number", got.Lines)
	}

	if _, err := carriers.GetCarrierLines(ctx, carrierID+1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
