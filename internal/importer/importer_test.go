package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jizdni-rady/backend/internal/db"
	"github.com/jizdni-rady/backend/internal/jdf"
	"github.com/jizdni-rady/backend/internal/jdf/jdftest"
	"github.com/jizdni-rady/backend/internal/repository"
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

func countRows(t *testing.T, database *db.DB, table string) int {
	t.Helper()
	var n int
	if err := database.Conn().Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

func ids(t *testing.T, database *db.DB, table string) []int64 {
	t.Helper()
	var out []int64
	if err := database.Conn().Select(&out, "SELECT id FROM "+table+" ORDER BY id"); err != nil {
		t.Fatalf("Failed to list %s ids: %v", table, err)
	}
	return out
}

func runImport(t *testing.T, database *db.DB, opts Options, dir string) (*Result, error) {
	t.Helper()
	imp := New(repository.NewJDFRepository(database), opts)
	return imp.Run(context.Background(), dir)
}

var entityTables = []string{"carriers", "lines", "stops", "codes", "connections", "stop_connections"}

func TestRunImportsBundle(t *testing.T) {
	database := setupTestDB(t)
	dir := jdftest.Write(t, jdftest.Sample())

	res, err := runImport(t, database, DefaultOptions(), dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.State != Complete {
		t.Errorf("State = %s, want complete", res.State)
	}
	want := Counts{Carriers: 1, Lines: 1, Stops: 2, Codes: 1, Connections: 1, StopConnections: 2}
	if res.Counts != want {
		t.Errorf("Counts = %+v, want %+v", res.Counts, want)
	}
	if res.Version == nil || res.Version.Label == nil || *res.Version.Label != "1.11" {
		t.Errorf("Version label not read: %+v", res.Version)
	}

	conn := database.Conn()

	var carrierID, lineCarrierID int64
	if err := conn.Get(&carrierID, "SELECT id FROM carriers WHERE ico = '12345678'"); err != nil {
		t.Fatalf("Carrier not stored: %v", err)
	}
	if err := conn.Get(&lineCarrierID, "SELECT carrier_id FROM lines WHERE number = '100001'"); err != nil {
		t.Fatalf("Line not stored: %v", err)
	}
	if lineCarrierID != carrierID {
		t.Errorf("Line carrier_id = %d, want %d", lineCarrierID, carrierID)
	}

	var normalized string
	if err := conn.Get(&normalized, "SELECT name_normalized FROM stops WHERE name = 'Praha,hl.n.'"); err != nil {
		t.Fatalf("Stop not stored: %v", err)
	}
	if normalized != "Praha, hl. n." {
		t.Errorf("name_normalized = %q, want %q", normalized, "Praha, hl. n.")
	}

	// The second stop visit must point at the Brno stop and the line.
	var visit struct {
		LineID *int64 `db:"line_id"`
		StopID *int64 `db:"stop_id"`
	}
	if err := conn.Get(&visit, "SELECT line_id, stop_id FROM stop_connections WHERE stop_number = 2"); err != nil {
		t.Fatalf("Stop connection not stored: %v", err)
	}
	var brnoID, lineID int64
	conn.Get(&brnoID, "SELECT id FROM stops WHERE number = 2")
	conn.Get(&lineID, "SELECT id FROM lines WHERE number = '100001'")
	if visit.StopID == nil || *visit.StopID != brnoID {
		t.Errorf("stop_id = %v, want %d", visit.StopID, brnoID)
	}
	if visit.LineID == nil || *visit.LineID != lineID {
		t.Errorf("line_id = %v, want %d", visit.LineID, lineID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	database := setupTestDB(t)
	dir := jdftest.Write(t, jdftest.Sample())

	if _, err := runImport(t, database, DefaultOptions(), dir); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	before := map[string][]int64{}
	for _, table := range entityTables {
		before[table] = ids(t, database, table)
	}

	res, err := runImport(t, database, DefaultOptions(), dir)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if res.State != Complete {
		t.Errorf("Second run state = %s", res.State)
	}

	for _, table := range entityTables {
		after := ids(t, database, table)
		if len(after) != len(before[table]) {
			t.Errorf("%s: %d rows after re-import, want %d", table, len(after), len(before[table]))
			continue
		}
		for i := range after {
			if after[i] != before[table][i] {
				t.Errorf("%s: id %d changed to %d", table, before[table][i], after[i])
			}
		}
	}
}

func TestRunMergesConnectionsByNaturalKey(t *testing.T) {
	database := setupTestDB(t)

	first := jdftest.Sample()
	if _, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, first)); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	second := first.Clone()
	second["Spoje.txt"] = `"100001","1","Y","","","","","","","","","","","1","","1";` + "\r\n"
	if _, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, second)); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if n := countRows(t, database, "connections"); n != 1 {
		t.Fatalf("connections = %d, want 1", n)
	}
	var code1 string
	if err := database.Conn().Get(&code1, "SELECT code1 FROM connections"); err != nil {
		t.Fatalf("Failed to read connection: %v", err)
	}
	if code1 != "Y" {
		t.Errorf("code1 = %q, want the later import's value %q", code1, "Y")
	}
}

func TestRunStoresDanglingReferenceAsNull(t *testing.T) {
	database := setupTestDB(t)

	b := jdftest.Sample()
	b["Spoje.txt"] = `"100001","1","X","","","","","","","","","","","99","","1";` + "\r\n"

	if _, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, b)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var lineID *int64
	if err := database.Conn().Get(&lineID, "SELECT line_id FROM connections"); err != nil {
		t.Fatalf("Failed to read connection: %v", err)
	}
	if lineID != nil {
		t.Errorf("line_id = %d, want NULL", *lineID)
	}
}

func TestRunMissingRequiredFile(t *testing.T) {
	database := setupTestDB(t)

	b := jdftest.Sample()
	delete(b, "Dopravci.txt")

	res, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, b))
	if !errors.Is(err, ErrRequiredFileMissing) {
		t.Fatalf("err = %v, want ErrRequiredFileMissing", err)
	}
	if !errors.Is(err, jdf.ErrFileNotFound) {
		t.Errorf("err = %v, want it to match jdf.ErrFileNotFound", err)
	}
	if res.State != Failed {
		t.Errorf("State = %s, want failed", res.State)
	}

	for _, table := range entityTables {
		if n := countRows(t, database, table); n != 0 {
			t.Errorf("%s has %d rows, want 0", table, n)
		}
	}
}

func TestRunInvalidCarrierFile(t *testing.T) {
	database := setupTestDB(t)

	b := jdftest.Sample()
	b["Dopravci.txt"] += `"87654321","","Jiný dopravce","1","","","","","","","","","2";` + "\r\n"

	res, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, b))
	if !errors.Is(err, ErrInvalidCarrierFile) {
		t.Fatalf("err = %v, want ErrInvalidCarrierFile", err)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "carrier" {
		t.Errorf("err = %v, want a carrier StageError", err)
	}
	if res.FailedStage != "carrier" {
		t.Errorf("FailedStage = %q, want carrier", res.FailedStage)
	}
}

func TestRunEmptyStopsFile(t *testing.T) {
	tests := []struct {
		name         string
		atomic       bool
		wantCarriers int
	}{
		{"atomic rolls back earlier stages", true, 0},
		{"non-atomic keeps earlier stages", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := setupTestDB(t)

			b := jdftest.Sample()
			b["Zastavky.txt"] = ""

			opts := DefaultOptions()
			opts.Atomic = tt.atomic
			res, err := runImport(t, database, opts, jdftest.Write(t, b))
			if !errors.Is(err, ErrInvalidStopsFile) {
				t.Fatalf("err = %v, want ErrInvalidStopsFile", err)
			}
			if res.FailedStage != "stops" {
				t.Errorf("FailedStage = %q, want stops", res.FailedStage)
			}
			if res.RolledBack != tt.atomic {
				t.Errorf("RolledBack = %v, want %v", res.RolledBack, tt.atomic)
			}
			if n := countRows(t, database, "carriers"); n != tt.wantCarriers {
				t.Errorf("carriers = %d, want %d", n, tt.wantCarriers)
			}
		})
	}
}

func TestRunStrictKeys(t *testing.T) {
	b := jdftest.Sample()
	b["Pevnykod.txt"] = `"","X","";` + "\r\n"

	t.Run("lenient", func(t *testing.T) {
		database := setupTestDB(t)
		if _, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, b)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if n := countRows(t, database, "codes"); n != 1 {
			t.Errorf("codes = %d, want 1", n)
		}
	})

	t.Run("strict", func(t *testing.T) {
		database := setupTestDB(t)
		opts := DefaultOptions()
		opts.StrictKeys = true
		_, err := runImport(t, database, opts, jdftest.Write(t, b))
		if !errors.Is(err, ErrMissingKey) {
			t.Fatalf("err = %v, want ErrMissingKey", err)
		}
	})
}

func TestRunStopKeyPolicy(t *testing.T) {
	b := jdftest.Sample()
	b["Zastavky.txt"] = `"1","Náměstí","Brno","","","CZ";` + "\r\n" +
		`"2","Náměstí","Praha","","","CZ";` + "\r\n"
	b["Zasspoje.txt"] = `"100001","1","1","1","","","","","0","","0800","1","1";` + "\r\n"

	tests := []struct {
		name   string
		policy StopKeyPolicy
		want   int
	}{
		{"by name merges", StopKeyByName, 1},
		{"by name and district keeps both", StopKeyByNameAndDistrict, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := setupTestDB(t)
			opts := DefaultOptions()
			opts.StopKey = tt.policy
			if _, err := runImport(t, database, opts, jdftest.Write(t, b)); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if n := countRows(t, database, "stops"); n != tt.want {
				t.Errorf("stops = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestRunRecordsImportRun(t *testing.T) {
	database := setupTestDB(t)

	res, err := runImport(t, database, DefaultOptions(), jdftest.Write(t, jdftest.Sample()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	runs, err := repository.NewImportRunRepository(database.Conn()).ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}

	run := runs[0]
	if run.RunID != res.RunID.String() {
		t.Errorf("RunID = %s, want %s", run.RunID, res.RunID)
	}
	if run.State != "complete" {
		t.Errorf("State = %s, want complete", run.State)
	}
	if run.StopConnections != 2 {
		t.Errorf("StopConnections = %d, want 2", run.StopConnections)
	}
	if run.VersionDate == nil || run.VersionDate.String() != "2023-12-25" {
		t.Errorf("VersionDate = %v, want 2023-12-25", run.VersionDate)
	}
}
