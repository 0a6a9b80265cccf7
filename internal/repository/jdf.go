package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jizdni-rady/backend/internal/db"
	"github.com/jizdni-rady/backend/internal/models"
)

// ImportStore is the storage contract used by the import pipeline: per
// entity kind a lookup by natural key, a create and an in-place update.
// Find methods return (nil, nil) when nothing matches. Create methods
// return an error wrapping ErrConflict when the natural key already exists.
type ImportStore interface {
	FindCarrierByICO(ctx context.Context, ico *string) (*models.Carrier, error)
	CreateCarrier(ctx context.Context, c *models.Carrier) (int64, error)
	UpdateCarrier(ctx context.Context, id int64, c *models.Carrier) error

	FindLine(ctx context.Context, number, icoCarrier *string) (*models.Line, error)
	CreateLine(ctx context.Context, l *models.Line) (int64, error)
	UpdateLine(ctx context.Context, id int64, l *models.Line) error

	FindStopByKey(ctx context.Context, matchKey *string) (*models.Stop, error)
	CreateStop(ctx context.Context, s *models.Stop) (int64, error)
	UpdateStop(ctx context.Context, id int64, s *models.Stop) error

	FindCode(ctx context.Context, internalCode *string) (*models.Code, error)
	CreateCode(ctx context.Context, c *models.Code) (int64, error)
	UpdateCode(ctx context.Context, id int64, c *models.Code) error

	FindConnection(ctx context.Context, lineNumber, connectionNumber *int) (*models.Connection, error)
	CreateConnection(ctx context.Context, c *models.Connection) (int64, error)
	UpdateConnection(ctx context.Context, id int64, c *models.Connection) error

	FindStopConnection(ctx context.Context, lineNumber, connectionNumber, stopNumber *int) (*models.StopConnection, error)
	CreateStopConnection(ctx context.Context, sc *models.StopConnection) (int64, error)
	UpdateStopConnection(ctx context.Context, id int64, sc *models.StopConnection) error

	// RecordRun persists the outcome of an import attempt.
	RecordRun(ctx context.Context, run *models.ImportRun) error

	// Session serializes fn against other sessions of the same database.
	// When atomic is true fn runs in a single transaction that is committed
	// only if fn returns nil.
	Session(ctx context.Context, atomic bool, fn func(ImportStore) error) error
}

const (
	carrierColumns = `id, ico, dic, name, firm_type, person_name, address, phone,
		dispatch_phone, info_phone, fax, email, website`
	lineColumns = `id, number, name, ico_carrier, line_type, vehicle_type, is_detour,
		is_grouped, is_coded, reserve, license, license_valid_from, license_valid_to,
		schedule_valid_from, schedule_valid_to, carrier_id`
	stopColumns = `id, number, name, name_normalized, district, near_point, near_city,
		country, lat, lon, duplicate_root_id, match_key`
	codeColumns       = `id, internal_code, code, internal`
	connectionColumns = `id, line_number, connection_number, code1, code2, code3, code4,
		code5, code6, code7, code8, code9, code10, connection_group_id, line_id`
	stopConnectionColumns = `id, line_number, connection_number, tariff_number, stop_number,
		marker_code, station_number, code1, code2, kilometers, arrival, departure,
		arrival_time, departure_time, line_id, stop_id`
)

// JDFRepository implements ImportStore on top of SQLite or PostgreSQL.
type JDFRepository struct {
	database *db.DB
	q        sqlx.ExtContext
	inTx     bool
}

// NewJDFRepository creates a repository bound to the database connection.
func NewJDFRepository(database *db.DB) *JDFRepository {
	return &JDFRepository{database: database, q: database.Conn()}
}

var _ ImportStore = (*JDFRepository)(nil)

// Session implements ImportStore.
func (r *JDFRepository) Session(ctx context.Context, atomic bool, fn func(ImportStore) error) error {
	r.database.LockWrite()
	defer r.database.UnlockWrite()

	if !atomic {
		return fn(r)
	}

	return r.database.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&JDFRepository{database: r.database, q: tx, inTx: true})
	})
}

// get runs a single-row query. It reports false when no row matched.
func (r *JDFRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// insert runs a named INSERT ... RETURNING id. Inside a transaction the
// statement is wrapped in a savepoint so a unique violation leaves the
// transaction usable for the caller's re-read.
func (r *JDFRepository) insert(ctx context.Context, query string, arg interface{}) (int64, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return 0, fmt.Errorf("failed to bind insert: %w", err)
	}
	q = r.q.Rebind(q)

	if r.inTx {
		if _, err := r.q.ExecContext(ctx, "SAVEPOINT jdf_insert"); err != nil {
			return 0, fmt.Errorf("failed to create savepoint: %w", err)
		}
	}

	var id int64
	err = r.q.QueryRowxContext(ctx, q, args...).Scan(&id)

	if r.inTx {
		if err != nil {
			if _, rbErr := r.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT jdf_insert"); rbErr != nil {
				return 0, fmt.Errorf("failed to roll back savepoint: %w", rbErr)
			}
		}
		if _, relErr := r.q.ExecContext(ctx, "RELEASE SAVEPOINT jdf_insert"); relErr != nil {
			return 0, fmt.Errorf("failed to release savepoint: %w", relErr)
		}
	}

	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return 0, err
	}
	return id, nil
}

// update runs a named UPDATE and fails with ErrNotFound when no row changed.
func (r *JDFRepository) update(ctx context.Context, query string, arg interface{}) error {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return fmt.Errorf("failed to bind update: %w", err)
	}

	res, err := r.q.ExecContext(ctx, r.q.Rebind(q), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JDFRepository) eq(column string) string {
	return r.database.Dialect().NullSafeEq(column)
}

// FindCarrierByICO implements ImportStore.
func (r *JDFRepository) FindCarrierByICO(ctx context.Context, ico *string) (*models.Carrier, error) {
	var c models.Carrier
	ok, err := r.get(ctx, &c, "SELECT "+carrierColumns+" FROM carriers WHERE "+r.eq("ico")+" ORDER BY id LIMIT 1", ico)
	if err != nil || !ok {
		return nil, wrapFind("carrier", err)
	}
	return &c, nil
}

// CreateCarrier implements ImportStore.
func (r *JDFRepository) CreateCarrier(ctx context.Context, c *models.Carrier) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO carriers (
			ico, dic, name, firm_type, person_name, address, phone,
			dispatch_phone, info_phone, fax, email, website
		) VALUES (
			:ico, :dic, :name, :firm_type, :person_name, :address, :phone,
			:dispatch_phone, :info_phone, :fax, :email, :website
		) RETURNING id`, c)
	if err != nil {
		return 0, fmt.Errorf("failed to create carrier: %w", err)
	}
	return id, nil
}

// UpdateCarrier implements ImportStore.
func (r *JDFRepository) UpdateCarrier(ctx context.Context, id int64, c *models.Carrier) error {
	row := *c
	row.ID = id
	err := r.update(ctx, `
		UPDATE carriers SET
			ico = :ico, dic = :dic, name = :name, firm_type = :firm_type,
			person_name = :person_name, address = :address, phone = :phone,
			dispatch_phone = :dispatch_phone, info_phone = :info_phone,
			fax = :fax, email = :email, website = :website
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("failed to update carrier %d: %w", id, err)
	}
	return nil
}

// FindLine implements ImportStore.
func (r *JDFRepository) FindLine(ctx context.Context, number, icoCarrier *string) (*models.Line, error) {
	var l models.Line
	ok, err := r.get(ctx, &l,
		"SELECT "+lineColumns+" FROM lines WHERE "+r.eq("number")+" AND "+r.eq("ico_carrier")+" ORDER BY id LIMIT 1",
		number, icoCarrier)
	if err != nil || !ok {
		return nil, wrapFind("line", err)
	}
	return &l, nil
}

// CreateLine implements ImportStore.
func (r *JDFRepository) CreateLine(ctx context.Context, l *models.Line) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO lines (
			number, name, ico_carrier, line_type, vehicle_type, is_detour,
			is_grouped, is_coded, reserve, license, license_valid_from,
			license_valid_to, schedule_valid_from, schedule_valid_to, carrier_id
		) VALUES (
			:number, :name, :ico_carrier, :line_type, :vehicle_type, :is_detour,
			:is_grouped, :is_coded, :reserve, :license, :license_valid_from,
			:license_valid_to, :schedule_valid_from, :schedule_valid_to, :carrier_id
		) RETURNING id`, l)
	if err != nil {
		return 0, fmt.Errorf("failed to create line: %w", err)
	}
	return id, nil
}

// UpdateLine implements ImportStore.
func (r *JDFRepository) UpdateLine(ctx context.Context, id int64, l *models.Line) error {
	row := *l
	row.ID = id
	err := r.update(ctx, `
		UPDATE lines SET
			number = :number, name = :name, ico_carrier = :ico_carrier,
			line_type = :line_type, vehicle_type = :vehicle_type,
			is_detour = :is_detour, is_grouped = :is_grouped, is_coded = :is_coded,
			reserve = :reserve, license = :license,
			license_valid_from = :license_valid_from, license_valid_to = :license_valid_to,
			schedule_valid_from = :schedule_valid_from, schedule_valid_to = :schedule_valid_to,
			carrier_id = :carrier_id
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("failed to update line %d: %w", id, err)
	}
	return nil
}

// FindStopByKey implements ImportStore.
func (r *JDFRepository) FindStopByKey(ctx context.Context, matchKey *string) (*models.Stop, error) {
	var s models.Stop
	ok, err := r.get(ctx, &s, "SELECT "+stopColumns+" FROM stops WHERE "+r.eq("match_key")+" ORDER BY id LIMIT 1", matchKey)
	if err != nil || !ok {
		return nil, wrapFind("stop", err)
	}
	return &s, nil
}

// CreateStop implements ImportStore. Coordinates and the duplicate root are
// owned by other processes and are written only if already set on s.
func (r *JDFRepository) CreateStop(ctx context.Context, s *models.Stop) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO stops (
			number, name, name_normalized, district, near_point, near_city,
			country, lat, lon, duplicate_root_id, match_key
		) VALUES (
			:number, :name, :name_normalized, :district, :near_point, :near_city,
			:country, :lat, :lon, :duplicate_root_id, :match_key
		) RETURNING id`, s)
	if err != nil {
		return 0, fmt.Errorf("failed to create stop: %w", err)
	}
	return id, nil
}

// UpdateStop implements ImportStore. Lat, Lon and DuplicateRootID are left
// untouched.
func (r *JDFRepository) UpdateStop(ctx context.Context, id int64, s *models.Stop) error {
	row := *s
	row.ID = id
	err := r.update(ctx, `
		UPDATE stops SET
			number = :number, name = :name, name_normalized = :name_normalized,
			district = :district, near_point = :near_point, near_city = :near_city,
			country = :country, match_key = :match_key
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("failed to update stop %d: %w", id, err)
	}
	return nil
}

// FindCode implements ImportStore.
func (r *JDFRepository) FindCode(ctx context.Context, internalCode *string) (*models.Code, error) {
	var c models.Code
	ok, err := r.get(ctx, &c, "SELECT "+codeColumns+" FROM codes WHERE "+r.eq("internal_code")+" ORDER BY id LIMIT 1", internalCode)
	if err != nil || !ok {
		return nil, wrapFind("code", err)
	}
	return &c, nil
}

// CreateCode implements ImportStore.
func (r *JDFRepository) CreateCode(ctx context.Context, c *models.Code) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO codes (internal_code, code, internal)
		VALUES (:internal_code, :code, :internal)
		RETURNING id`, c)
	if err != nil {
		return 0, fmt.Errorf("failed to create code: %w", err)
	}
	return id, nil
}

// UpdateCode implements ImportStore.
func (r *JDFRepository) UpdateCode(ctx context.Context, id int64, c *models.Code) error {
	row := *c
	row.ID = id
	err := r.update(ctx, `
		UPDATE codes SET internal_code = :internal_code, code = :code, internal = :internal
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("failed to update code %d: %w", id, err)
	}
	return nil
}

// FindConnection implements ImportStore.
func (r *JDFRepository) FindConnection(ctx context.Context, lineNumber, connectionNumber *int) (*models.Connection, error) {
	var c models.Connection
	ok, err := r.get(ctx, &c,
		"SELECT "+connectionColumns+" FROM connections WHERE "+r.eq("line_number")+" AND "+r.eq("connection_number")+" ORDER BY id LIMIT 1",
		lineNumber, connectionNumber)
	if err != nil || !ok {
		return nil, wrapFind("connection", err)
	}
	return &c, nil
}

// CreateConnection implements ImportStore.
func (r *JDFRepository) CreateConnection(ctx context.Context, c *models.Connection) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO connections (
			line_number, connection_number, code1, code2, code3, code4, code5,
			code6, code7, code8, code9, code10, connection_group_id, line_id
		) VALUES (
			:line_number, :connection_number, :code1, :code2, :code3, :code4, :code5,
			:code6, :code7, :code8, :code9, :code10, :connection_group_id, :line_id
		) RETURNING id`, c)
	if err != nil {
		return 0, fmt.Errorf("failed to create connection: %w", err)
	}
	return id, nil
}

// UpdateConnection implements ImportStore.
func (r *JDFRepository) UpdateConnection(ctx context.Context, id int64, c *models.Connection) error {
	row := *c
	row.ID = id
	err := r.update(ctx, `
		UPDATE connections SET
			line_number = :line_number, connection_number = :connection_number,
			code1 = :code1, code2 = :code2, code3 = :code3, code4 = :code4, code5 = :code5,
			code6 = :code6, code7 = :code7, code8 = :code8, code9 = :code9, code10 = :code10,
			connection_group_id = :connection_group_id, line_id = :line_id
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("failed to update connection %d: %w", id, err)
	}
	return nil
}

// FindStopConnection implements ImportStore.
func (r *JDFRepository) FindStopConnection(ctx context.Context, lineNumber, connectionNumber, stopNumber *int) (*models.StopConnection, error) {
	var sc models.StopConnection
	ok, err := r.get(ctx, &sc,
		"SELECT "+stopConnectionColumns+" FROM stop_connections WHERE "+
			r.eq("line_number")+" AND "+r.eq("connection_number")+" AND "+r.eq("stop_number")+
			" ORDER BY id LIMIT 1",
		lineNumber, connectionNumber, stopNumber)
	if err != nil || !ok {
		return nil, wrapFind("stop connection", err)
	}
	return &sc, nil
}

// CreateStopConnection implements ImportStore. The derived arrival and
// departure timestamps are not written here.
func (r *JDFRepository) CreateStopConnection(ctx context.Context, sc *models.StopConnection) (int64, error) {
	id, err := r.insert(ctx, `
		INSERT INTO stop_connections (
			line_number, connection_number, tariff_number, stop_number, marker_code,
			station_number, code1, code2, kilometers, arrival, departure, line_id, stop_id
		) VALUES (
			:line_number, :connection_number, :tariff_number, :stop_number, :marker_code,
			:station_number, :code1, :code2, :kilometers, :arrival, :departure, :line_id, :stop_id
		) RETURNING id`, sc)
	if err != nil {
		return 0, fmt.Errorf("failed to create stop connection: %w", err)
	}
	return id, nil
}

// UpdateStopConnection implements ImportStore.
func (r *JDFRepository) UpdateStopConnection(ctx context.Context, id int64, sc *models.StopConnection) error {
	row := *sc
	row.ID = id
	err := r.update(ctx, `
		UPDATE stop_connections SET
			line_number = :line_number, connection_number = :connection_number,
			tariff_number = :tariff_number, stop_number = :stop_number,
			marker_code = :marker_code, station_number = :station_number,
			code1 = :code1, code2 = :code2, kilometers = :kilometers,
			arrival = :arrival, departure = :departure,
			line_id = :line_id, stop_id = :stop_id
		WHERE id = :id`, &row)
	if err != nil {
		return fmt.Errorf("failed to update stop connection %d: %w", id, err)
	}
	return nil
}

// RecordRun implements ImportStore.
func (r *JDFRepository) RecordRun(ctx context.Context, run *models.ImportRun) error {
	q, args, err := sqlx.Named(`
		INSERT INTO import_runs (
			run_id, version, version_date, state, failed_stage, error,
			carriers, lines, stops, codes, connections, stop_connections,
			started_at, finished_at
		) VALUES (
			:run_id, :version, :version_date, :state, :failed_stage, :error,
			:carriers, :lines, :stops, :codes, :connections, :stop_connections,
			:started_at, :finished_at
		)`, run)
	if err != nil {
		return fmt.Errorf("failed to bind import run: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, r.q.Rebind(q), args...); err != nil {
		return fmt.Errorf("failed to record import run %s: %w", run.RunID, err)
	}
	return nil
}

func wrapFind(kind string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to look up %s: %w", kind, err)
}
