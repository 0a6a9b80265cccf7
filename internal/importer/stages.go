package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/jizdni-rady/backend/internal/jdf"
	"github.com/jizdni-rady/backend/internal/models"
	"github.com/jizdni-rady/backend/internal/repository"
)

// run holds the state shared by the stages of one import.
type run struct {
	store     repository.ImportStore
	dir       string
	opts      Options
	ids       *IDMap
	carrierID *int64
}

// stageStats counts what a stage did with its rows.
type stageStats struct {
	rows     int
	created  int
	updated  int
	dangling int
}

func (s *stageStats) add(created bool) {
	s.rows++
	if created {
		s.created++
	} else {
		s.updated++
	}
}

func (r *run) read(name string) ([][]string, error) {
	records, err := jdf.ReadFile(filepath.Join(r.dir, name))
	if errors.Is(err, jdf.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrRequiredFileMissing, err)
	}
	return records, err
}

// checkKey applies the missing-key policy to one row.
func (r *run) checkKey(file string, row int, complete bool) error {
	if complete {
		return nil
	}
	if r.opts.StrictKeys {
		return fmt.Errorf("%w: %s row %d", ErrMissingKey, file, row)
	}
	log.Printf("Warning: %s row %d has an incomplete natural key", file, row)
	return nil
}

// upsert finds a row by natural key and updates it in place, or creates it.
// A create that loses a unique-key race is retried once as find + update.
func upsert(
	find func() (int64, bool, error),
	create func() (int64, error),
	update func(id int64) error,
) (int64, bool, error) {
	id, ok, err := find()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return id, false, update(id)
	}

	id, err = create()
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return 0, false, err
	}

	id, ok, err = find()
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, fmt.Errorf("row vanished after create conflict: %w", repository.ErrConflict)
	}
	return id, false, update(id)
}

func (r *run) loadCarrier(ctx context.Context) (stageStats, error) {
	var stats stageStats

	rows, err := r.read(jdf.CarrierFile)
	if err != nil {
		return stats, err
	}
	if len(rows) != 1 {
		return stats, fmt.Errorf("%w: expected 1 row, got %d", ErrInvalidCarrierFile, len(rows))
	}

	row := rows[0]
	c := &models.Carrier{
		ICO:           jdf.AsString(jdf.Field(row, 0)),
		DIC:           jdf.AsString(jdf.Field(row, 1)),
		Name:          jdf.AsString(jdf.Field(row, 2)),
		FirmType:      jdf.AsString(jdf.Field(row, 3)),
		PersonName:    jdf.AsString(jdf.Field(row, 4)),
		Address:       jdf.AsString(jdf.Field(row, 5)),
		Phone:         jdf.AsString(jdf.Field(row, 6)),
		DispatchPhone: jdf.AsString(jdf.Field(row, 7)),
		InfoPhone:     jdf.AsString(jdf.Field(row, 8)),
		Fax:           jdf.AsString(jdf.Field(row, 9)),
		Email:         jdf.AsString(jdf.Field(row, 10)),
		Website:       jdf.AsString(jdf.Field(row, 11)),
	}
	if err := r.checkKey(jdf.CarrierFile, 1, c.ICO != nil); err != nil {
		return stats, err
	}

	id, created, err := upsert(
		func() (int64, bool, error) {
			existing, err := r.store.FindCarrierByICO(ctx, c.ICO)
			if err != nil || existing == nil {
				return 0, false, err
			}
			return existing.ID, true, nil
		},
		func() (int64, error) { return r.store.CreateCarrier(ctx, c) },
		func(id int64) error { return r.store.UpdateCarrier(ctx, id, c) },
	)
	if err != nil {
		return stats, err
	}

	r.carrierID = &id
	if eph := jdf.AsInt(jdf.Field(row, 12)); eph != nil {
		r.ids.Put(KindCarrier, *eph, id)
	}
	stats.add(created)
	return stats, nil
}

func (r *run) loadLines(ctx context.Context) (stageStats, error) {
	var stats stageStats

	rows, err := r.read(jdf.LinesFile)
	if err != nil {
		return stats, err
	}

	for i, row := range rows {
		l := &models.Line{
			Number:            jdf.AsString(jdf.Field(row, 0)),
			Name:              jdf.AsString(jdf.Field(row, 1)),
			ICOCarrier:        jdf.AsString(jdf.Field(row, 2)),
			LineType:          jdf.AsString(jdf.Field(row, 3)),
			VehicleType:       jdf.AsString(jdf.Field(row, 4)),
			IsDetour:          jdf.AsBool(jdf.Field(row, 5)),
			IsGrouped:         jdf.AsBool(jdf.Field(row, 6)),
			IsCoded:           jdf.AsBool(jdf.Field(row, 7)),
			Reserve:           jdf.AsString(jdf.Field(row, 8)),
			License:           jdf.AsString(jdf.Field(row, 9)),
			LicenseValidFrom:  models.NewDate(jdf.AsDate(jdf.Field(row, 10))),
			LicenseValidTo:    models.NewDate(jdf.AsDate(jdf.Field(row, 11))),
			ScheduleValidFrom: models.NewDate(jdf.AsDate(jdf.Field(row, 12))),
			ScheduleValidTo:   models.NewDate(jdf.AsDate(jdf.Field(row, 13))),
			CarrierID:         r.carrierID,
		}
		if err := r.checkKey(jdf.LinesFile, i+1, l.Number != nil && l.ICOCarrier != nil); err != nil {
			return stats, err
		}

		id, created, err := upsert(
			func() (int64, bool, error) {
				existing, err := r.store.FindLine(ctx, l.Number, l.ICOCarrier)
				if err != nil || existing == nil {
					return 0, false, err
				}
				return existing.ID, true, nil
			},
			func() (int64, error) { return r.store.CreateLine(ctx, l) },
			func(id int64) error { return r.store.UpdateLine(ctx, id, l) },
		)
		if err != nil {
			return stats, fmt.Errorf("%s row %d: %w", jdf.LinesFile, i+1, err)
		}

		if eph := jdf.AsInt(jdf.Field(row, 15)); eph != nil {
			r.ids.Put(KindLine, *eph, id)
		}
		stats.add(created)
	}
	return stats, nil
}

func (r *run) loadStops(ctx context.Context) (stageStats, error) {
	var stats stageStats

	rows, err := r.read(jdf.StopsFile)
	if err != nil {
		return stats, err
	}
	if len(rows) == 0 {
		return stats, fmt.Errorf("%w: no rows", ErrInvalidStopsFile)
	}

	for i, row := range rows {
		s := &models.Stop{
			Number:         jdf.AsInt(jdf.Field(row, 0)),
			Name:           jdf.AsString(jdf.Field(row, 1)),
			District:       jdf.AsString(jdf.Field(row, 2)),
			NearPoint:      jdf.AsString(jdf.Field(row, 3)),
			NearCity:       jdf.AsString(jdf.Field(row, 4)),
			Country:        jdf.AsString(jdf.Field(row, 5)),
			NameNormalized: jdf.NormalizeName(jdf.Field(row, 1)),
		}
		s.MatchKey = r.opts.StopKey(s)
		if err := r.checkKey(jdf.StopsFile, i+1, s.MatchKey != nil); err != nil {
			return stats, err
		}

		id, created, err := upsert(
			func() (int64, bool, error) {
				existing, err := r.store.FindStopByKey(ctx, s.MatchKey)
				if err != nil || existing == nil {
					return 0, false, err
				}
				return existing.ID, true, nil
			},
			func() (int64, error) { return r.store.CreateStop(ctx, s) },
			func(id int64) error { return r.store.UpdateStop(ctx, id, s) },
		)
		if err != nil {
			return stats, fmt.Errorf("%s row %d: %w", jdf.StopsFile, i+1, err)
		}

		if s.Number != nil {
			r.ids.Put(KindStop, *s.Number, id)
		}
		stats.add(created)
	}
	return stats, nil
}

func (r *run) loadCodes(ctx context.Context) (stageStats, error) {
	var stats stageStats

	rows, err := r.read(jdf.CodesFile)
	if err != nil {
		return stats, err
	}

	for i, row := range rows {
		c := &models.Code{
			InternalCode: jdf.AsString(jdf.Field(row, 0)),
			Code:         jdf.AsString(jdf.Field(row, 1)),
			Internal:     jdf.AsString(jdf.Field(row, 2)),
		}
		if err := r.checkKey(jdf.CodesFile, i+1, c.InternalCode != nil); err != nil {
			return stats, err
		}

		id, created, err := upsert(
			func() (int64, bool, error) {
				existing, err := r.store.FindCode(ctx, c.InternalCode)
				if err != nil || existing == nil {
					return 0, false, err
				}
				return existing.ID, true, nil
			},
			func() (int64, error) { return r.store.CreateCode(ctx, c) },
			func(id int64) error { return r.store.UpdateCode(ctx, id, c) },
		)
		if err != nil {
			return stats, fmt.Errorf("%s row %d: %w", jdf.CodesFile, i+1, err)
		}

		if eph := jdf.AsInt(jdf.Field(row, 0)); eph != nil {
			r.ids.Put(KindCode, *eph, id)
		}
		stats.add(created)
	}
	return stats, nil
}

func (r *run) loadConnections(ctx context.Context) (stageStats, error) {
	var stats stageStats

	rows, err := r.read(jdf.ConnectionsFile)
	if err != nil {
		return stats, err
	}

	for i, row := range rows {
		lineRef := jdf.AsInt(jdf.Field(row, 13))
		c := &models.Connection{
			LineNumber:        jdf.AsInt(jdf.Field(row, 0)),
			ConnectionNumber:  jdf.AsInt(jdf.Field(row, 1)),
			Code1:             jdf.AsString(jdf.Field(row, 2)),
			Code2:             jdf.AsString(jdf.Field(row, 3)),
			Code3:             jdf.AsString(jdf.Field(row, 4)),
			Code4:             jdf.AsString(jdf.Field(row, 5)),
			Code5:             jdf.AsString(jdf.Field(row, 6)),
			Code6:             jdf.AsString(jdf.Field(row, 7)),
			Code7:             jdf.AsString(jdf.Field(row, 8)),
			Code8:             jdf.AsString(jdf.Field(row, 9)),
			Code9:             jdf.AsString(jdf.Field(row, 10)),
			Code10:            jdf.AsString(jdf.Field(row, 11)),
			ConnectionGroupID: jdf.AsInt(jdf.Field(row, 12)),
			LineID:            r.ids.Ref(KindLine, lineRef),
		}
		if lineRef != nil && c.LineID == nil {
			stats.dangling++
		}
		if err := r.checkKey(jdf.ConnectionsFile, i+1, c.LineNumber != nil && c.ConnectionNumber != nil); err != nil {
			return stats, err
		}

		id, created, err := upsert(
			func() (int64, bool, error) {
				existing, err := r.store.FindConnection(ctx, c.LineNumber, c.ConnectionNumber)
				if err != nil || existing == nil {
					return 0, false, err
				}
				return existing.ID, true, nil
			},
			func() (int64, error) { return r.store.CreateConnection(ctx, c) },
			func(id int64) error { return r.store.UpdateConnection(ctx, id, c) },
		)
		if err != nil {
			return stats, fmt.Errorf("%s row %d: %w", jdf.ConnectionsFile, i+1, err)
		}

		if eph := jdf.AsInt(jdf.Field(row, 15)); eph != nil {
			r.ids.Put(KindConnection, *eph, id)
		}
		stats.add(created)
	}
	return stats, nil
}

func (r *run) loadStopConnections(ctx context.Context) (stageStats, error) {
	var stats stageStats

	rows, err := r.read(jdf.StopConnectionsFile)
	if err != nil {
		return stats, err
	}

	for i, row := range rows {
		lineRef := jdf.AsInt(jdf.Field(row, 11))
		stopNumber := jdf.AsInt(jdf.Field(row, 3))
		sc := &models.StopConnection{
			LineNumber:       jdf.AsInt(jdf.Field(row, 0)),
			ConnectionNumber: jdf.AsInt(jdf.Field(row, 1)),
			TariffNumber:     jdf.AsInt(jdf.Field(row, 2)),
			StopNumber:       stopNumber,
			MarkerCode:       jdf.AsString(jdf.Field(row, 4)),
			StationNumber:    jdf.AsString(jdf.Field(row, 5)),
			Code1:            jdf.AsString(jdf.Field(row, 6)),
			Code2:            jdf.AsString(jdf.Field(row, 7)),
			Kilometers:       jdf.AsFloat(jdf.Field(row, 8)),
			Arrival:          jdf.AsString(jdf.Field(row, 9)),
			Departure:        jdf.AsString(jdf.Field(row, 10)),
			LineID:           r.ids.Ref(KindLine, lineRef),
			StopID:           r.ids.Ref(KindStop, stopNumber),
		}
		if (lineRef != nil && sc.LineID == nil) || (stopNumber != nil && sc.StopID == nil) {
			stats.dangling++
		}
		complete := sc.LineNumber != nil && sc.ConnectionNumber != nil && sc.StopNumber != nil
		if err := r.checkKey(jdf.StopConnectionsFile, i+1, complete); err != nil {
			return stats, err
		}

		id, created, err := upsert(
			func() (int64, bool, error) {
				existing, err := r.store.FindStopConnection(ctx, sc.LineNumber, sc.ConnectionNumber, sc.StopNumber)
				if err != nil || existing == nil {
					return 0, false, err
				}
				return existing.ID, true, nil
			},
			func() (int64, error) { return r.store.CreateStopConnection(ctx, sc) },
			func(id int64) error { return r.store.UpdateStopConnection(ctx, id, sc) },
		)
		if err != nil {
			return stats, fmt.Errorf("%s row %d: %w", jdf.StopConnectionsFile, i+1, err)
		}

		if eph := jdf.AsInt(jdf.Field(row, 12)); eph != nil {
			r.ids.Put(KindStopConnection, *eph, id)
		}
		stats.add(created)
	}
	return stats, nil
}
