// Package importer loads a JDF bundle into storage. The six entity files are
// processed in a fixed order so that foreign keys can be resolved through the
// per-run IDMap, and every row is upserted on its natural key so re-running
// an import over the same bundle converges to the same state.
package importer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jizdni-rady/backend/internal/jdf"
	"github.com/jizdni-rady/backend/internal/models"
	"github.com/jizdni-rady/backend/internal/repository"
)

// State is the progress of one import run.
type State int

const (
	NotStarted State = iota
	CarrierLoaded
	LinesLoaded
	StopsLoaded
	CodesLoaded
	ConnectionsLoaded
	StopConnectionsLoaded
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case CarrierLoaded:
		return "carrier_loaded"
	case LinesLoaded:
		return "lines_loaded"
	case StopsLoaded:
		return "stops_loaded"
	case CodesLoaded:
		return "codes_loaded"
	case ConnectionsLoaded:
		return "connections_loaded"
	case StopConnectionsLoaded:
		return "stop_connections_loaded"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Counts holds the number of rows upserted per entity kind.
type Counts struct {
	Carriers        int `json:"carriers"`
	Lines           int `json:"lines"`
	Stops           int `json:"stops"`
	Codes           int `json:"codes"`
	Connections     int `json:"connections"`
	StopConnections int `json:"stopConnections"`
}

func (c *Counts) set(kind Kind, n int) {
	switch kind {
	case KindCarrier:
		c.Carriers = n
	case KindLine:
		c.Lines = n
	case KindStop:
		c.Stops = n
	case KindCode:
		c.Codes = n
	case KindConnection:
		c.Connections = n
	case KindStopConnection:
		c.StopConnections = n
	}
}

// Result describes the outcome of Run.
type Result struct {
	RunID       uuid.UUID
	State       State
	FailedStage string
	// RolledBack is set when a failed atomic run left storage untouched.
	RolledBack bool
	Counts     Counts
	Version    *jdf.Version
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options tunes an Importer.
type Options struct {
	// Atomic runs all stages in one transaction.
	Atomic bool
	// StrictKeys fails a stage on rows whose natural key has absent fields.
	StrictKeys bool
	// StopKey selects how stops are deduplicated. Nil means StopKeyByName.
	StopKey StopKeyPolicy
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Atomic:  true,
		StopKey: StopKeyByName,
	}
}

// Importer runs JDF imports against an ImportStore.
type Importer struct {
	store repository.ImportStore
	opts  Options
}

// New creates an Importer.
func New(store repository.ImportStore, opts Options) *Importer {
	if opts.StopKey == nil {
		opts.StopKey = StopKeyByName
	}
	return &Importer{store: store, opts: opts}
}

type stage struct {
	name  string
	kind  Kind
	after State
	done  State
	load  func(r *run, ctx context.Context) (stageStats, error)
}

// stages is the fixed import order. Each stage may only run once the
// previous one has reached its done state.
var stages = []stage{
	{"carrier", KindCarrier, NotStarted, CarrierLoaded, (*run).loadCarrier},
	{"lines", KindLine, CarrierLoaded, LinesLoaded, (*run).loadLines},
	{"stops", KindStop, LinesLoaded, StopsLoaded, (*run).loadStops},
	{"codes", KindCode, StopsLoaded, CodesLoaded, (*run).loadCodes},
	{"connections", KindConnection, CodesLoaded, ConnectionsLoaded, (*run).loadConnections},
	{"stop connections", KindStopConnection, ConnectionsLoaded, StopConnectionsLoaded, (*run).loadStopConnections},
}

// Run imports the bundle in dir. Required files are checked before storage
// is touched. On failure the returned Result is still populated and the
// error is a *StageError when a stage failed.
func (imp *Importer) Run(ctx context.Context, dir string) (*Result, error) {
	res := &Result{
		RunID:     uuid.New(),
		State:     NotStarted,
		StartedAt: time.Now().UTC(),
	}
	log.Printf("Import %s: loading bundle %s", res.RunID, dir)

	if err := checkRequiredFiles(dir); err != nil {
		return imp.finish(ctx, res, err), err
	}

	version, err := jdf.ReadVersion(dir)
	if err != nil {
		log.Printf("Warning: failed to read %s: %v", jdf.VersionFile, err)
	}
	res.Version = version
	if version != nil && version.Label != nil {
		log.Printf("  JDF version %s", *version.Label)
	}

	err = imp.store.Session(ctx, imp.opts.Atomic, func(store repository.ImportStore) error {
		r := &run{store: store, dir: dir, opts: imp.opts, ids: NewIDMap()}

		for _, st := range stages {
			if res.State != st.after {
				return &StageError{Stage: st.name, Err: fmt.Errorf("stage requires state %s, have %s", st.after, res.State)}
			}

			start := time.Now()
			stats, err := st.load(r, ctx)
			if err != nil {
				res.FailedStage = st.name
				return &StageError{Stage: st.name, Err: err}
			}

			res.Counts.set(st.kind, stats.rows)
			res.State = st.done
			log.Printf("  %s: %d rows (%d created, %d updated) in %v",
				st.name, stats.rows, stats.created, stats.updated, time.Since(start).Round(time.Millisecond))
			if stats.dangling > 0 {
				log.Printf("  Warning: %s: %d rows reference unknown ephemeral ids, stored without link",
					st.name, stats.dangling)
			}
		}
		return nil
	})
	if err != nil {
		res.RolledBack = imp.opts.Atomic
		return imp.finish(ctx, res, err), err
	}

	res.State = Complete
	return imp.finish(ctx, res, nil), nil
}

// finish stamps the result, logs the outcome and records the run. Failing to
// record the run is logged and does not change the outcome.
func (imp *Importer) finish(ctx context.Context, res *Result, runErr error) *Result {
	res.FinishedAt = time.Now().UTC()
	if runErr != nil {
		res.State = Failed
		log.Printf("ERROR: import %s failed: %v", res.RunID, runErr)
	} else {
		log.Printf("Import %s complete in %v", res.RunID, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}

	if err := imp.store.RecordRun(ctx, toImportRun(res, runErr)); err != nil {
		log.Printf("Warning: failed to record import run %s: %v", res.RunID, err)
	}
	return res
}

func checkRequiredFiles(dir string) error {
	missing, err := jdf.MissingFiles(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequiredFileMissing, err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: %w", ErrRequiredFileMissing, strings.Join(missing, ", "), jdf.ErrFileNotFound)
	}
	return nil
}

func toImportRun(res *Result, runErr error) *models.ImportRun {
	run := &models.ImportRun{
		RunID:           res.RunID.String(),
		State:           res.State.String(),
		Carriers:        res.Counts.Carriers,
		Lines:           res.Counts.Lines,
		Stops:           res.Counts.Stops,
		Codes:           res.Counts.Codes,
		Connections:     res.Counts.Connections,
		StopConnections: res.Counts.StopConnections,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
	if res.Version != nil {
		run.Version = res.Version.Label
		run.VersionDate = models.NewDate(res.Version.Date)
	}
	if res.FailedStage != "" {
		stage := res.FailedStage
		run.FailedStage = &stage
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}
	return run
}
