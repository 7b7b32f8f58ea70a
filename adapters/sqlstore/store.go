// Package sqlstore archives verdicts of each invocation in a SQL database
// (SQLite or PostgreSQL) and answers run history queries.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"runqa/domain/core"
	"runqa/internal"
	"runqa/internal/errors"
	"runqa/internal/migration"
	"runqa/internal/verdict"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store is the verdict archive.
type Store struct {
	db     *sqlx.DB
	logger *internal.Logger
	now    func() time.Time
}

// Open connects to the archive and migrates its schema.
func Open(ctx context.Context, driver, dsn string, logger *internal.Logger) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported archive driver %q", driver))
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.StoreError("failed to connect to archive", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, errors.StoreError("failed to enable foreign keys", err)
		}
	}
	if err := migration.NewRunner(logger).Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.WithCode(errors.CodeStoreError, err)
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an already migrated database handle.
func NewStore(db *sqlx.DB, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{db: db, logger: logger.WithComponent("sqlstore"), now: time.Now}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Invocation is one archived pipeline invocation.
type Invocation struct {
	ID          string `db:"id"`
	Fingerprint string `db:"fingerprint"`
	RunMin      int    `db:"run_min"`
	RunMax      int    `db:"run_max"`
	NRuns       int    `db:"n_runs"`
	NMetrics    int    `db:"n_metrics"`
	NGood       int    `db:"n_good"`
	NSuspect    int    `db:"n_suspect"`
	NBad        int    `db:"n_bad"`
	ArchivedAt  string `db:"archived_at"`
}

type metricRow struct {
	InvocationID string          `db:"invocation_id"`
	Run          int             `db:"run"`
	Metric       string          `db:"metric"`
	Verdict      string          `db:"verdict"`
	Severity     string          `db:"severity"`
	Pattern      string          `db:"pattern"`
	Causes       string          `db:"causes"`
	Action       string          `db:"action"`
	ZLocal       sql.NullFloat64 `db:"z_local"`
	Value        sql.NullFloat64 `db:"value"`
}

type runRow struct {
	InvocationID string `db:"invocation_id"`
	Run          int    `db:"run"`
	Verdict      string `db:"verdict"`
	NGood        int    `db:"n_good"`
	NSuspect     int    `db:"n_suspect"`
	NBad         int    `db:"n_bad"`
	WorstMetric  string `db:"worst_metric"`
	Summary      string `db:"summary"`
}

// nullable stores non-finite values as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Archive stores the report's verdicts. Archiving the same fingerprint again
// replaces the earlier rows.
func (s *Store) Archive(ctx context.Context, r *verdict.Report) error {
	if r.InvocationID == "" {
		return errors.InvalidInput("report has no invocation id")
	}
	good, suspect, bad := r.Counts()
	first, last, _ := r.RunRange()
	inv := Invocation{
		ID:          r.InvocationID.String(),
		Fingerprint: r.Fingerprint.String(),
		RunMin:      first,
		RunMax:      last,
		NRuns:       len(r.RunVerdicts),
		NMetrics:    len(r.Metrics),
		NGood:       good,
		NSuspect:    suspect,
		NBad:        bad,
		ArchivedAt:  s.now().UTC().Format(time.RFC3339),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StoreError("failed to begin archive transaction", err)
	}
	defer tx.Rollback()

	if err := s.purge(ctx, tx, inv.Fingerprint); err != nil {
		return err
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO invocations (id, fingerprint, run_min, run_max, n_runs, n_metrics, n_good, n_suspect, n_bad, archived_at)
		VALUES (:id, :fingerprint, :run_min, :run_max, :n_runs, :n_metrics, :n_good, :n_suspect, :n_bad, :archived_at)
	`, inv); err != nil {
		return errors.StoreError("failed to insert invocation", err)
	}

	mstmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO metric_verdicts (invocation_id, run, metric, verdict, severity, pattern, causes, action, z_local, value)
		VALUES (:invocation_id, :run, :metric, :verdict, :severity, :pattern, :causes, :action, :z_local, :value)
	`)
	if err != nil {
		return errors.StoreError("failed to prepare metric verdict insert", err)
	}
	defer mstmt.Close()
	for _, v := range r.MetricVerdicts {
		row := metricRow{
			InvocationID: inv.ID, Run: v.Run, Metric: v.Metric,
			Verdict: string(v.Verdict), Severity: string(v.Severity), Pattern: string(v.Pattern),
			Causes: strings.Join(v.Causes, "; "), Action: v.Action,
			ZLocal: nullable(v.ZLocal), Value: nullable(v.Value),
		}
		if _, err := mstmt.ExecContext(ctx, row); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to insert verdict run %d metric %s", v.Run, v.Metric), err)
		}
	}

	rstmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO run_verdicts (invocation_id, run, verdict, n_good, n_suspect, n_bad, worst_metric, summary)
		VALUES (:invocation_id, :run, :verdict, :n_good, :n_suspect, :n_bad, :worst_metric, :summary)
	`)
	if err != nil {
		return errors.StoreError("failed to prepare run verdict insert", err)
	}
	defer rstmt.Close()
	for _, rv := range r.RunVerdicts {
		row := runRow{
			InvocationID: inv.ID, Run: rv.Run, Verdict: string(rv.Verdict),
			NGood: rv.NGood, NSuspect: rv.NSuspect, NBad: rv.NBad,
			WorstMetric: rv.WorstMetric, Summary: rv.Summary,
		}
		if _, err := rstmt.ExecContext(ctx, row); err != nil {
			return errors.StoreError(fmt.Sprintf("failed to insert run verdict %d", rv.Run), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("failed to commit archive", err)
	}
	s.logger.Info("archived invocation %s (%d runs, %d verdicts)", inv.ID, inv.NRuns, len(r.MetricVerdicts))
	return nil
}

// purge removes an earlier archive of the same fingerprint.
func (s *Store) purge(ctx context.Context, tx *sqlx.Tx, fingerprint string) error {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, tx.Rebind(`SELECT id FROM invocations WHERE fingerprint = ?`), fingerprint); err != nil {
		return errors.StoreError("failed to look up earlier archive", err)
	}
	for _, id := range ids {
		for _, q := range []string{
			`DELETE FROM metric_verdicts WHERE invocation_id = ?`,
			`DELETE FROM run_verdicts WHERE invocation_id = ?`,
			`DELETE FROM invocations WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
				return errors.StoreError("failed to replace earlier archive", err)
			}
		}
		s.logger.Debug("replacing archived invocation %s", id)
	}
	return nil
}

// Invocation returns one archived invocation.
func (s *Store) Invocation(ctx context.Context, id string) (*Invocation, error) {
	var inv Invocation
	err := s.db.GetContext(ctx, &inv, s.db.Rebind(`
		SELECT id, fingerprint, run_min, run_max, n_runs, n_metrics, n_good, n_suspect, n_bad, archived_at
		FROM invocations WHERE id = ?
	`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrInvocationMissing, id)
	}
	if err != nil {
		return nil, errors.StoreError("failed to load invocation", err)
	}
	return &inv, nil
}

// HistoryEntry is the archived verdict of a run in one invocation.
type HistoryEntry struct {
	InvocationID string `db:"invocation_id"`
	ArchivedAt   string `db:"archived_at"`
	Run          int    `db:"run"`
	Verdict      string `db:"verdict"`
	NGood        int    `db:"n_good"`
	NSuspect     int    `db:"n_suspect"`
	NBad         int    `db:"n_bad"`
	WorstMetric  string `db:"worst_metric"`
	Summary      string `db:"summary"`
}

// History lists archived run verdicts of a run, oldest first.
func (s *Store) History(ctx context.Context, run int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT rv.invocation_id, i.archived_at, rv.run, rv.verdict, rv.n_good, rv.n_suspect, rv.n_bad, rv.worst_metric, rv.summary
		FROM run_verdicts rv
		JOIN invocations i ON i.id = rv.invocation_id
		WHERE rv.run = ?
		ORDER BY i.archived_at, rv.invocation_id
	`), run)
	if err != nil {
		return nil, errors.StoreError(fmt.Sprintf("failed to query history of run %d", run), err)
	}
	return out, nil
}

// FlaggedMetric is an archived non-GOOD metric verdict.
type FlaggedMetric struct {
	Metric   string          `db:"metric"`
	Verdict  string          `db:"verdict"`
	Severity string          `db:"severity"`
	Pattern  string          `db:"pattern"`
	Action   string          `db:"action"`
	ZLocal   sql.NullFloat64 `db:"z_local"`
}

// FlaggedMetrics lists the non-GOOD metric verdicts of a run in one invocation.
func (s *Store) FlaggedMetrics(ctx context.Context, invocationID string, run int) ([]FlaggedMetric, error) {
	var out []FlaggedMetric
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT metric, verdict, severity, pattern, action, z_local
		FROM metric_verdicts
		WHERE invocation_id = ? AND run = ? AND verdict <> 'GOOD'
		ORDER BY metric
	`), invocationID, run)
	if err != nil {
		return nil, errors.StoreError("failed to query flagged metrics", err)
	}
	return out, nil
}
