// Package migration creates the verdict archive schema. The statements are
// portable between SQLite and PostgreSQL.
package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"runqa/internal"
	"runqa/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	logger  *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *internal.Logger) *MigrationRunner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MigrationRunner{
		version: "1.0.0",
		logger:  logger.WithComponent("migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createInvocationsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create invocations table")
	}

	if err := r.createMetricVerdictsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create metric_verdicts table")
	}

	if err := r.createRunVerdictsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create run_verdicts table")
	}

	r.createIndexes(ctx, db)
	return nil
}

func (r *MigrationRunner) createInvocationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS invocations (
			id VARCHAR(36) PRIMARY KEY,
			fingerprint VARCHAR(64) UNIQUE NOT NULL,
			run_min INTEGER NOT NULL,
			run_max INTEGER NOT NULL,
			n_runs INTEGER NOT NULL,
			n_metrics INTEGER NOT NULL,
			n_good INTEGER NOT NULL,
			n_suspect INTEGER NOT NULL,
			n_bad INTEGER NOT NULL,
			archived_at VARCHAR(40) NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createMetricVerdictsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metric_verdicts (
			invocation_id VARCHAR(36) NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
			run INTEGER NOT NULL,
			metric VARCHAR(255) NOT NULL,
			verdict VARCHAR(16) NOT NULL,
			severity VARCHAR(16) NOT NULL,
			pattern VARCHAR(32) NOT NULL,
			causes TEXT NOT NULL,
			action TEXT NOT NULL,
			z_local DOUBLE PRECISION,
			value DOUBLE PRECISION,
			PRIMARY KEY (invocation_id, run, metric)
		)
	`)
	return err
}

func (r *MigrationRunner) createRunVerdictsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_verdicts (
			invocation_id VARCHAR(36) NOT NULL REFERENCES invocations(id) ON DELETE CASCADE,
			run INTEGER NOT NULL,
			verdict VARCHAR(16) NOT NULL,
			n_good INTEGER NOT NULL,
			n_suspect INTEGER NOT NULL,
			n_bad INTEGER NOT NULL,
			worst_metric VARCHAR(255) NOT NULL,
			summary TEXT NOT NULL,
			PRIMARY KEY (invocation_id, run)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_run_verdicts_run ON run_verdicts(run)",
		"CREATE INDEX IF NOT EXISTS idx_metric_verdicts_run ON metric_verdicts(run)",
		"CREATE INDEX IF NOT EXISTS idx_metric_verdicts_metric ON metric_verdicts(metric, verdict)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			r.logger.Warn("failed to create index: %v", err)
		}
	}
}
