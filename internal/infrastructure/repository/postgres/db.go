package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps the pipeline tables. The uniqueness constraints are
// part of the pipeline's correctness model: they are the only guard against
// double-processing under concurrent invocations.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	contract_number TEXT NOT NULL DEFAULT '',
	county TEXT NOT NULL DEFAULT '',
	route TEXT NOT NULL DEFAULT '',
	letting_date DATE
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	document_type TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	processing_started_at TIMESTAMPTZ,
	processing_completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_project_status ON documents(project_id, status);

CREATE TABLE IF NOT EXISTS line_items (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	line_number INTEGER NOT NULL,
	item_code TEXT NOT NULL DEFAULT '',
	alt_item_code TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	short_description TEXT NOT NULL DEFAULT '',
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit TEXT NOT NULL DEFAULT '',
	document_id TEXT NOT NULL DEFAULT '',
	work_category TEXT,
	risk_level TEXT,
	risk_notes TEXT NOT NULL DEFAULT '',
	spec_sections JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence INTEGER NOT NULL DEFAULT 0,
	matched_catalog_code TEXT,
	suggested_unit_price DOUBLE PRECISION,
	pricing_reviewed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT uq_line_items_project_line UNIQUE (project_id, line_number)
);

CREATE INDEX IF NOT EXISTS idx_line_items_project ON line_items(project_id);
CREATE INDEX IF NOT EXISTS idx_line_items_uncategorized ON line_items(project_id) WHERE work_category IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_line_items_project_code ON line_items(project_id, item_code) WHERE item_code <> '';

CREATE TABLE IF NOT EXISTS catalog_items (
	item_code TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	work_category TEXT,
	price_low DOUBLE PRECISION,
	price_median DOUBLE PRECISION,
	price_high DOUBLE PRECISION,
	weather_sensitive BOOLEAN NOT NULL DEFAULT FALSE,
	lump_sum BOOLEAN NOT NULL DEFAULT FALSE,
	subcontractor_dependent BOOLEAN NOT NULL DEFAULT FALSE,
	critical_path_typical BOOLEAN NOT NULL DEFAULT FALSE,
	risk_factors JSONB NOT NULL DEFAULT '[]'::jsonb,
	spec_section TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS work_packages (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	package_number INTEGER NOT NULL,
	name TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	work_category TEXT NOT NULL,
	status TEXT NOT NULL,
	item_count INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0,
	ai_generated BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT uq_work_packages_project_number UNIQUE (project_id, package_number)
);

CREATE TABLE IF NOT EXISTS work_package_items (
	package_id TEXT NOT NULL REFERENCES work_packages(id) ON DELETE CASCADE,
	line_item_id TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (package_id, line_item_id),
	CONSTRAINT uq_work_package_items_line_item UNIQUE (line_item_id)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), an expected outcome in the linking step rather
// than a crash.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
