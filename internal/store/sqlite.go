package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/salesops-cli/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	profile      TEXT NOT NULL,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL,
	row_count    INTEGER NOT NULL DEFAULT 0,
	tx_count     INTEGER NOT NULL DEFAULT 0,
	unresolved   TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// RecordRun inserts run, assigning an ID and timestamp when they are unset.
func (s *SQLiteLedger) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var unresolved sql.NullString
	if len(run.Unresolved) > 0 {
		b, err := json.Marshal(run.Unresolved)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal unresolved")
		}
		unresolved = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, profile, source, status, row_count, tx_count, unresolved, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Profile, run.Source, string(run.Status), run.Rows, run.Transactions,
		unresolved, run.Error, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteLedger) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile, source, status, row_count, tx_count, unresolved, error, created_at
		 FROM runs WHERE id = ?`, id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", id)
	}
	return r, err
}

func (s *SQLiteLedger) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, profile, source, status, row_count, tx_count, unresolved, error, created_at
		FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Profile != "" {
		query += ` AND profile = ?`
		args = append(args, filter.Profile)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r          model.Run
		unresolved sql.NullString
		errText    sql.NullString
	)
	err := row.Scan(&r.ID, &r.Profile, &r.Source, &r.Status, &r.Rows, &r.Transactions,
		&unresolved, &errText, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if unresolved.Valid && unresolved.String != "" {
		if err := json.Unmarshal([]byte(unresolved.String), &r.Unresolved); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal unresolved")
		}
	}
	r.Error = errText.String
	return &r, nil
}
