package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/griff-rees/estios/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend: a single file next to the scenario, no server to run.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	period     TEXT NOT NULL,
	input_hash TEXT NOT NULL UNIQUE,
	converged  INTEGER NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_results_scenario ON results(scenario);
CREATE INDEX IF NOT EXISTS idx_results_period ON results(period);
CREATE INDEX IF NOT EXISTS idx_results_input_hash ON results(input_hash);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutResult(ctx context.Context, scenario string, result *model.PeriodResult) error {
	if result == nil || result.InputHash == "" {
		return eris.New("sqlite: result missing input hash")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, scenario, period, input_hash, converged, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(input_hash) DO UPDATE SET
		   scenario = excluded.scenario, converged = excluded.converged,
		   result = excluded.result, created_at = excluded.created_at`,
		id, scenario, result.Period.String(), result.InputHash,
		result.Diagnostics.Converged, string(resultJSON), now,
	)
	return eris.Wrapf(err, "sqlite: put result %s", result.Period)
}

func (s *SQLiteStore) GetResult(ctx context.Context, inputHash string) (*model.PeriodResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM results WHERE input_hash = ?`,
		inputHash,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get result")
	}

	var r model.PeriodResult
	if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &r, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]ResultSummary, error) {
	query := `SELECT id, scenario, period, input_hash, converged, created_at FROM results WHERE 1=1`
	var args []any

	if filter.Scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, filter.Scenario)
	}
	if filter.Period != "" {
		query += ` AND period = ?`
		args = append(args, filter.Period)
	}
	if filter.Converged != nil {
		query += ` AND converged = ?`
		args = append(args, *filter.Converged)
	}
	query += ` ORDER BY created_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var summaries []ResultSummary
	for rows.Next() {
		var rs ResultSummary
		if err := rows.Scan(&rs.ID, &rs.Scenario, &rs.Period, &rs.InputHash, &rs.Converged, &rs.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result summary")
		}
		summaries = append(summaries, rs)
	}
	return summaries, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) DeleteResults(ctx context.Context, scenario string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM results WHERE scenario = ?`,
		scenario,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete results %s", scenario)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
