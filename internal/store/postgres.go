package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/db"
	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/table"
)

// PostgresStore implements Store using pgxpool. Beyond the result cache it
// flattens each period's flow table into trade_flows so downstream SQL can
// aggregate origin-destination pairs without unpacking JSON.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot cache paths.
var preparedStatements = map[string]string{
	"get_result": `SELECT result FROM results WHERE input_hash = $1`,
	"put_result": `INSERT INTO results (id, scenario, period, input_hash, converged, result, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)
	 ON CONFLICT (input_hash) DO UPDATE SET
	   scenario = EXCLUDED.scenario, converged = EXCLUDED.converged,
	   result = EXCLUDED.result, created_at = EXCLUDED.created_at
	 RETURNING id`,
	"delete_result_flows": `DELETE FROM trade_flows WHERE result_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access to trade_flows.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scenario   TEXT NOT NULL,
	period     TEXT NOT NULL,
	input_hash TEXT NOT NULL UNIQUE,
	converged  BOOLEAN NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trade_flows (
	result_id   TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
	sector      TEXT NOT NULL,
	origin      TEXT NOT NULL,
	destination TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_scenario ON results(scenario);
CREATE INDEX IF NOT EXISTS idx_results_period ON results(period);
CREATE INDEX IF NOT EXISTS idx_trade_flows_result ON trade_flows(result_id);
CREATE INDEX IF NOT EXISTS idx_trade_flows_pair ON trade_flows(origin, destination);
`

// flowColumns is the COPY column order for trade_flows.
var flowColumns = []string{"result_id", "sector", "origin", "destination", "value"}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) PutResult(ctx context.Context, scenario string, result *model.PeriodResult) error {
	if result == nil || result.InputHash == "" {
		return eris.New("postgres: result missing input hash")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	// On hash collision the upsert keeps the existing row id, so RETURNING
	// tells us which id the flow rows belong to.
	var resultID string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO results (id, scenario, period, input_hash, converged, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (input_hash) DO UPDATE SET
		   scenario = EXCLUDED.scenario, converged = EXCLUDED.converged,
		   result = EXCLUDED.result, created_at = EXCLUDED.created_at
		 RETURNING id`,
		id, scenario, result.Period.String(), result.InputHash,
		result.Diagnostics.Converged, resultJSON, now,
	).Scan(&resultID)
	if err != nil {
		return eris.Wrapf(err, "postgres: put result %s", result.Period)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM trade_flows WHERE result_id = $1`, resultID); err != nil {
		return eris.Wrapf(err, "postgres: clear flows %s", resultID)
	}
	if _, err := db.CopyFrom(ctx, s.pool, "trade_flows", flowColumns, flowRows(resultID, result.Flows)); err != nil {
		return eris.Wrapf(err, "postgres: copy flows %s", resultID)
	}
	return nil
}

// flowRows flattens a period's flow table into COPY rows, skipping the zero
// cells that dominate sparse flow matrices.
func flowRows(resultID string, flows *table.Flows) [][]any {
	if flows == nil {
		return nil
	}
	sectors := flows.Sectors()
	regions := flows.Regions()
	var rows [][]any
	for m, sector := range sectors {
		for i, origin := range regions {
			for j, destination := range regions {
				v := flows.At(m, i, j)
				if v == 0 {
					continue
				}
				rows = append(rows, []any{resultID, sector, origin, destination, v})
			}
		}
	}
	return rows
}

func (s *PostgresStore) GetResult(ctx context.Context, inputHash string) (*model.PeriodResult, error) {
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM results WHERE input_hash = $1`,
		inputHash,
	).Scan(&resultJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get result")
	}

	var r model.PeriodResult
	if err := json.Unmarshal(resultJSON, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &r, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]ResultSummary, error) {
	query := `SELECT id, scenario, period, input_hash, converged, created_at FROM results WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Scenario != "" {
		query += fmt.Sprintf(` AND scenario = $%d`, argIdx)
		args = append(args, filter.Scenario)
		argIdx++
	}
	if filter.Period != "" {
		query += fmt.Sprintf(` AND period = $%d`, argIdx)
		args = append(args, filter.Period)
		argIdx++
	}
	if filter.Converged != nil {
		query += fmt.Sprintf(` AND converged = $%d`, argIdx)
		args = append(args, *filter.Converged)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var summaries []ResultSummary
	for rows.Next() {
		var rs ResultSummary
		if err := rows.Scan(&rs.ID, &rs.Scenario, &rs.Period, &rs.InputHash, &rs.Converged, &rs.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result summary")
		}
		summaries = append(summaries, rs)
	}
	return summaries, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) DeleteResults(ctx context.Context, scenario string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM results WHERE scenario = $1`,
		scenario,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete results %s", scenario)
	}
	return int(tag.RowsAffected()), nil
}
