package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pharma-enrich/internal/db"
	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var resultsUpsert = db.UpsertConfig{
	Table:        "results",
	Columns:      []string{"company_id", "canonical_name", "assigned_tier", "run_id", "payload", "updated_at"},
	ConflictKeys: []string{"company_id"},
}

// bulkUpsertThreshold is the batch size from which SaveResults switches from
// per-row upserts to COPY through a temp table.
const bulkUpsertThreshold = 50

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_result":    `SELECT run_id, payload, updated_at FROM results WHERE company_id = $1`,
	"count_by_tier": `SELECT assigned_tier, COUNT(*) FROM results GROUP BY assigned_tier`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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
	// The database may still be starting when the service comes up.
	ping := resilience.DefaultRetryConfig()
	ping.ShouldRetry = func(error) bool { return true }
	ping.Source = "postgres"
	if err := resilience.Do(ctx, ping, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS results (
	company_id     TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	assigned_tier  TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	payload        JSONB NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_results_tier ON results(assigned_tier);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
`

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

func (s *PostgresStore) SaveResults(ctx context.Context, runID string, results []model.BulkResult) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal result %s", r.CompanyID)
		}
		rows = append(rows, []any{r.CompanyID, r.CanonicalName, string(r.AssignedTier), runID, payload, now})
	}

	if len(rows) >= bulkUpsertThreshold {
		_, err := db.BulkUpsert(ctx, s.pool, resultsUpsert, rows)
		return eris.Wrap(err, "postgres: save results")
	}

	upsertSQL, err := db.UpsertSQL(resultsUpsert)
	if err != nil {
		return eris.Wrap(err, "postgres: save results")
	}
	for i, row := range rows {
		if _, err := s.pool.Exec(ctx, upsertSQL, row...); err != nil {
			return eris.Wrapf(err, "postgres: upsert result %s", results[i].CompanyID)
		}
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, companyID string) (*StoredResult, error) {
	var sr StoredResult
	var payload []byte

	err := s.pool.QueryRow(ctx,
		`SELECT run_id, payload, updated_at FROM results WHERE company_id = $1`,
		companyID,
	).Scan(&sr.RunID, &payload, &sr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get result %s", companyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", companyID)
	}
	if err := json.Unmarshal(payload, &sr.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal payload")
	}
	return &sr, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error) {
	query := `SELECT run_id, payload, updated_at FROM results WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Tier != "" {
		query += fmt.Sprintf(` AND assigned_tier = $%d`, argIdx)
		args = append(args, string(filter.Tier))
		argIdx++
	}
	query += ` ORDER BY updated_at DESC, company_id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var sr StoredResult
		var payload []byte
		if err := rows.Scan(&sr.RunID, &payload, &sr.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		if err := json.Unmarshal(payload, &sr.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal payload")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) CountByTier(ctx context.Context) (map[model.Tier]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT assigned_tier, COUNT(*) FROM results GROUP BY assigned_tier`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by tier")
	}
	defer rows.Close()

	counts := make(map[model.Tier]int)
	for rows.Next() {
		var tier string
		var n int64
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tier count")
		}
		counts[model.Tier(tier)] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by tier iterate")
}
