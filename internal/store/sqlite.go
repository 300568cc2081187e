package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
	company_id     TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	assigned_tier  TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	payload        TEXT NOT NULL,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_results_tier ON results(assigned_tier);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, results []model.BulkResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (company_id, canonical_name, assigned_tier, run_id, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id) DO UPDATE SET
		   canonical_name = excluded.canonical_name,
		   assigned_tier = excluded.assigned_tier,
		   run_id = excluded.run_id,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal result %s", r.CompanyID)
		}
		if _, err := stmt.ExecContext(ctx, r.CompanyID, r.CanonicalName, string(r.AssignedTier), runID, string(payload), now); err != nil {
			return eris.Wrapf(err, "sqlite: upsert result %s", r.CompanyID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit results")
}

func (s *SQLiteStore) GetResult(ctx context.Context, companyID string) (*StoredResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, payload, updated_at FROM results WHERE company_id = ?`,
		companyID,
	)
	sr, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get result %s", companyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", companyID)
	}
	return sr, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error) {
	query := `SELECT run_id, payload, updated_at FROM results WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		query += ` AND assigned_tier = ?`
		args = append(args, string(filter.Tier))
	}
	query += ` ORDER BY updated_at DESC, company_id LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		sr, err := scanResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, *sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) CountByTier(ctx context.Context) (map[model.Tier]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT assigned_tier, COUNT(*) FROM results GROUP BY assigned_tier`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by tier")
	}
	defer rows.Close()

	counts := make(map[model.Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tier count")
		}
		counts[model.Tier(tier)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by tier iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanResult(row scannable) (*StoredResult, error) {
	var sr StoredResult
	var payload string
	if err := row.Scan(&sr.RunID, &payload, &sr.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &sr.Result); err != nil {
		return nil, eris.Wrap(err, "unmarshal payload")
	}
	return &sr, nil
}
