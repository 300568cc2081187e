package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS results`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	want := bulkResult("1", "Pfizer", model.TierOne)
	payload, err := json.Marshal(want)
	require.NoError(t, err)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT run_id, payload, updated_at FROM results WHERE company_id = \$1`).
		WithArgs("1").
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "payload", "updated_at"}).AddRow("run-1", payload, at))

	got, err := s.GetResult(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, want, got.Result)
	assert.Equal(t, at, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT run_id, payload, updated_at FROM results WHERE company_id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetResult(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_PerRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	for _, id := range []string{"1", "2"} {
		mock.ExpectExec(`INSERT INTO "results" .* ON CONFLICT \("company_id"\) DO UPDATE SET`).
			WithArgs(id, pgxmock.AnyArg(), pgxmock.AnyArg(), "run-9", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	err := s.SaveResults(context.Background(), "run-9", []model.BulkResult{
		bulkResult("1", "Pfizer", model.TierOne),
		bulkResult("2", "Acme", model.TierMid),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "results"`).
		WithArgs("1", "Pfizer", "TIER_1", "run-9", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "results"`).
		WithArgs("2", "Acme", "MID_TIER", "run-9", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := s.SaveResults(context.Background(), "run-9", []model.BulkResult{
		bulkResult("1", "Pfizer", model.TierOne),
		bulkResult("2", "Acme", model.TierMid),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert result 2")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_Bulk(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	results := make([]model.BulkResult, bulkUpsertThreshold)
	for i := range results {
		results[i] = bulkResult(fmt.Sprint(i), fmt.Sprintf("Company %d", i), model.TierMid)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_results"}, resultsUpsert.Columns).
		WillReturnResult(int64(len(results)))
	mock.ExpectExec(`INSERT INTO "results" .* SELECT .* ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", int64(len(results))))
	mock.ExpectCommit()

	require.NoError(t, s.SaveResults(context.Background(), "run-bulk", results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a, _ := json.Marshal(bulkResult("1", "Pfizer", model.TierOne))
	b, _ := json.Marshal(bulkResult("2", "Roche", model.TierOne))
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT run_id, payload, updated_at FROM results WHERE true AND assigned_tier = \$1 ORDER BY updated_at DESC, company_id LIMIT \$2 OFFSET \$3`).
		WithArgs("TIER_1", 10, 5).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "payload", "updated_at"}).
			AddRow("run-1", a, now).
			AddRow("run-1", b, now))

	got, err := s.ListResults(context.Background(), ResultFilter{Tier: model.TierOne, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Roche", got[1].Result.CanonicalName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResults_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT run_id, payload, updated_at FROM results WHERE true ORDER BY updated_at DESC, company_id LIMIT \$1`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "payload", "updated_at"}))

	got, err := s.ListResults(context.Background(), ResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByTier(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT assigned_tier, COUNT\(\*\) FROM results GROUP BY assigned_tier`).
		WillReturnRows(pgxmock.NewRows([]string{"assigned_tier", "count"}).
			AddRow("TIER_1", int64(3)).
			AddRow("MID_TIER", int64(8)))

	counts, err := s.CountByTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[model.Tier]int{model.TierOne: 3, model.TierMid: 8}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
