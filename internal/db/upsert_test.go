package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resultsUpsert = UpsertConfig{
	Table:        "public.results",
	Columns:      []string{"company_id", "canonical_name", "assigned_tier"},
	ConflictKeys: []string{"company_id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, resultsUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "results",
		ConflictKeys: []string{"company_id"},
	}, [][]any{{"1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "results",
		Columns: []string{"company_id", "canonical_name"},
	}, [][]any{{"1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_public_results"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_public_results"}, resultsUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "public"."results" .* ON CONFLICT \("company_id"\) DO UPDATE SET "canonical_name" = EXCLUDED."canonical_name", "assigned_tier" = EXCLUDED."assigned_tier"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"1", "Pfizer", "TIER_1"}, {"2", "Acme", "MID_TIER"}}
	n, err := BulkUpsert(context.Background(), mock, resultsUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_public_results"}, resultsUpsert.Columns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, resultsUpsert, [][]any{{"1", "Pfizer", "TIER_1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for public.results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	sql, err := UpsertSQL(resultsUpsert)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "public"."results" ("company_id", "canonical_name", "assigned_tier") VALUES ($1, $2, $3) `+
			`ON CONFLICT ("company_id") DO UPDATE SET "canonical_name" = EXCLUDED."canonical_name", "assigned_tier" = EXCLUDED."assigned_tier"`,
		sql)

	custom := resultsUpsert
	custom.UpdateCols = []string{"assigned_tier"}
	sql, err = UpsertSQL(custom)
	require.NoError(t, err)
	assert.Contains(t, sql, `DO UPDATE SET "assigned_tier" = EXCLUDED."assigned_tier"`)

	_, err = UpsertSQL(UpsertConfig{Table: "results"})
	assert.Error(t, err)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.results", `"public"."results"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
