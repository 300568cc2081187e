package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pharma-enrich/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "none"
	c.Sources.TimeoutSecs = 5
	c.Batch.MaxConcurrentCompanies = 2
	c.Enrich.Parallel = true
	c.Tiering.TopTAShareThreshold = 0.6
	c.Tiering.PlatformShareThreshold = 0.7
	c.Tiering.UpcomingRatio = 0.5
	c.Server.Port = 8000
	return c
}

func TestInitEnv_NoStore(t *testing.T) {
	env, err := initEnv(context.Background(), testConfig(t), "enrich", true)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Store)
	assert.NotNil(t, env.Runner)
	assert.NotNil(t, env.Loader)
	assert.Len(t, env.Aggregator.Adapters(), 4)
	assert.InDelta(t, 0.5, env.Upcoming.Ratio, 0.0001)
	assert.InDelta(t, 0.6, env.Classifier.Thresholds.TopTAShare, 0.0001)
}

func TestInitEnv_SQLiteStore(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "results.db")

	env, err := initEnv(context.Background(), c, "bulk", true)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	counts, err := env.Store.CountByTier(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestInitEnv_SkipsStoreWhenNotRequested(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "unused.db")

	env, err := initEnv(context.Background(), c, "bulk", false)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Store)
	_, statErr := os.Stat(c.Store.DatabaseURL)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInitEnv_SeedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yml")
	require.NoError(t, os.WriteFile(path, []byte("big_pharma:\n  - Acme Pharma\n"), 0o644))

	c := testConfig(t)
	c.Enrich.SeedFile = path

	env, err := initEnv(context.Background(), c, "enrich", false)
	require.NoError(t, err)
	defer env.Close()

	rec := env.Aggregator.SeedRecord("Acme Pharma")
	require.NotNil(t, rec.IsGlobalBigPharma)
	assert.True(t, *rec.IsGlobalBigPharma)
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Server.Port = 0

	_, err := initEnv(context.Background(), c, "serve", false)
	assert.Error(t, err)

	c = testConfig(t)
	c.Enrich.SeedFile = filepath.Join(t.TempDir(), "missing.yml")
	_, err = initEnv(context.Background(), c, "enrich", false)
	assert.Error(t, err)
}
