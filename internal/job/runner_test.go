package job

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pharma-enrich/internal/enrich"
	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/store"
	"github.com/sells-group/pharma-enrich/internal/tiering"
)

type stubEnricher struct {
	records map[string]model.FactRecord
	delay   time.Duration
	calls   atomic.Int32
}

func (s *stubEnricher) EnrichCompany(ctx context.Context, name string) model.FactRecord {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	if rec, ok := s.records[name]; ok {
		return rec.Clone()
	}
	return model.NewFactRecord()
}

func lateStage(n int) model.FactRecord {
	rec := model.NewFactRecord()
	rec.LateStageAssetsCount = model.Ptr(n)
	rec.Provenance[model.FieldLateStageAssetsCount] = model.Provenance{SourceURL: "https://clinicaltrials.gov", Method: model.MethodAPI}
	return rec
}

func fixedDeriver() *tiering.Deriver {
	return &tiering.Deriver{Now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }}
}

func TestRun_TiersEveryCompanyInOrder(t *testing.T) {
	// The real aggregator with no adapters supplies the seed override.
	agg := enrich.New(nil)
	enr := &seededEnricher{agg: agg, extra: map[string]model.FactRecord{"Pipeline Bio": lateStage(10)}}

	r := NewRunner(enr, Options{Concurrency: 2, Deriver: fixedDeriver()})

	companies := []model.Company{
		{ID: "1", CanonicalName: "Pfizer"},
		{ID: "2", CanonicalName: "Onco Co"},
		{ID: "3", CanonicalName: "Pipeline Bio"},
		{ID: "4", CanonicalName: "Cardio Co"},
		{ID: "5", CanonicalName: "Nobody"},
		{ID: "6", CanonicalName: "Platform Inc"},
	}
	products := map[string][]model.Product{
		"Onco Co": {
			{Name: "a", TA: model.Ptr("Oncology"), LaunchYear: model.Ptr(2025), IsMarketed: true},
			{Name: "b", TA: model.Ptr("Oncology"), LaunchYear: model.Ptr(2024), IsMarketed: true},
		},
		"Cardio Co": {
			{Name: "c", TA: model.Ptr("Cardio"), LaunchYear: model.Ptr(2019), IsMarketed: true},
		},
		"Platform Inc": {
			{Name: "d", TA: model.Ptr("Oncology"), IsMarketed: true, Modality: model.Ptr("mRNA")},
			{Name: "e", TA: model.Ptr("Vaccines"), IsMarketed: false, Modality: model.Ptr("mRNA")},
			{Name: "f", TA: model.Ptr("Rare"), IsMarketed: false, Modality: model.Ptr("mRNA")},
		},
	}

	results, err := r.Run(context.Background(), companies, products)
	require.NoError(t, err)
	require.Len(t, results, len(companies))

	want := []model.Tier{
		model.TierOne,
		model.TierTASpecialists,
		model.TierFirstLaunchers,
		model.TierMid,
		model.TierUnclassified,
		model.TierPlatformBuilders,
	}
	for i, res := range results {
		assert.Equal(t, companies[i].ID, res.CompanyID)
		assert.Equal(t, companies[i].CanonicalName, res.CanonicalName)
		assert.Equal(t, want[i], res.AssignedTier, res.CanonicalName)
	}

	require.NotNil(t, results[2].NumUpcoming)
	assert.Equal(t, 3, *results[2].NumUpcoming)
	assert.Nil(t, results[0].NumUpcoming)
	assert.Equal(t, 0, results[3].Derived.NumLaunchesRecent)

	p := results[0].Enrichment.Provenance[model.FieldIsGlobalBigPharma]
	assert.Equal(t, model.AsOfSeed, p.AsOf)
}

// seededEnricher layers canned records under the aggregator's seed override.
type seededEnricher struct {
	agg   *enrich.Aggregator
	extra map[string]model.FactRecord
}

func (s *seededEnricher) EnrichCompany(ctx context.Context, name string) model.FactRecord {
	base := s.agg.EnrichCompany(ctx, name)
	if rec, ok := s.extra[name]; ok {
		return enrich.Merge(base, rec)
	}
	return base
}

func TestRun_CustomUpcomingPolicy(t *testing.T) {
	enr := &stubEnricher{records: map[string]model.FactRecord{"Bio": lateStage(2)}}

	def, err := NewRunner(enr, Options{}).Run(context.Background(), []model.Company{{ID: "1", CanonicalName: "Bio"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.TierUnclassified, def[0].AssignedTier)
	assert.Equal(t, 0, *def[0].NumUpcoming)

	policy := tiering.UpcomingPolicy{Ratio: 0.5}
	custom, err := NewRunner(enr, Options{Upcoming: &policy}).Run(context.Background(), []model.Company{{ID: "1", CanonicalName: "Bio"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.TierFirstLaunchers, custom[0].AssignedTier)
}

func TestRun_Empty(t *testing.T) {
	r := NewRunner(&stubEnricher{}, Options{})
	results, err := r.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_RejectsEmptyName(t *testing.T) {
	enr := &stubEnricher{}
	r := NewRunner(enr, Options{})

	_, err := r.Run(context.Background(), []model.Company{{ID: "1", CanonicalName: "Acme"}, {ID: "2", CanonicalName: " "}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty canonical name")
	assert.Zero(t, enr.calls.Load())
}

func TestRun_Canceled(t *testing.T) {
	enr := &stubEnricher{delay: 50 * time.Millisecond}
	r := NewRunner(enr, Options{Concurrency: 1})

	companies := make([]model.Company, 20)
	for i := range companies {
		companies[i] = model.Company{ID: fmt.Sprint(i), CanonicalName: fmt.Sprintf("Company %d", i)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, companies, nil)
	require.Error(t, err)
	assert.Less(t, int(enr.calls.Load()), len(companies))
}

func TestRun_SavesToStore(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "job.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	m := monitoring.NewMetrics()
	r := NewRunner(&stubEnricher{}, Options{
		Store:    st,
		Metrics:  m,
		NewRunID: func() string { return "run-fixed" },
		Deriver:  fixedDeriver(),
	})

	companies := []model.Company{{ID: "a", CanonicalName: "Acme"}, {ID: "b", CanonicalName: "Beta"}}
	products := map[string][]model.Product{"Acme": {{Name: "x", IsMarketed: true}}}

	results, err := r.Run(context.Background(), companies, products)
	require.NoError(t, err)

	got, err := st.GetResult(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "run-fixed", got.RunID)
	assert.Equal(t, results[0], got.Result)

	counts, err := st.CountByTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[model.Tier]int{model.TierMid: 1, model.TierUnclassified: 1}, counts)

	n, err := testutil.GatherAndCount(m.Registry(), "pharma_enrich_companies_tiered_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(m.Registry(), "pharma_enrich_bulk_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcess(t *testing.T) {
	r := NewRunner(&stubEnricher{}, Options{Deriver: fixedDeriver()})

	res, err := r.Process(context.Background(), model.Company{ID: "1", CanonicalName: "Acme"}, []model.Product{{Name: "x", IsMarketed: true}})
	require.NoError(t, err)
	assert.Equal(t, model.TierMid, res.AssignedTier)
	assert.Equal(t, 1, res.Derived.NumProducts)

	_, err = r.Process(context.Background(), model.Company{ID: "2"}, nil)
	assert.Error(t, err)
}
