package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pharma-enrich/internal/model"
)

type fakeCounter struct {
	counts map[model.Tier]int
	err    error
}

func (f *fakeCounter) CountByTier(context.Context) (map[model.Tier]int, error) {
	return f.counts, f.err
}

func TestCollector_Collect(t *testing.T) {
	m := NewMetrics()
	c := NewCollector(&fakeCounter{counts: map[model.Tier]int{
		model.TierOne: 3,
		model.TierMid: 2,
	}}, m)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 3, snap.ByTier[model.TierOne])
	assert.False(t, snap.CollectedAt.IsZero())

	assert.InDelta(t, 3, testutil.ToFloat64(m.storedResults.WithLabelValues("TIER_1")), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(m.storedResults.WithLabelValues("UNCLASSIFIED")), 0.001)
}

func TestCollector_StoreError(t *testing.T) {
	c := NewCollector(&fakeCounter{err: errors.New("db down")}, nil)

	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count by tier")
}
