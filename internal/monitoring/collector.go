package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// Snapshot is a point-in-time view of persisted results.
type Snapshot struct {
	Total       int                `json:"total"`
	ByTier      map[model.Tier]int `json:"by_tier"`
	CollectedAt time.Time          `json:"collected_at"`
}

// TierCounter abstracts the store query the collector needs.
type TierCounter interface {
	CountByTier(ctx context.Context) (map[model.Tier]int, error)
}

// Collector gathers result counts from the store and publishes them as gauges.
type Collector struct {
	store   TierCounter
	metrics *Metrics
}

// NewCollector creates a new snapshot collector.
func NewCollector(st TierCounter, m *Metrics) *Collector {
	return &Collector{store: st, metrics: m}
}

// Collect queries the store, refreshes the stored-results gauge and returns the snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.store.CountByTier(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count by tier")
	}

	snap := &Snapshot{
		ByTier:      make(map[model.Tier]int, len(counts)),
		CollectedAt: time.Now().UTC(),
	}
	for tier, n := range counts {
		snap.ByTier[tier] = n
		snap.Total += n
	}

	c.metrics.SetStoredResults(snap.ByTier)
	return snap, nil
}
