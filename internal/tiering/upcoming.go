package tiering

import (
	"math"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// DefaultUpcomingRatio is the share of late-stage assets assumed to launch soon.
const DefaultUpcomingRatio = 0.3

// UpcomingPolicy estimates the number of upcoming launches from the
// late-stage pipeline. The ratio is a heuristic, not a measured rate.
type UpcomingPolicy struct {
	Ratio float64
}

// DefaultUpcomingPolicy returns the policy with DefaultUpcomingRatio.
func DefaultUpcomingPolicy() UpcomingPolicy {
	return UpcomingPolicy{Ratio: DefaultUpcomingRatio}
}

// Estimate returns floor(late_stage * ratio) when the enrichment reports a
// positive late-stage count, and nil otherwise.
func (p UpcomingPolicy) Estimate(enr model.FactRecord) *int {
	if enr.LateStageAssetsCount == nil || *enr.LateStageAssetsCount <= 0 {
		return nil
	}
	n := int(math.Floor(float64(*enr.LateStageAssetsCount) * p.Ratio))
	return &n
}
