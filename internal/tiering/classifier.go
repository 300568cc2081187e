package tiering

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/config"
	"github.com/sells-group/pharma-enrich/internal/model"
)

// Thresholds parameterise the classifier rules.
type Thresholds struct {
	TopTAShare    float64 `json:"top_ta_share"`
	PlatformShare float64 `json:"platform_share"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{TopTAShare: 0.60, PlatformShare: 0.70}
}

// Classifier assigns tiers with an ordered rule chain; the first rule that
// matches wins.
type Classifier struct {
	Thresholds Thresholds
}

// NewClassifier returns a classifier with the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{Thresholds: t}
}

// FromConfig builds the classifier and upcoming policy from configuration.
func FromConfig(cfg config.TieringConfig) (*Classifier, UpcomingPolicy) {
	c := NewClassifier(Thresholds{
		TopTAShare:    cfg.TopTAShareThreshold,
		PlatformShare: cfg.PlatformShareThreshold,
	})
	return c, UpcomingPolicy{Ratio: cfg.UpcomingRatio}
}

// Assign returns the tier for a company. numUpcoming and
// primaryModalityShare are optional. Negative feature counts panic.
func (c *Classifier) Assign(name string, enr model.FactRecord, derived model.DerivedFeatures, numUpcoming *int, primaryModalityShare *float64) model.Tier {
	mustValid(derived)

	t := DefaultThresholds()
	if c != nil {
		t = c.Thresholds
	}

	tier := model.TierUnclassified
	switch {
	case enr.IsGlobalBigPharma != nil && *enr.IsGlobalBigPharma:
		tier = model.TierOne
	case derived.TopTAShare != nil && *derived.TopTAShare >= t.TopTAShare &&
		(derived.NumProducts >= 2 || derived.NumLaunchesRecent >= 1):
		tier = model.TierTASpecialists
	case derived.NumProducts == 0 && numUpcoming != nil && *numUpcoming > 0:
		tier = model.TierFirstLaunchers
	case primaryModalityShare != nil && *primaryModalityShare >= t.PlatformShare:
		tier = model.TierPlatformBuilders
	case derived.NumProducts >= 1 || derived.NumLaunchesRecent >= 1:
		tier = model.TierMid
	}

	zap.L().Debug("tiering: assigned",
		zap.String("company", name),
		zap.String("tier", string(tier)),
	)
	return tier
}

func mustValid(d model.DerivedFeatures) {
	if d.NumProducts < 0 || d.NumLaunchesRecent < 0 {
		panic(fmt.Sprintf("tiering: negative feature counts (num_products=%d, num_launches_recent=%d)",
			d.NumProducts, d.NumLaunchesRecent))
	}
}
