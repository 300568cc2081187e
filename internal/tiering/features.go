// Package tiering derives catalog features for a company and assigns it to
// one of the business tiers.
package tiering

import (
	"strings"
	"time"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// RecentLaunchWindow is how many years back a launch still counts as recent.
const RecentLaunchWindow = 5

// ComputeFeatures derives catalog features from a company's products.
//
// Only products with a non-empty TA take part in the TA share. The top TA is
// the one with the strictly highest count; ties go to the TA encountered
// first in input order.
func ComputeFeatures(products []model.Product, now time.Time) model.DerivedFeatures {
	var d model.DerivedFeatures

	counts := make(map[string]int)
	var order []string
	tagged := 0
	cutoff := now.Year() - RecentLaunchWindow

	for _, p := range products {
		if p.TA != nil && strings.TrimSpace(*p.TA) != "" {
			ta := *p.TA
			if _, seen := counts[ta]; !seen {
				order = append(order, ta)
			}
			counts[ta]++
			tagged++
		}
		if p.IsMarketed {
			d.NumProducts++
		}
		if p.LaunchYear != nil && *p.LaunchYear >= cutoff {
			d.NumLaunchesRecent++
		}
	}

	if tagged == 0 {
		return d
	}

	top, best := "", 0
	for _, ta := range order {
		if counts[ta] > best {
			top, best = ta, counts[ta]
		}
	}
	d.TopTA = model.Ptr(top)
	d.TopTAShare = model.Ptr(float64(best) / float64(tagged))
	return d
}

// Deriver computes features against an injectable clock.
type Deriver struct {
	Now func() time.Time
}

// NewDeriver returns a Deriver on the wall clock.
func NewDeriver() *Deriver {
	return &Deriver{Now: time.Now}
}

// Derive computes features for products as of the deriver's clock.
func (d *Deriver) Derive(products []model.Product) model.DerivedFeatures {
	now := time.Now
	if d != nil && d.Now != nil {
		now = d.Now
	}
	return ComputeFeatures(products, now())
}
