package tiering

import (
	"strings"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// ModalityShare returns the share of the most common modality among products
// that carry one, or nil when none do. Modalities compare case-insensitively.
func ModalityShare(products []model.Product) *float64 {
	counts := make(map[string]int)
	tagged, best := 0, 0
	for _, p := range products {
		if p.Modality == nil {
			continue
		}
		m := strings.ToLower(strings.TrimSpace(*p.Modality))
		if m == "" {
			continue
		}
		counts[m]++
		tagged++
		if counts[m] > best {
			best = counts[m]
		}
	}
	if tagged == 0 {
		return nil
	}
	return model.Ptr(float64(best) / float64(tagged))
}
