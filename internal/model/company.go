package model

// Company identifies a company to be enriched. CanonicalName is the join key
// into every source adapter and into the product catalog.
type Company struct {
	ID            string `json:"id"`
	CanonicalName string `json:"canonical_name"`
}

// Product is one entry of a company's own product catalog.
type Product struct {
	Name       string  `json:"name,omitempty"`
	TA         *string `json:"ta,omitempty"`
	LaunchYear *int    `json:"launch_year,omitempty"`
	IsMarketed bool    `json:"is_marketed"`
	Modality   *string `json:"modality,omitempty"`
}

// DerivedFeatures are computed from a company's product catalog. They are
// never persisted as facts.
type DerivedFeatures struct {
	TopTA             *string  `json:"top_ta"`
	TopTAShare        *float64 `json:"top_ta_share"`
	NumProducts       int      `json:"num_products"`
	NumLaunchesRecent int      `json:"num_launches_recent"`
}

// ToMap returns the mapping form used in bulk payloads.
func (d DerivedFeatures) ToMap() map[string]any {
	m := map[string]any{
		"top_ta":              nil,
		"top_ta_share":        nil,
		"num_products":        d.NumProducts,
		"num_launches_recent": d.NumLaunchesRecent,
	}
	if d.TopTA != nil {
		m["top_ta"] = *d.TopTA
	}
	if d.TopTAShare != nil {
		m["top_ta_share"] = *d.TopTAShare
	}
	return m
}

// BulkResult is the per-company payload produced by the bulk enrichment job.
type BulkResult struct {
	CompanyID     string          `json:"company_id"`
	CanonicalName string          `json:"canonical_name"`
	Enrichment    FactRecord      `json:"enrichment"`
	Derived       DerivedFeatures `json:"derived"`
	NumUpcoming   *int            `json:"num_upcoming,omitempty"`
	AssignedTier  Tier            `json:"assigned_tier"`
}

// ToMap returns the bulk payload in mapping form.
func (b BulkResult) ToMap() map[string]any {
	m := map[string]any{
		"company_id":     b.CompanyID,
		"canonical_name": b.CanonicalName,
		"enrichment":     b.Enrichment.ToMap(),
		"derived":        b.Derived.ToMap(),
		"assigned_tier":  string(b.AssignedTier),
	}
	if b.NumUpcoming != nil {
		m["num_upcoming"] = *b.NumUpcoming
	}
	return m
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
