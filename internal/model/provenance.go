package model

import "time"

// Method describes how a fact value was obtained.
type Method string

const (
	MethodScrape    Method = "scrape"
	MethodAPI       Method = "api"
	MethodInference Method = "inference"
	MethodReference Method = "reference"
	MethodOverride  Method = "override"
)

// AsOfSeed marks provenance that comes from the static seed list rather than
// a timestamped lookup.
const AsOfSeed = "seed"

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodScrape, MethodAPI, MethodInference, MethodReference, MethodOverride:
		return true
	default:
		return false
	}
}

// Provenance records where, how and when a single field value was obtained.
type Provenance struct {
	SourceURL string `json:"source_url"`
	AsOf      string `json:"as_of"`
	Method    Method `json:"method"`
	Notes     string `json:"notes,omitempty"`
}

// NewProvenance builds a timestamped provenance entry. AsOf is formatted as
// RFC 3339 in UTC.
func NewProvenance(sourceURL string, method Method, asOf time.Time, notes string) Provenance {
	return Provenance{
		SourceURL: sourceURL,
		AsOf:      asOf.UTC().Format(time.RFC3339),
		Method:    method,
		Notes:     notes,
	}
}

// IsSeed reports whether this entry came from the static seed override.
func (p Provenance) IsSeed() bool {
	return p.AsOf == AsOfSeed
}

// toMap returns the mapping form used in bulk payloads. Empty notes map to nil.
func (p Provenance) toMap() map[string]any {
	var notes any
	if p.Notes != "" {
		notes = p.Notes
	}
	return map[string]any{
		"source_url": p.SourceURL,
		"as_of":      p.AsOf,
		"method":     string(p.Method),
		"notes":      notes,
	}
}

func provenanceFromMap(m map[string]any) Provenance {
	str := func(key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	return Provenance{
		SourceURL: str("source_url"),
		AsOf:      str("as_of"),
		Method:    Method(str("method")),
		Notes:     str("notes"),
	}
}
