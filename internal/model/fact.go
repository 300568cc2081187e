package model

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
)

// Field names one of the seven enrichable facts. The string value doubles as
// the JSON and mapping key.
type Field string

const (
	FieldAnnualRevenueUSD      Field = "annual_revenue_usd"
	FieldMarketedProductsCount Field = "marketed_products_count"
	FieldLaunchesLast5Y        Field = "launches_last_5y"
	FieldLateStageAssetsCount  Field = "late_stage_assets_count"
	FieldTopTA                 Field = "top_ta"
	FieldTopTAShare            Field = "top_ta_share"
	FieldIsGlobalBigPharma     Field = "is_global_big_pharma"
)

// Fields is the canonical field order used for merging and serialization.
var Fields = []Field{
	FieldAnnualRevenueUSD,
	FieldMarketedProductsCount,
	FieldLaunchesLast5Y,
	FieldLateStageAssetsCount,
	FieldTopTA,
	FieldTopTAShare,
	FieldIsGlobalBigPharma,
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, k := range Fields {
		if k == f {
			return true
		}
	}
	return false
}

// FactRecord holds the public facts known about one company. A nil pointer
// means the fact is unknown.
//
// Provenance is keyed per field. An entry may exist for a field whose value is
// nil; that entry is an audit trail of what was searched and does not resolve
// the field.
type FactRecord struct {
	AnnualRevenueUSD      *float64 `json:"annual_revenue_usd"`
	MarketedProductsCount *int     `json:"marketed_products_count"`
	LaunchesLast5Y        *int     `json:"launches_last_5y"`
	LateStageAssetsCount  *int     `json:"late_stage_assets_count"`
	TopTA                 *string  `json:"top_ta"`
	TopTAShare            *float64 `json:"top_ta_share"`
	IsGlobalBigPharma     *bool    `json:"is_global_big_pharma"`

	Provenance map[Field]Provenance `json:"provenance"`
}

// NewFactRecord returns an empty record with an initialized provenance map.
func NewFactRecord() FactRecord {
	return FactRecord{Provenance: make(map[Field]Provenance)}
}

// Value returns the dereferenced value for f, or nil when unset.
func (r FactRecord) Value(f Field) any {
	switch f {
	case FieldAnnualRevenueUSD:
		if r.AnnualRevenueUSD != nil {
			return *r.AnnualRevenueUSD
		}
	case FieldMarketedProductsCount:
		if r.MarketedProductsCount != nil {
			return *r.MarketedProductsCount
		}
	case FieldLaunchesLast5Y:
		if r.LaunchesLast5Y != nil {
			return *r.LaunchesLast5Y
		}
	case FieldLateStageAssetsCount:
		if r.LateStageAssetsCount != nil {
			return *r.LateStageAssetsCount
		}
	case FieldTopTA:
		if r.TopTA != nil {
			return *r.TopTA
		}
	case FieldTopTAShare:
		if r.TopTAShare != nil {
			return *r.TopTAShare
		}
	case FieldIsGlobalBigPharma:
		if r.IsGlobalBigPharma != nil {
			return *r.IsGlobalBigPharma
		}
	}
	return nil
}

// IsSet reports whether f holds a value.
func (r FactRecord) IsSet(f Field) bool {
	return r.Value(f) != nil
}

// SetFields returns the fields holding a value, in canonical order.
func (r FactRecord) SetFields() []Field {
	var out []Field
	for _, f := range Fields {
		if r.IsSet(f) {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether the record has no values and no provenance.
func (r FactRecord) IsEmpty() bool {
	return len(r.SetFields()) == 0 && len(r.Provenance) == 0
}

// Set stores v for f together with its provenance. A nil v records an
// audit-only provenance entry and clears any existing value. Numeric values
// are coerced to the field's type; values outside the field's domain are
// rejected.
func (r *FactRecord) Set(f Field, v any, prov Provenance) error {
	if err := r.setValue(f, v); err != nil {
		return err
	}
	if r.Provenance == nil {
		r.Provenance = make(map[Field]Provenance)
	}
	r.Provenance[f] = prov
	return nil
}

// Audit records provenance for f without a value.
func (r *FactRecord) Audit(f Field, prov Provenance) error {
	return r.Set(f, nil, prov)
}

func (r *FactRecord) setValue(f Field, v any) error {
	if v == nil {
		return r.clear(f)
	}
	switch f {
	case FieldAnnualRevenueUSD:
		x, err := toFloat(v)
		if err != nil {
			return eris.Wrapf(err, "model: field %s", f)
		}
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return eris.Errorf("model: field %s: invalid revenue %v", f, x)
		}
		r.AnnualRevenueUSD = &x
	case FieldMarketedProductsCount, FieldLaunchesLast5Y, FieldLateStageAssetsCount:
		n, err := toInt(v)
		if err != nil {
			return eris.Wrapf(err, "model: field %s", f)
		}
		if n < 0 {
			return eris.Errorf("model: field %s: negative count %d", f, n)
		}
		switch f {
		case FieldMarketedProductsCount:
			r.MarketedProductsCount = &n
		case FieldLaunchesLast5Y:
			r.LaunchesLast5Y = &n
		default:
			r.LateStageAssetsCount = &n
		}
	case FieldTopTA:
		s, ok := v.(string)
		if !ok {
			return eris.Errorf("model: field %s: expected string, got %T", f, v)
		}
		r.TopTA = &s
	case FieldTopTAShare:
		x, err := toFloat(v)
		if err != nil {
			return eris.Wrapf(err, "model: field %s", f)
		}
		if x < 0 || x > 1 || math.IsNaN(x) {
			return eris.Errorf("model: field %s: share %v outside [0,1]", f, x)
		}
		r.TopTAShare = &x
	case FieldIsGlobalBigPharma:
		b, ok := v.(bool)
		if !ok {
			return eris.Errorf("model: field %s: expected bool, got %T", f, v)
		}
		r.IsGlobalBigPharma = &b
	default:
		return eris.Errorf("model: unknown field %q", f)
	}
	return nil
}

func (r *FactRecord) clear(f Field) error {
	switch f {
	case FieldAnnualRevenueUSD:
		r.AnnualRevenueUSD = nil
	case FieldMarketedProductsCount:
		r.MarketedProductsCount = nil
	case FieldLaunchesLast5Y:
		r.LaunchesLast5Y = nil
	case FieldLateStageAssetsCount:
		r.LateStageAssetsCount = nil
	case FieldTopTA:
		r.TopTA = nil
	case FieldTopTAShare:
		r.TopTAShare = nil
	case FieldIsGlobalBigPharma:
		r.IsGlobalBigPharma = nil
	default:
		return eris.Errorf("model: unknown field %q", f)
	}
	return nil
}

// Validate checks every set field against its domain.
func (r FactRecord) Validate() error {
	var scratch FactRecord
	for _, f := range Fields {
		if v := r.Value(f); v != nil {
			if err := scratch.setValue(f, v); err != nil {
				return err
			}
		}
	}
	for f := range r.Provenance {
		if !f.Valid() {
			return eris.Errorf("model: provenance for unknown field %q", f)
		}
	}
	return nil
}

// Clone returns a deep copy of r.
func (r FactRecord) Clone() FactRecord {
	out := NewFactRecord()
	for _, f := range Fields {
		if v := r.Value(f); v != nil {
			_ = out.setValue(f, v)
		}
	}
	for f, p := range r.Provenance {
		out.Provenance[f] = p
	}
	return out
}

// ToMap returns the mapping form of the record used in bulk payloads: every
// field key is present (nil when unknown) plus a "provenance" mapping.
func (r FactRecord) ToMap() map[string]any {
	m := make(map[string]any, len(Fields)+1)
	for _, f := range Fields {
		m[string(f)] = r.Value(f)
	}
	prov := make(map[string]any, len(r.Provenance))
	for f, p := range r.Provenance {
		prov[string(f)] = p.toMap()
	}
	m["provenance"] = prov
	return m
}

// FactRecordFromMap parses the mapping form produced by ToMap, or the same
// shape after a JSON round trip.
func FactRecordFromMap(m map[string]any) (FactRecord, error) {
	r := NewFactRecord()
	for _, f := range Fields {
		v, ok := m[string(f)]
		if !ok || v == nil {
			continue
		}
		if err := r.setValue(f, v); err != nil {
			return FactRecord{}, err
		}
	}

	switch prov := m["provenance"].(type) {
	case nil:
	case map[string]any:
		for k, raw := range prov {
			f := Field(k)
			if !f.Valid() {
				return FactRecord{}, eris.Errorf("model: provenance for unknown field %q", k)
			}
			switch p := raw.(type) {
			case map[string]any:
				r.Provenance[f] = provenanceFromMap(p)
			case Provenance:
				r.Provenance[f] = p
			default:
				return FactRecord{}, eris.Errorf("model: provenance %s: unexpected %T", k, raw)
			}
		}
	case map[Field]Provenance:
		for f, p := range prov {
			r.Provenance[f] = p
		}
	default:
		return FactRecord{}, eris.Errorf("model: provenance: unexpected %T", prov)
	}
	return r, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, eris.Wrap(err, "parse number")
		}
		return f, nil
	default:
		return 0, eris.Errorf("expected number, got %T", v)
	}
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, eris.Errorf("expected integer, got %v", x)
		}
		return int(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, eris.Wrap(err, "parse integer")
		}
		return int(n), nil
	default:
		return 0, eris.Errorf("expected integer, got %T", v)
	}
}
