package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvenance_FormatsUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2025, 6, 15, 7, 0, 0, 0, loc)

	p := NewProvenance("https://clinicaltrials.gov/api/v2/studies?query.spons=Acme", MethodAPI, at, "Phase 3/4 count (approx)")

	assert.Equal(t, "2025-06-15T12:00:00Z", p.AsOf)
	assert.Equal(t, MethodAPI, p.Method)
	assert.False(t, p.IsSeed())
}

func TestProvenance_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	p := Provenance{
		SourceURL: "seed_big_pharma.yml",
		AsOf:      AsOfSeed,
		Method:    MethodOverride,
		Notes:     "Seeded Tier 1 list",
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Provenance
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p, decoded)
	assert.True(t, decoded.IsSeed())
}

func TestProvenance_EmptyNotesOmitted(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Provenance{SourceURL: "u", AsOf: "seed", Method: MethodReference})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "notes")
}

func TestMethod_Valid(t *testing.T) {
	t.Parallel()

	for _, m := range []Method{MethodScrape, MethodAPI, MethodInference, MethodReference, MethodOverride} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Method("guess").Valid())
	assert.False(t, Method("").Valid())
}
