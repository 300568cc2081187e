// Package enrich merges per-source fact records into one record per company.
package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/seed"
	"github.com/sells-group/pharma-enrich/internal/source"
)

// ErrEmptyName is returned for a blank company name.
var ErrEmptyName = eris.New("enrich: company name is required")

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParallel runs adapters concurrently. Merge order is unaffected.
func WithParallel(parallel bool) Option {
	return func(a *Aggregator) { a.parallel = parallel }
}

// WithSeed replaces the built-in seed set.
func WithSeed(s *seed.Set) Option {
	return func(a *Aggregator) { a.seeds = s }
}

// Aggregator runs the registered adapters for a company and merges their
// records: seed override first, then adapters in registration order, first
// non-null value per field wins.
type Aggregator struct {
	adapters []source.Adapter
	seeds    *seed.Set
	parallel bool
}

// New creates an Aggregator over adapters in the given order.
func New(adapters []source.Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters: adapters,
		seeds:    seed.NewDefault(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Adapters returns the registered adapter names in merge order.
func (a *Aggregator) Adapters() []string {
	return source.Names(a.adapters)
}

// Enrich is EnrichCompany with the name checked first.
func (a *Aggregator) Enrich(ctx context.Context, companyName string) (model.FactRecord, error) {
	if strings.TrimSpace(companyName) == "" {
		return model.NewFactRecord(), ErrEmptyName
	}
	return a.EnrichCompany(ctx, companyName), nil
}

// EnrichCompany returns the merged record for companyName. It never fails;
// a company no source knows yields an empty record.
func (a *Aggregator) EnrichCompany(ctx context.Context, companyName string) model.FactRecord {
	if strings.TrimSpace(companyName) == "" {
		zap.L().Warn("enrich: blank company name, skipping sources")
		return model.NewFactRecord()
	}

	records := make([]model.FactRecord, 0, len(a.adapters)+1)
	records = append(records, a.SeedRecord(companyName))
	records = append(records, a.run(ctx, companyName)...)

	merged := Merge(records...)
	zap.L().Debug("enrich: merged sources",
		zap.String("company", companyName),
		zap.Int("adapters", len(a.adapters)),
		zap.Int("fields", len(merged.SetFields())),
	)
	return merged
}

// run invokes every adapter and returns their records indexed by
// registration order.
func (a *Aggregator) run(ctx context.Context, companyName string) []model.FactRecord {
	results := make([]model.FactRecord, len(a.adapters))
	if !a.parallel {
		for i, ad := range a.adapters {
			results[i] = ad.Enrich(ctx, companyName)
		}
		return results
	}

	var g errgroup.Group
	for i, ad := range a.adapters {
		g.Go(func() error {
			results[i] = ad.Enrich(ctx, companyName)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SeedRecord returns the override record for companyName: is_global_big_pharma
// set to true for seed members, empty otherwise.
func (a *Aggregator) SeedRecord(companyName string) model.FactRecord {
	rec := model.NewFactRecord()
	if !a.seeds.Contains(companyName) {
		return rec
	}
	_ = rec.Set(model.FieldIsGlobalBigPharma, true, model.Provenance{
		SourceURL: a.seeds.Identifier(),
		AsOf:      model.AsOfSeed,
		Method:    model.MethodOverride,
		Notes:     seed.Notes,
	})
	return rec
}

// Merge folds records left to right. A field is taken from the first record
// that holds a value for it, together with that record's provenance entry.
// Audit-only provenance never resolves a field and is not carried over.
func Merge(records ...model.FactRecord) model.FactRecord {
	out := model.NewFactRecord()
	for i := range records {
		rec := &records[i]
		for _, f := range model.Fields {
			if out.IsSet(f) || !rec.IsSet(f) {
				continue
			}
			prov, hasProv := rec.Provenance[f]
			if err := out.Set(f, rec.Value(f), prov); err != nil {
				zap.L().Warn("enrich: dropping invalid field", zap.String("field", string(f)), zap.Error(err))
				continue
			}
			if !hasProv {
				delete(out.Provenance, f)
			}
		}
	}
	return out
}
