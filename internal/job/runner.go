// Package job runs bulk enrichment and tiering over a list of companies.
package job

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/store"
	"github.com/sells-group/pharma-enrich/internal/tiering"
)

// DefaultConcurrency is the number of companies processed at once.
const DefaultConcurrency = 5

// Enricher produces the merged fact record for a company.
type Enricher interface {
	EnrichCompany(ctx context.Context, companyName string) model.FactRecord
}

// Options configures a Runner. Zero values fall back to defaults; Store and
// Metrics are optional.
type Options struct {
	Concurrency int
	Classifier  *tiering.Classifier
	Upcoming    *tiering.UpcomingPolicy
	Deriver     *tiering.Deriver
	Store       store.Store
	Metrics     *monitoring.Metrics
	NewRunID    func() string
}

// Runner enriches, derives and tiers companies in bulk.
type Runner struct {
	enricher    Enricher
	concurrency int
	classifier  *tiering.Classifier
	upcoming    tiering.UpcomingPolicy
	deriver     *tiering.Deriver
	store       store.Store
	metrics     *monitoring.Metrics
	newRunID    func() string
}

// NewRunner creates a Runner around enricher.
func NewRunner(enricher Enricher, opts Options) *Runner {
	r := &Runner{
		enricher:    enricher,
		concurrency: opts.Concurrency,
		classifier:  opts.Classifier,
		upcoming:    tiering.DefaultUpcomingPolicy(),
		deriver:     opts.Deriver,
		store:       opts.Store,
		metrics:     opts.Metrics,
		newRunID:    opts.NewRunID,
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.classifier == nil {
		r.classifier = tiering.NewClassifier(tiering.DefaultThresholds())
	}
	if opts.Upcoming != nil {
		r.upcoming = *opts.Upcoming
	}
	if r.deriver == nil {
		r.deriver = tiering.NewDeriver()
	}
	if r.newRunID == nil {
		r.newRunID = uuid.NewString
	}
	return r
}

// Run processes companies concurrently and returns one result per company in
// input order. Products are looked up by canonical name; a company with no
// entry has an empty catalog. When a store is configured the results are
// upserted after all companies finish.
func (r *Runner) Run(ctx context.Context, companies []model.Company, productsByName map[string][]model.Product) ([]model.BulkResult, error) {
	start := time.Now()
	runID := r.newRunID()
	log := zap.L().With(zap.String("run_id", runID))

	for i, c := range companies {
		if strings.TrimSpace(c.CanonicalName) == "" {
			r.metrics.ObserveBulk("invalid", time.Since(start))
			return nil, eris.Errorf("job: company %d (id %q) has an empty canonical name", i, c.ID)
		}
	}

	log.Info("bulk run starting",
		zap.Int("companies", len(companies)),
		zap.Int("concurrency", r.concurrency),
	)

	results := make([]model.BulkResult, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, c := range companies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.process(gctx, c, productsByName[c.CanonicalName])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.metrics.ObserveBulk("canceled", time.Since(start))
		return nil, eris.Wrap(err, "job: bulk run")
	}

	if r.store != nil {
		if err := r.store.SaveResults(ctx, runID, results); err != nil {
			r.metrics.ObserveBulk("error", time.Since(start))
			return results, eris.Wrap(err, "job: save results")
		}
	}

	r.metrics.ObserveBulk("ok", time.Since(start))
	log.Info("bulk run complete",
		zap.Int("companies", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

// Process enriches and tiers a single company.
func (r *Runner) Process(ctx context.Context, company model.Company, products []model.Product) (model.BulkResult, error) {
	if strings.TrimSpace(company.CanonicalName) == "" {
		return model.BulkResult{}, eris.New("job: empty canonical name")
	}
	return r.process(ctx, company, products), nil
}

func (r *Runner) process(ctx context.Context, company model.Company, products []model.Product) model.BulkResult {
	enr := r.enricher.EnrichCompany(ctx, company.CanonicalName)
	derived := r.deriver.Derive(products)
	upcoming := r.upcoming.Estimate(enr)
	modality := tiering.ModalityShare(products)

	tier := r.classifier.Assign(company.CanonicalName, enr, derived, upcoming, modality)
	r.metrics.ObserveTier(tier)

	zap.L().Debug("company tiered",
		zap.String("company", company.CanonicalName),
		zap.String("tier", string(tier)),
		zap.Int("fields", len(enr.SetFields())),
	)

	return model.BulkResult{
		CompanyID:     company.ID,
		CanonicalName: company.CanonicalName,
		Enrichment:    enr,
		Derived:       derived,
		NumUpcoming:   upcoming,
		AssignedTier:  tier,
	}
}
