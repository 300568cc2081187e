package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/catalog"
	"github.com/sells-group/pharma-enrich/internal/config"
	"github.com/sells-group/pharma-enrich/internal/enrich"
	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/job"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/seed"
	"github.com/sells-group/pharma-enrich/internal/source"
	"github.com/sells-group/pharma-enrich/internal/store"
	"github.com/sells-group/pharma-enrich/internal/tiering"
)

// appEnv holds the wired components shared by the commands.
type appEnv struct {
	Store      store.Store // nil when store.driver is "none"
	Metrics    *monitoring.Metrics
	Fetcher    *fetcher.HTTPFetcher
	Aggregator *enrich.Aggregator
	Classifier *tiering.Classifier
	Upcoming   tiering.UpcomingPolicy
	Runner     *job.Runner
	Loader     *catalog.Loader
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode and builds the fetcher, adapters,
// aggregator, classifier and bulk runner. The store is opened only when
// withStore is set. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string, withStore bool) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	seeds := seed.NewDefault()
	if c.Enrich.SeedFile != "" {
		s, err := seed.Load(c.Enrich.SeedFile)
		if err != nil {
			return nil, eris.Wrap(err, "load seed list")
		}
		seeds = s
	}

	metrics := monitoring.NewMetrics()
	timeout := time.Duration(c.Sources.TimeoutSecs) * time.Second

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Sources.UserAgent,
		Timeout:    timeout,
		MaxRetries: c.Sources.MaxRetries,
		RatePerSec: c.Sources.RatePerSec,
	})

	adapters := source.Default(source.Options{
		Fetcher:                f,
		Metrics:                metrics,
		Timeout:                timeout,
		BreakerTrips:           c.Sources.BreakerTrips,
		MarketCapBaseURL:       c.Sources.CompaniesMarketCapBaseURL,
		PharmaCompassPages:     c.Sources.PharmaCompassIndexPages,
		EdgarSearchURL:         c.Sources.EdgarSearchURL,
		ClinicalTrialsURL:      c.Sources.ClinicalTrialsAPIURL,
		ClinicalTrialsPageSize: c.Sources.ClinicalTrialsPageSize,
	})

	agg := enrich.New(adapters,
		enrich.WithParallel(c.Enrich.Parallel),
		enrich.WithSeed(seeds),
	)

	var st store.Store
	if withStore {
		var err error
		st, err = store.Open(ctx, c.Store)
		if err != nil {
			return nil, eris.Wrap(err, "open store")
		}
	}

	classifier, upcoming := tiering.FromConfig(c.Tiering)

	runner := job.NewRunner(agg, job.Options{
		Concurrency: c.Batch.MaxConcurrentCompanies,
		Classifier:  classifier,
		Upcoming:    &upcoming,
		Store:       st,
		Metrics:     metrics,
	})

	zap.L().Debug("environment ready",
		zap.String("mode", mode),
		zap.Strings("adapters", agg.Adapters()),
		zap.String("seed", seeds.Identifier()),
		zap.Bool("store", st != nil),
	)

	return &appEnv{
		Store:      st,
		Metrics:    metrics,
		Fetcher:    f,
		Aggregator: agg,
		Classifier: classifier,
		Upcoming:   upcoming,
		Runner:     runner,
		Loader:     catalog.NewLoader(f),
	}, nil
}
