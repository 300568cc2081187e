package source

import (
	"time"

	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/resilience"
)

// Options configures the default adapter set.
type Options struct {
	Fetcher fetcher.Fetcher
	Metrics *monitoring.Metrics
	Timeout time.Duration

	// BreakerTrips is the consecutive-failure count that opens a source's
	// breaker. Zero (the default) disables breakers. An open breaker is
	// shared by every company, so results then depend on earlier calls.
	BreakerTrips int

	MarketCapBaseURL       string
	PharmaCompassPages     []string
	EdgarSearchURL         string
	ClinicalTrialsURL      string
	ClinicalTrialsPageSize int
}

// Default returns the guarded adapters in registration order. The order is
// the merge precedence: earlier adapters win ties on a field.
func Default(opts Options) []Adapter {
	guard := func(name string, fetch FetchFunc) Adapter {
		g := GuardOptions{Timeout: opts.Timeout, Metrics: opts.Metrics}
		if opts.BreakerTrips > 0 {
			cfg := resilience.DefaultBreakerConfig(name)
			cfg.Trips = uint32(opts.BreakerTrips)
			g.Breaker = resilience.NewBreaker(cfg)
		}
		return NewGuard(name, fetch, g)
	}

	return []Adapter{
		guard(NameMarketCap, NewMarketCap(opts.MarketCapBaseURL, opts.Fetcher).Fetch),
		guard(NamePharmaCompass, NewPharmaCompass(opts.PharmaCompassPages, opts.Fetcher).Fetch),
		guard(NameEdgar, NewEdgar(opts.EdgarSearchURL).Fetch),
		guard(NameClinicalTrials, NewClinicalTrials(opts.ClinicalTrialsURL, opts.ClinicalTrialsPageSize, opts.Fetcher).Fetch),
	}
}

// Names returns the adapter names in order.
func Names(adapters []Adapter) []string {
	out := make([]string, len(adapters))
	for i, a := range adapters {
		out[i] = a.Name()
	}
	return out
}
