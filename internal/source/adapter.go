// Package source implements the public-data adapters that each contribute a
// partial, provenance-tagged FactRecord for a company.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/resilience"
)

// DefaultTimeout bounds a single adapter call.
const DefaultTimeout = 30 * time.Second

// Adapter looks up facts about a company in one external source. Enrich
// never fails: any problem yields an empty record.
type Adapter interface {
	Name() string
	Enrich(ctx context.Context, companyName string) model.FactRecord
}

// FetchFunc is the fallible core of an adapter.
type FetchFunc func(ctx context.Context, companyName string) (model.FactRecord, error)

// GuardOptions configures a Guard.
type GuardOptions struct {
	Timeout time.Duration
	Breaker *resilience.Breaker
	Metrics *monitoring.Metrics
}

// Guard turns a FetchFunc into an Adapter. It bounds the call with a timeout,
// routes it through the source's breaker, recovers panics, drops records that
// fail validation, and records metrics. Errors never cross the boundary.
type Guard struct {
	name  string
	fetch FetchFunc
	opts  GuardOptions
}

// NewGuard wraps fetch under the given source name.
func NewGuard(name string, fetch FetchFunc, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Guard{name: name, fetch: fetch, opts: opts}
}

// Name returns the source name.
func (g *Guard) Name() string { return g.name }

type result struct {
	rec   model.FactRecord
	err   error
	panic any
}

// Enrich runs the wrapped fetch and returns its record, or an empty record on
// any failure.
func (g *Guard) Enrich(ctx context.Context, companyName string) model.FactRecord {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	log := zap.L().With(zap.String("adapter", g.name), zap.String("company", companyName))

	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{panic: p}
			}
		}()
		rec, err := resilience.Call(ctx, g.opts.Breaker, func(ctx context.Context) (model.FactRecord, error) {
			return g.fetch(ctx, companyName)
		})
		done <- result{rec: rec, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}

	outcome, rec := g.settle(res, log)
	g.opts.Metrics.ObserveSource(g.name, outcome, time.Since(start), rec.SetFields())
	return rec
}

func (g *Guard) settle(res result, log *zap.Logger) (string, model.FactRecord) {
	switch {
	case res.panic != nil:
		log.Error("source adapter panicked", zap.String("panic", fmt.Sprint(res.panic)))
		return monitoring.OutcomePanic, model.NewFactRecord()
	case errors.Is(res.err, context.DeadlineExceeded):
		log.Warn("source adapter timed out", zap.Duration("timeout", g.opts.Timeout))
		return monitoring.OutcomeTimeout, model.NewFactRecord()
	case errors.Is(res.err, resilience.ErrBreakerOpen):
		log.Debug("source adapter skipped, breaker open")
		return monitoring.OutcomeBreakerOpen, model.NewFactRecord()
	case resilience.IsNotFound(res.err):
		log.Debug("source has no page for company", zap.Error(res.err))
		return monitoring.OutcomeEmpty, model.NewFactRecord()
	case res.err != nil:
		log.Warn("source adapter failed", zap.Error(res.err))
		return monitoring.OutcomeError, model.NewFactRecord()
	}

	rec := res.rec
	if rec.Provenance == nil {
		rec.Provenance = make(map[model.Field]model.Provenance)
	}
	if err := rec.Validate(); err != nil {
		log.Warn("source adapter returned invalid record", zap.Error(err))
		return monitoring.OutcomeError, model.NewFactRecord()
	}
	if len(rec.SetFields()) == 0 {
		log.Debug("source adapter found no facts")
		return monitoring.OutcomeEmpty, rec
	}
	log.Debug("source adapter resolved facts", zap.Int("fields", len(rec.SetFields())))
	return monitoring.OutcomeOK, rec
}
