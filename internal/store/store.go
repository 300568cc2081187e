// Package store persists tiered bulk results.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pharma-enrich/internal/config"
	"github.com/sells-group/pharma-enrich/internal/model"
)

// ErrNotFound is returned when no result exists for a company.
var ErrNotFound = eris.New("store: result not found")

// StoredResult is a persisted BulkResult together with the bulk run that
// produced it.
type StoredResult struct {
	RunID     string           `json:"run_id"`
	Result    model.BulkResult `json:"result"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ResultFilter specifies criteria for listing results.
type ResultFilter struct {
	Tier   model.Tier `json:"tier,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// Store defines the persistence interface for tiered results. Saving a result
// for a company that already has one replaces it.
type Store interface {
	SaveResults(ctx context.Context, runID string, results []model.BulkResult) error
	GetResult(ctx context.Context, companyID string) (*StoredResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error)
	CountByTier(ctx context.Context) (map[model.Tier]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver, migrated and ready. The
// "none" driver returns a nil Store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const defaultListLimit = 100

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
