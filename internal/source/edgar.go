package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pharma-enrich/internal/model"
)

// NameEdgar is the SEC EDGAR adapter name.
const NameEdgar = "edgar"

// DefaultEdgarSearchURL is the EDGAR full-text search template; %s is the
// escaped company name.
const DefaultEdgarSearchURL = "https://www.sec.gov/edgar/search/#/entityName=%s&forms=10-K,20-F"

// Edgar records where the company's latest 10-K/20-F can be found. It only
// contributes audit provenance and never resolves a field.
type Edgar struct {
	searchURL string
	now       func() time.Time
}

// NewEdgar creates the adapter core for a search URL template.
func NewEdgar(searchURL string) *Edgar {
	if searchURL == "" {
		searchURL = DefaultEdgarSearchURL
	}
	return &Edgar{searchURL: searchURL, now: time.Now}
}

// Fetch builds the filing search URL and records it against annual_revenue_usd.
func (e *Edgar) Fetch(_ context.Context, companyName string) (model.FactRecord, error) {
	rec := model.NewFactRecord()
	if !strings.Contains(e.searchURL, "%s") {
		return rec, eris.Errorf("edgar: search url %q has no %%s placeholder", e.searchURL)
	}

	q := strings.ReplaceAll(url.QueryEscape(companyName), "+", "%20")
	link := fmt.Sprintf(e.searchURL, q)

	prov := model.NewProvenance(link, model.MethodReference, e.now(),
		"EDGAR search URL for latest 10-K/20-F; filings are not parsed")
	if err := rec.Audit(model.FieldAnnualRevenueUSD, prov); err != nil {
		return model.NewFactRecord(), eris.Wrap(err, "edgar: audit revenue")
	}
	return rec, nil
}
