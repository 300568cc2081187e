package source

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/model"
)

// NamePharmaCompass is the pharmacompass.com adapter name.
const NamePharmaCompass = "pharmacompass"

// PharmaCompass counts top-drug table rows that mention the company as a
// proxy for its marketed products.
type PharmaCompass struct {
	indexPages []string
	fetcher    fetcher.Fetcher
	now        func() time.Time
}

// NewPharmaCompass creates the adapter core over the given index pages.
func NewPharmaCompass(indexPages []string, f fetcher.Fetcher) *PharmaCompass {
	return &PharmaCompass{indexPages: indexPages, fetcher: f, now: time.Now}
}

// Fetch walks the index pages in order; the first page with a non-zero row
// count sets marketed_products_count. A page that fails to load is skipped.
func (p *PharmaCompass) Fetch(ctx context.Context, companyName string) (model.FactRecord, error) {
	rec := model.NewFactRecord()
	needle := foldName(companyName)
	if needle == "" {
		return rec, nil
	}

	var lastErr error
	var loaded int
	for _, page := range p.indexPages {
		resp, err := p.fetcher.Get(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return rec, eris.Wrap(err, "pharmacompass: index page")
			}
			zap.L().Debug("pharmacompass: index page failed, trying next",
				zap.String("url", page),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		doc, err := parseHTML(resp.Body)
		if err != nil {
			lastErr = err
			continue
		}
		loaded++

		count := CountMentions(doc, needle)
		if count == 0 {
			continue
		}

		prov := model.NewProvenance(resp.URL, model.MethodScrape, p.now(), "Proxy count of notable drugs referencing company")
		if err := rec.Set(model.FieldMarketedProductsCount, count, prov); err != nil {
			return model.NewFactRecord(), eris.Wrap(err, "pharmacompass: set count")
		}
		return rec, nil
	}

	if loaded == 0 && lastErr != nil {
		return rec, eris.Wrap(lastErr, "pharmacompass: no index page loaded")
	}
	return rec, nil
}

// CountMentions counts non-empty table rows whose text contains the folded
// company name.
func CountMentions(doc *goquery.Document, foldedName string) int {
	var count int
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		text := visibleText(tr)
		if text == "" {
			return
		}
		if strings.Contains(foldName(text), foldedName) {
			count++
		}
	})
	return count
}
