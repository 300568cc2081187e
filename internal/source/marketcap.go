package source

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/model"
)

// NameMarketCap is the companiesmarketcap.com adapter name.
const NameMarketCap = "companiesmarketcap"

// Revenue figures appear as "Revenue ... $63.62 billion (TTM)" or
// "Revenue (TTM): $63.62 B". The scale group is optional in the pattern so
// that an unscaled figure is recognized and rejected rather than skipped
// in favor of a later match.
var (
	revenueThenTTM = regexp.MustCompile(`(?i)revenue.*?\$\s*(\d[\d.,]*)\s*(trillion|billion|million|bn|[tbm])?\b\s*\(?\s*ttm\b`)
	ttmThenRevenue = regexp.MustCompile(`(?i)revenue\s*\(\s*ttm\s*\)\s*:?[^$]{0,80}\$\s*(\d[\d.,]*)\s*(trillion|billion|million|bn|[tbm])?\b`)
)

// MarketCap scrapes trailing-twelve-month revenue from companiesmarketcap.com.
type MarketCap struct {
	baseURL string
	fetcher fetcher.Fetcher
	now     func() time.Time
}

// NewMarketCap creates the adapter core for baseURL.
func NewMarketCap(baseURL string, f fetcher.Fetcher) *MarketCap {
	return &MarketCap{baseURL: strings.TrimRight(baseURL, "/"), fetcher: f, now: time.Now}
}

// Fetch searches for the company, follows the first revenue link and parses
// the TTM revenue figure.
func (m *MarketCap) Fetch(ctx context.Context, companyName string) (model.FactRecord, error) {
	rec := model.NewFactRecord()

	searchURL := m.baseURL + "/search/?q=" + url.QueryEscape(companyName)
	resp, err := m.fetcher.Get(ctx, searchURL)
	if err != nil {
		return rec, eris.Wrap(err, "companiesmarketcap: search")
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return rec, err
	}

	href, ok := doc.Find("a[href*='/revenue/']").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return rec, nil
	}
	companyURL, err := resolve(resp.URL, href)
	if err != nil {
		return rec, eris.Wrap(err, "companiesmarketcap: revenue link")
	}

	page, err := m.fetcher.Get(ctx, companyURL)
	if err != nil {
		return rec, eris.Wrap(err, "companiesmarketcap: company page")
	}
	pageDoc, err := parseHTML(page.Body)
	if err != nil {
		return rec, err
	}

	revenue, found := ParseRevenueTTM(visibleText(pageDoc.Selection))
	if !found {
		zap.L().Debug("companiesmarketcap: no scaled TTM revenue on page",
			zap.String("company", companyName),
			zap.String("url", page.URL),
		)
		return rec, nil
	}

	prov := model.NewProvenance(page.URL, model.MethodScrape, m.now(), "TTM revenue parsed heuristically")
	if err := rec.Set(model.FieldAnnualRevenueUSD, revenue, prov); err != nil {
		return model.NewFactRecord(), eris.Wrap(err, "companiesmarketcap: set revenue")
	}
	return rec, nil
}

// ParseRevenueTTM extracts a TTM revenue figure in USD from page text. It
// reports false when no figure is present or the figure has no scale word
// next to it.
func ParseRevenueTTM(text string) (float64, bool) {
	for _, re := range []*regexp.Regexp{revenueThenTTM, ttmThenRevenue} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		scale, ok := scaleOf(m[2])
		if !ok {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || v <= 0 {
			return 0, false
		}
		return v * scale, true
	}
	return 0, false
}

func scaleOf(word string) (float64, bool) {
	switch strings.ToLower(word) {
	case "trillion", "t":
		return 1e12, true
	case "billion", "bn", "b":
		return 1e9, true
	case "million", "m":
		return 1e6, true
	default:
		return 0, false
	}
}

// resolve turns href into an absolute URL relative to base.
func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(h).String(), nil
}
