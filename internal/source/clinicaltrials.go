package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/model"
)

// NameClinicalTrials is the ClinicalTrials.gov adapter name.
const NameClinicalTrials = "clinicaltrials"

// DefaultClinicalTrialsURL is the ClinicalTrials.gov v2 studies endpoint.
const DefaultClinicalTrialsURL = "https://clinicaltrials.gov/api/v2/studies"

// activeStatuses mark Phase 3 studies still running.
var activeStatuses = map[string]bool{
	"RECRUITING":              true,
	"ACTIVE_NOT_RECRUITING":   true,
	"ENROLLING_BY_INVITATION": true,
	"NOT_YET_RECRUITING":      true,
}

// ClinicalTrials counts Phase 3/4 studies sponsored by (or in collaboration
// with) the company as an approximation of late-stage assets.
type ClinicalTrials struct {
	apiURL   string
	pageSize int
	fetcher  fetcher.Fetcher
	now      func() time.Time
}

// NewClinicalTrials creates the adapter core for the v2 studies endpoint.
func NewClinicalTrials(apiURL string, pageSize int, f fetcher.Fetcher) *ClinicalTrials {
	if apiURL == "" {
		apiURL = DefaultClinicalTrialsURL
	}
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 1000
	}
	return &ClinicalTrials{apiURL: apiURL, pageSize: pageSize, fetcher: f, now: time.Now}
}

// QueryURL builds the late-stage study query for companyName.
func (c *ClinicalTrials) QueryURL(companyName string) string {
	q := url.Values{}
	q.Set("query.spons", companyName)
	q.Set("filter.advanced", "AREA[Phase](PHASE3 OR PHASE4)")
	q.Set("fields", "NCTId,Phase,OverallStatus")
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("countTotal", "true")
	return c.apiURL + "?" + q.Encode()
}

// StudyCounts summarizes one response page.
type StudyCounts struct {
	// Total is the late-stage study count (totalCount when reported, else the page length).
	Total int
	// ActivePhase3 counts Phase 3 studies that are recruiting or active.
	ActivePhase3 int
}

// ParseStudies reads a v2 studies response body.
func ParseStudies(body []byte) (StudyCounts, error) {
	if !gjson.ValidBytes(body) {
		return StudyCounts{}, eris.New("clinicaltrials: invalid json response")
	}
	doc := gjson.ParseBytes(body)
	studies := doc.Get("studies")
	if !studies.IsArray() {
		return StudyCounts{}, eris.New("clinicaltrials: response has no studies array")
	}

	var counts StudyCounts
	studies.ForEach(func(_, s gjson.Result) bool {
		counts.Total++
		status := s.Get("protocolSection.statusModule.overallStatus").String()
		if !activeStatuses[status] {
			return true
		}
		for _, p := range s.Get("protocolSection.designModule.phases").Array() {
			if p.String() == "PHASE3" {
				counts.ActivePhase3++
				break
			}
		}
		return true
	})

	if total := doc.Get("totalCount"); total.Exists() && int(total.Int()) > counts.Total {
		counts.Total = int(total.Int())
	}
	return counts, nil
}

// Fetch queries the API and sets late_stage_assets_count when any study
// matches. launches_last_5y is only audited: trials do not tell launches.
func (c *ClinicalTrials) Fetch(ctx context.Context, companyName string) (model.FactRecord, error) {
	rec := model.NewFactRecord()

	resp, err := c.fetcher.Get(ctx, c.QueryURL(companyName))
	if err != nil {
		return rec, eris.Wrap(err, "clinicaltrials: query")
	}
	counts, err := ParseStudies(resp.Body)
	if err != nil {
		return rec, err
	}
	if counts.Total == 0 {
		return rec, nil
	}

	at := c.now()
	notes := "Phase 3/4 count (approx)"
	if counts.ActivePhase3 > 0 {
		notes = fmt.Sprintf("%s; %d active Phase 3", notes, counts.ActivePhase3)
	}
	if err := rec.Set(model.FieldLateStageAssetsCount, counts.Total,
		model.NewProvenance(resp.URL, model.MethodAPI, at, notes)); err != nil {
		return model.NewFactRecord(), eris.Wrap(err, "clinicaltrials: set count")
	}
	if err := rec.Audit(model.FieldLaunchesLast5Y,
		model.NewProvenance(resp.URL, model.MethodInference, at, "Derive separately from product metadata if available.")); err != nil {
		return model.NewFactRecord(), eris.Wrap(err, "clinicaltrials: audit launches")
	}
	return rec, nil
}
