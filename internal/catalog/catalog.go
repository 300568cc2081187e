// Package catalog loads the company list and product catalog that feed bulk
// runs. Inputs are CSV or JSON, read from disk or over HTTP.
package catalog

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/model"
)

// Loader reads catalog inputs. Paths with an http or https scheme are fetched
// through the fetcher; anything else is a local file.
type Loader struct {
	fetcher fetcher.Fetcher
}

// NewLoader creates a Loader. f may be nil when only local files are read.
func NewLoader(f fetcher.Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Companies loads a company list.
func (l *Loader) Companies(ctx context.Context, path string) ([]model.Company, error) {
	data, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}
	companies, err := ParseCompanies(ctx, data)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: companies %s", path)
	}
	return companies, nil
}

// Products loads a product catalog keyed by company canonical name.
func (l *Loader) Products(ctx context.Context, path string) (map[string][]model.Product, error) {
	data, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}
	products, err := ParseProducts(ctx, data)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: products %s", path)
	}
	return products, nil
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if l == nil || l.fetcher == nil {
			return nil, eris.Errorf("catalog: no fetcher configured for %s", path)
		}
		resp, err := l.fetcher.Get(ctx, path)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: fetch %s", path)
		}
		return resp.Body, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return data, nil
}

// companyJSON accepts both the bulk-job and the API field names.
type companyJSON struct {
	ID            string `json:"id"`
	CompanyID     string `json:"company_id"`
	CanonicalName string `json:"canonical_name"`
	Name          string `json:"name"`
}

func (c companyJSON) toCompany() model.Company {
	id := c.ID
	if id == "" {
		id = c.CompanyID
	}
	name := c.CanonicalName
	if name == "" {
		name = c.Name
	}
	return model.Company{ID: strings.TrimSpace(id), CanonicalName: strings.TrimSpace(name)}
}

// ParseCompanies parses a JSON array of {"id","canonical_name"} objects or a
// CSV with id and canonical_name (or name) columns. Rows without a name are
// rejected; a missing id defaults to the row's position.
func ParseCompanies(ctx context.Context, data []byte) ([]model.Company, error) {
	var companies []model.Company

	if fetcher.IsJSONArray(data) {
		items, errs := fetcher.DecodeJSONArray[companyJSON](ctx, bytes.NewReader(data))
		for item := range items {
			companies = append(companies, item.toCompany())
		}
		if err := <-errs; err != nil {
			return nil, err
		}
	} else {
		rows, errs := fetcher.StreamCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{Comment: '#'})
		for row := range rows {
			c := companyJSON{
				ID:            row.Get("id"),
				CompanyID:     row.Get("company_id"),
				CanonicalName: row.Get("canonical_name"),
				Name:          row.Get("name"),
			}
			companies = append(companies, c.toCompany())
		}
		if err := <-errs; err != nil {
			return nil, err
		}
	}

	for i := range companies {
		if companies[i].CanonicalName == "" {
			return nil, eris.Errorf("catalog: company %d has no canonical name", i+1)
		}
		if companies[i].ID == "" {
			companies[i].ID = strconv.Itoa(i + 1)
		}
	}
	return companies, nil
}

// productJSON is one catalog entry in the flat array form.
type productJSON struct {
	Company string `json:"company"`
	model.Product
}

// ParseProducts parses a product catalog in one of three shapes:
//   - CSV with columns company,name,ta,launch_year,is_marketed,modality
//   - a JSON array of products each carrying a "company" key
//   - a JSON object mapping company name to its product array
func ParseProducts(ctx context.Context, data []byte) (map[string][]model.Product, error) {
	// Stops the decoder goroutine when a row is rejected mid-stream.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(map[string][]model.Product)

	if fetcher.IsJSONArray(data) {
		items, errs := fetcher.DecodeJSONArray[productJSON](ctx, bytes.NewReader(data))
		n := 0
		for item := range items {
			n++
			company := strings.TrimSpace(item.Company)
			if company == "" {
				return nil, eris.Errorf("catalog: product %d has no company", n)
			}
			out[company] = append(out[company], item.Product)
		}
		if err := <-errs; err != nil {
			return nil, err
		}
		return out, nil
	}

	if isJSONObject(data) {
		byName, err := fetcher.DecodeJSONObject[map[string][]model.Product](bytes.NewReader(data), false)
		if err != nil {
			return nil, err
		}
		for name, products := range *byName {
			name = strings.TrimSpace(name)
			out[name] = append(out[name], products...)
		}
		return out, nil
	}

	rows, errs := fetcher.StreamCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{Comment: '#'})
	for row := range rows {
		company, p, err := productFromRow(row)
		if err != nil {
			return nil, err
		}
		out[company] = append(out[company], p)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

func productFromRow(row fetcher.CSVRecord) (string, model.Product, error) {
	company := row.Get("company")
	if company == "" {
		return "", model.Product{}, eris.Errorf("catalog: line %d: missing company", row.Line)
	}

	p := model.Product{Name: row.Get("name")}
	if ta := row.Get("ta"); ta != "" {
		p.TA = model.Ptr(ta)
	}
	if m := row.Get("modality"); m != "" {
		p.Modality = model.Ptr(m)
	}
	if y := row.Get("launch_year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return "", model.Product{}, eris.Errorf("catalog: line %d: invalid launch_year %q", row.Line, y)
		}
		p.LaunchYear = model.Ptr(year)
	}
	marketed, err := parseBool(row.Get("is_marketed"))
	if err != nil {
		return "", model.Product{}, eris.Errorf("catalog: line %d: invalid is_marketed %q", row.Line, row.Get("is_marketed"))
	}
	p.IsMarketed = marketed

	return company, p, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "f", "no", "n":
		return false, nil
	case "1", "true", "t", "yes", "y":
		return true, nil
	}
	return false, eris.Errorf("not a boolean: %q", s)
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
