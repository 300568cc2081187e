package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// CSVRecord is one data row keyed by its normalized header name.
type CSVRecord struct {
	// Line is the 1-based line number of the row in the input.
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of column name, or "" if absent.
func (r CSVRecord) Get(name string) string {
	return r.Fields[normalizeHeader(name)]
}

// StreamCSV reads a headed CSV file and sends each data row to a channel.
// Headers are trimmed and lowercased; short rows yield empty values for the
// missing columns. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan CSVRecord, <-chan error) {
	rowCh := make(chan CSVRecord, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		var header []string
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if header == nil {
				header = make([]string, len(record))
				for i, h := range record {
					header[i] = normalizeHeader(h)
				}
				continue
			}

			line, _ := reader.FieldPos(0)
			row := CSVRecord{Line: line, Fields: make(map[string]string, len(header))}
			for i, h := range header {
				if i < len(record) {
					row.Fields[h] = strings.TrimSpace(record[i])
				} else {
					row.Fields[h] = ""
				}
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
