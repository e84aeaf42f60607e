package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/deckgest/internal/doctree"
)

// CSVParser handles CSV files. Each data row becomes one block of
// "header: value" pairs under a heading per batch of rows.
type CSVParser struct{}

const csvBatchSize = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newBuilder(filename, "csv")
	if len(records) == 0 {
		return b.doc, nil
	}

	headers := records[0]
	b.doc.Metadata["columns"] = strings.Join(headers, ",")
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		b.heading(1, fmt.Sprintf("Rows %d-%d", i+2, end+1)) // 1-indexed, skip header
		for _, row := range dataRows[i:end] {
			var pairs []string
			for j, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				if j < len(headers) && headers[j] != "" {
					pairs = append(pairs, headers[j]+": "+cell)
				} else {
					pairs = append(pairs, cell)
				}
			}
			if len(pairs) > 0 {
				b.para(strings.Join(pairs, "; ") + ".")
			}
		}
	}
	return b.doc, nil
}
