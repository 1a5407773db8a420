package importer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/beanflow/beanflow/internal/model"
)

// ChaseParser parses Chase checking CSV exports.
//
// Columns: Details, Posting Date, Description, Amount, Type, Balance, Check #
type ChaseParser struct{}

const (
	chaseNumFields = 7
	chaseColDate   = 1
	chaseColDesc   = 2
	chaseColAmount = 3
	chaseColType   = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns raw records. The header row is
// skipped; field values stay bank-native for the Normalizer to interpret.
func (p *ChaseParser) Parse(r io.Reader) ([]model.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		records = append(records, model.RawRecord{
			Line:      i + 2,
			Date:      row[chaseColDate],
			Amount:    row[chaseColAmount],
			Currency:  "USD",
			Narration: row[chaseColDesc],
			Fields: map[string]string{
				"type": row[chaseColType],
			},
		})
	}
	return records, nil
}
