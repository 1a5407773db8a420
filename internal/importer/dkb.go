package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/beanflow/beanflow/internal/model"
)

// DKBParser parses DKB (Deutsche Kreditbank) CSV exports: semicolon
// delimited, German day-first dates and decimal-comma amounts, with a
// preamble of account metadata lines before the column header.
type DKBParser struct{}

const (
	dkbColDate    = "Buchungsdatum"
	dkbColPayee   = "Zahlungsempfänger*in"
	dkbColIssuer  = "Zahlungspflichtige*r"
	dkbColPurpose = "Verwendungszweck"
	dkbColAmount  = "Betrag (€)"
	dkbColRef     = "Kundenreferenz"
)

var multiSpaceRe = regexp.MustCompile(` +`)

// Format returns the parser name.
func (p *DKBParser) Format() string { return "dkb" }

// Parse reads a DKB CSV and returns raw records. The preamble (account
// info, report range, balance line) is skipped up to the column header.
func (p *DKBParser) Parse(r io.Reader) ([]model.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading dkb CSV: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	headerIdx := -1
	for i, line := range lines {
		if strings.Contains(line, dkbColDate) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("dkb CSV: column header %q not found", dkbColDate)
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading dkb CSV: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.Trim(name, `" `)] = i
	}
	for _, required := range []string{dkbColDate, dkbColPayee, dkbColPurpose, dkbColAmount} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("dkb CSV: missing column %q", required)
		}
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return cleanSpaces(strings.TrimSpace(row[idx]))
		}

		narration := "Verwendungszweck: " + cell(dkbColPurpose)
		if ref := cell(dkbColRef); ref != "" {
			narration += " Kundenreferenz: " + ref
		}
		if issuer := cell(dkbColIssuer); issuer != "" && !strings.Contains(issuer, "ISSUER") {
			narration += " Zahlungspflichtiger: " + issuer
		}

		records = append(records, model.RawRecord{
			Line:      headerIdx + i + 2,
			Date:      cell(dkbColDate),
			Amount:    decimalDE(cell(dkbColAmount)),
			Currency:  "EUR",
			Payee:     cell(dkbColPayee),
			Narration: narration,
			Fields: map[string]string{
				"purpose":   cell(dkbColPurpose),
				"reference": cell(dkbColRef),
			},
		})
	}
	return records, nil
}

// decimalDE converts a German-formatted amount ("1.234,56") to the
// canonical form ("1234.56").
func decimalDE(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", ".")
}

func cleanSpaces(s string) string {
	return multiSpaceRe.ReplaceAllString(s, " ")
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
