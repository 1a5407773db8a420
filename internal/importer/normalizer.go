package importer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beanflow/beanflow/internal/model"
)

// Date layouts accepted from raw records, tried in order. Parsers that
// already emit ISO dates hit the first layout.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	"2006/01/02",
}

// MalformedRecordError reports a raw record whose required fields could not
// be parsed. The record is skipped; the batch continues.
type MalformedRecordError struct {
	Err   error
	Field string
	Value string
	Line  int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record at line %d: malformed %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Normalizer converts raw records into canonical candidates: one concrete
// source posting on the configured account plus one missing counter posting.
type Normalizer struct {
	Account  string
	Currency string
	Source   string
}

// Normalize builds a candidate from one raw record.
func (n Normalizer) Normalize(record model.RawRecord) (model.Candidate, error) {
	date, err := parseDate(record.Date)
	if err != nil {
		return model.Candidate{}, &MalformedRecordError{Line: record.Line, Field: "date", Value: record.Date, Err: err}
	}

	number, err := decimal.NewFromString(record.Amount)
	if err != nil {
		return model.Candidate{}, &MalformedRecordError{Line: record.Line, Field: "amount", Value: record.Amount, Err: err}
	}

	currency := record.Currency
	if currency == "" {
		currency = n.Currency
	}
	if currency == "" {
		return model.Candidate{}, &MalformedRecordError{Line: record.Line, Field: "currency", Value: "", Err: fmt.Errorf("no currency on record or source")}
	}

	return model.Candidate{
		Source: n.Source,
		Raw:    record,
		Entry: model.Entry{
			Date:      date,
			Flag:      model.FlagPending,
			Payee:     record.Payee,
			Narration: record.Narration,
			Metadata:  map[string]string{"source": n.Source},
			Postings: []model.Posting{
				{Account: n.Account, Amount: model.NewAmount(number, currency)},
				{Account: ""}, // counter leg, to be classified
			},
		},
	}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
