// Package importer turns bank export files into candidate ledger
// transactions. Each supported bank is a Parser variant that only knows how
// to extract raw records from its native format; normalization and
// everything downstream is bank-agnostic.
package importer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/beanflow/beanflow/internal/model"
)

// Parser converts a bank export file into raw records.
type Parser interface {
	Parse(r io.Reader) ([]model.RawRecord, error)
	Format() string
}

// Registry holds named parsers, dispatched by configuration.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&DKBParser{})
	r.Register(&OFXParser{})
	return r
}

// Source binds one bank export source to its parser format, the ledger
// account its records debit/credit, and a default currency for formats that
// do not carry one.
type Source struct {
	Name     string
	Format   string
	Account  string
	Currency string
}

// RecordError pairs a raw record with the error that kept it out of the
// batch. Malformed records are reported, never silently dropped.
type RecordError struct {
	Err    error
	Record model.RawRecord
}

// Importer extracts candidate transactions for one configured source.
type Importer struct {
	parser Parser
	source Source
}

// New builds an importer for the source, resolving its parser from the
// registry.
func New(source Source, registry *Registry) (*Importer, error) {
	parser := registry.Get(source.Format)
	if parser == nil {
		return nil, fmt.Errorf("source %s: unknown import format %q", source.Name, source.Format)
	}
	return &Importer{source: source, parser: parser}, nil
}

// Source returns the importer's source binding.
func (imp *Importer) Source() Source {
	return imp.source
}

// Extract parses a batch of raw records and normalizes each one. The
// returned candidates keep file order; records that fail normalization land
// in errs and do not abort the batch.
func (imp *Importer) Extract(ctx context.Context, r io.Reader) ([]model.Candidate, []RecordError, error) {
	records, err := imp.parser.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", imp.source.Name, err)
	}

	normalizer := Normalizer{Account: imp.source.Account, Currency: imp.source.Currency, Source: imp.source.Name}

	var candidates []model.Candidate
	var errs []RecordError
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		candidate, err := normalizer.Normalize(record)
		if err != nil {
			errs = append(errs, RecordError{Record: record, Err: err})
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, errs, nil
}
