// Package ledger reads and writes the plain-text double-entry ledger file
// and provides the in-memory store the import pipeline works against.
//
// The file format is one entry per block:
//
//	2024-01-05 * "REWE" "REWE SAGT DANKE" #imported
//	  ; id: 8f14e45f-ce15-41c7-9cf2-1a2b3c4d5e6f
//	  ; source: dkb
//	  Assets:Checking:DKB  -12.34 EUR
//	  Expenses:Food:Groceries
//
// A posting without an amount is a missing posting whose value the balancer
// infers. Metadata lives in indented "; key: value" lines; the entry id is
// ordinary metadata under the "id" key.
package ledger

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/beanflow/beanflow/internal/model"
)

const dateLayout = "2006-01-02"

var postingRe = regexp.MustCompile(`^\s+(\S+)(?:\s{2,}(-?[0-9][0-9.,]*)\s+([A-Z][A-Z0-9'._-]{0,22}))?\s*$`)

// Parse reads entries from a ledger file.
func Parse(r io.Reader) ([]model.Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []model.Entry
	var current *model.Entry
	line := 0

	flush := func() {
		if current != nil {
			entries = append(entries, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)

		switch {
		case trimmed == "":
			flush()

		case strings.HasPrefix(text, ";"):
			// Top-level comment.

		case isIndented(text):
			if current == nil {
				return nil, fmt.Errorf("line %d: posting outside an entry", line)
			}
			if strings.HasPrefix(trimmed, ";") {
				key, value, ok := parseMetadata(trimmed)
				if !ok {
					continue // plain comment inside an entry
				}
				if current.Metadata == nil {
					current.Metadata = make(map[string]string)
				}
				current.Metadata[key] = value
				if key == model.MetaKeyID {
					current.ID = value
				}
				continue
			}
			posting, err := parsePosting(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			current.Postings = append(current.Postings, posting)

		default:
			flush()
			entry, err := parseHeader(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			current = &entry
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return entries, nil
}

// Format writes entries to w in the ledger file format.
func Format(w io.Writer, entries []model.Entry) error {
	for i, e := range entries {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := formatEntry(w, e); err != nil {
			return fmt.Errorf("formatting entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func formatEntry(w io.Writer, e model.Entry) error {
	header := fmt.Sprintf("%s %s", e.Date.Format(dateLayout), e.Flag)
	if e.Payee != "" {
		header += fmt.Sprintf(" %q", e.Payee)
	}
	header += fmt.Sprintf(" %q", e.Narration)
	for _, tag := range e.Tags {
		header += " #" + tag
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}

	for _, key := range sortedMetaKeys(e) {
		if _, err := fmt.Fprintf(w, "  ; %s: %s\n", key, e.Metadata[key]); err != nil {
			return err
		}
	}

	for _, p := range e.Postings {
		if p.IsMissing() {
			if _, err := fmt.Fprintf(w, "  %s\n", p.Account); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s  %s %s\n", p.Account, p.Amount.Number.String(), p.Amount.Currency); err != nil {
			return err
		}
	}
	return nil
}

func parseHeader(s string) (model.Entry, error) {
	var e model.Entry

	fields := strings.SplitN(s, " ", 3)
	if len(fields) < 3 {
		return e, fmt.Errorf("malformed entry header %q", s)
	}

	date, err := time.Parse(dateLayout, fields[0])
	if err != nil {
		return e, fmt.Errorf("invalid date %q: %w", fields[0], err)
	}
	e.Date = date

	switch fields[1] {
	case string(model.FlagCleared), string(model.FlagPending):
		e.Flag = model.Flag(fields[1])
	default:
		return e, fmt.Errorf("invalid flag %q", fields[1])
	}

	rest := strings.TrimSpace(fields[2])
	first, rest, err := scanQuoted(rest)
	if err != nil {
		return e, err
	}

	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, `"`) {
		second, tail, err := scanQuoted(rest)
		if err != nil {
			return e, err
		}
		e.Payee = first
		e.Narration = second
		rest = tail
	} else {
		e.Narration = first
	}

	for _, tok := range strings.Fields(rest) {
		if !strings.HasPrefix(tok, "#") {
			return e, fmt.Errorf("unexpected token %q in entry header", tok)
		}
		e.Tags = append(e.Tags, strings.TrimPrefix(tok, "#"))
	}
	return e, nil
}

func parsePosting(s string) (model.Posting, error) {
	m := postingRe.FindStringSubmatch(s)
	if m == nil {
		return model.Posting{}, fmt.Errorf("malformed posting %q", strings.TrimSpace(s))
	}
	p := model.Posting{Account: m[1]}
	if m[2] == "" {
		return p, nil
	}
	number, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return model.Posting{}, fmt.Errorf("invalid amount %q: %w", m[2], err)
	}
	p.Amount = model.NewAmount(number, m[3])
	return p, nil
}

func parseMetadata(s string) (key, value string, ok bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, ";"))
	i := strings.Index(s, ":")
	if i <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(s[:i])
	value = strings.TrimSpace(s[i+1:])
	if key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, value, true
}

// scanQuoted reads a leading double-quoted string, handling escaped quotes,
// and returns the unquoted value plus the remainder of the line.
func scanQuoted(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		return "", "", fmt.Errorf("expected quoted string at %q", s)
	}
	var b strings.Builder
	escaped := false
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated quoted string at %q", s)
}

func isIndented(s string) bool {
	return strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\t")
}

func sortedMetaKeys(e model.Entry) []string {
	if len(e.Metadata) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
