// Package model defines the core ledger data model: entries, postings,
// amounts and import candidates.
package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Flag marks an entry's review state in the ledger file.
type Flag string

const (
	// FlagCleared marks a confirmed entry.
	FlagCleared Flag = "*"
	// FlagPending marks an entry awaiting review.
	FlagPending Flag = "!"
)

// MetaKeyID is the metadata key carrying an entry's unique id.
const MetaKeyID = "id"

// Posting is one account/amount leg of a double-entry transaction.
// A nil Amount means the leg's value is to be inferred by the balancer.
type Posting struct {
	Amount  *Amount
	Account string
}

// IsMissing reports whether the posting's amount is left to be inferred.
func (p Posting) IsMissing() bool {
	return p.Amount == nil
}

// Entry is a committed ledger record. Entries are never mutated in place;
// edits produce a new entry that replaces the old one by id.
type Entry struct {
	Date      time.Time
	Metadata  map[string]string
	ID        string
	Payee     string
	Narration string
	Flag      Flag
	Postings  []Posting
	Tags      []string
}

// BalanceError reports an entry whose postings do not sum to zero, with
// enough context for a human to fix the offending posting.
type BalanceError struct {
	EntryID  string
	Currency string
	Residual decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("entry %s does not balance: residual %s %s",
		e.EntryID, e.Residual.String(), e.Currency)
}

// Balance validates the double-entry invariant: per currency, concrete
// posting amounts sum to zero. A single missing posting is permitted to
// absorb the residual; more than one is an error.
func (e *Entry) Balance() error {
	if len(e.Postings) < 2 {
		return fmt.Errorf("entry %s has %d postings, need at least 2", e.ID, len(e.Postings))
	}

	missing := 0
	residuals := make(map[string]decimal.Decimal)
	for _, p := range e.Postings {
		if p.IsMissing() {
			missing++
			continue
		}
		residuals[p.Amount.Currency] = residuals[p.Amount.Currency].Add(p.Amount.Number)
	}

	if missing > 1 {
		return fmt.Errorf("entry %s has %d missing postings, at most 1 allowed", e.ID, missing)
	}
	if missing == 1 {
		// The missing leg absorbs whatever residual remains.
		return nil
	}

	for _, currency := range sortedCurrencies(residuals) {
		if !residuals[currency].IsZero() {
			return &BalanceError{EntryID: e.ID, Currency: currency, Residual: residuals[currency]}
		}
	}
	return nil
}

// InferMissing fills in the single missing posting's amount when exactly one
// currency has a nonzero residual. Entries with no missing posting or an
// ambiguous residual are returned unchanged.
func (e *Entry) InferMissing() {
	missingIdx := -1
	for i, p := range e.Postings {
		if p.IsMissing() {
			if missingIdx >= 0 {
				return
			}
			missingIdx = i
		}
	}
	if missingIdx < 0 {
		return
	}

	residuals := make(map[string]decimal.Decimal)
	for _, p := range e.Postings {
		if p.IsMissing() {
			continue
		}
		residuals[p.Amount.Currency] = residuals[p.Amount.Currency].Add(p.Amount.Number)
	}

	var currency string
	nonzero := 0
	for cur, r := range residuals {
		if !r.IsZero() {
			nonzero++
			currency = cur
		}
	}
	if nonzero != 1 {
		return
	}

	e.Postings[missingIdx].Amount = NewAmount(residuals[currency].Neg(), currency)
}

// Description returns the text used for narration matching and
// classification features: the payee when present, else the narration.
func (e *Entry) Description() string {
	if e.Payee != "" {
		return e.Payee
	}
	return e.Narration
}

// PostingByAccount returns the index of the first posting whose account
// matches re, or -1.
func (e *Entry) PostingByAccount(re *regexp.Regexp) int {
	for i, p := range e.Postings {
		if re.MatchString(p.Account) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() Entry {
	out := *e
	out.Postings = ClonePostings(e.Postings)
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ClonePostings deep-copies a posting slice, including amounts.
func ClonePostings(postings []Posting) []Posting {
	out := make([]Posting, len(postings))
	for i, p := range postings {
		out[i] = p
		if p.Amount != nil {
			amt := *p.Amount
			out[i].Amount = &amt
		}
	}
	return out
}

func sortedCurrencies(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// AccountLeaf returns the last segment of a colon-delimited account path.
func AccountLeaf(account string) string {
	if i := strings.LastIndex(account, ":"); i >= 0 {
		return account[i+1:]
	}
	return account
}
