package classify

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/beanflow/beanflow/internal/model"
)

// Example is one labeled training pair: the text of a confirmed entry and
// the category account it was booked against.
type Example struct {
	Description string
	Account     string
}

// BuildExamples extracts the training set from committed ledger entries.
// An entry qualifies when it has exactly one posting outside the source
// accounts, that posting names a concrete category account, and the entry
// carries usable text. Multi-category entries are ambiguous signal and are
// excluded.
func BuildExamples(entries []model.Entry, sourceRe, categoryRe *regexp.Regexp) []Example {
	var examples []Example
	for _, entry := range entries {
		description := entry.Description()
		if description == "" {
			continue
		}

		var counters []model.Posting
		hasSource := false
		for _, p := range entry.Postings {
			if sourceRe.MatchString(p.Account) {
				hasSource = true
				continue
			}
			counters = append(counters, p)
		}
		if !hasSource || len(counters) != 1 {
			continue
		}

		counter := counters[0]
		if counter.Account == "" || !categoryRe.MatchString(counter.Account) {
			continue
		}

		examples = append(examples, Example{Description: description, Account: counter.Account})
	}
	return examples
}

// Fingerprint hashes the training corpus so a cached model can be matched
// against the ledger state it was trained on.
func Fingerprint(examples []Example) string {
	lines := make([]string, len(examples))
	for i, ex := range examples {
		lines[i] = ex.Description + "\x00" + ex.Account
	}
	sort.Strings(lines)

	h := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("%x", h)
}
