// Package dedup flags candidate transactions that duplicate entries already
// committed to the ledger, so re-importing overlapping export windows never
// records the same bank transaction twice.
package dedup

import (
	"sort"
	"strings"
	"time"

	"github.com/beanflow/beanflow/internal/model"
)

// Reason explains why a candidate was flagged as a duplicate.
type Reason string

const (
	// ReasonExactNarration: source amount equal and narration identical.
	ReasonExactNarration Reason = "exact-narration"
	// ReasonNormalizedNarration: source amount equal and narrations equal
	// ignoring case and whitespace.
	ReasonNormalizedNarration Reason = "normalized-narration"
	// ReasonAmountDate: source amount and date both exactly equal; banks
	// often alter narration formatting between exports.
	ReasonAmountDate Reason = "amount-date"
)

// Match records one suppressed candidate and the committed entry it
// duplicates. Callers can inspect which raw records were dropped and why.
type Match struct {
	EntryID   string
	Reason    Reason
	Candidate model.Candidate
}

// Deduplicator compares candidates against a rolling window of existing
// entries. Window is the number of days considered on each side of a
// candidate's date. Amount and date matching is always exact; only the
// narration comparison has a normalized fallback.
type Deduplicator struct {
	Window int
}

// New creates a Deduplicator with the given window size in days.
func New(windowDays int) *Deduplicator {
	return &Deduplicator{Window: windowDays}
}

// Deduplicate splits candidates into survivors and duplicates. The existing
// slice is one consistent snapshot for the whole batch. Ties resolve to
// "duplicate": the first matching entry wins and the candidate is dropped.
func (d *Deduplicator) Deduplicate(existing []model.Entry, candidates []model.Candidate) ([]model.Candidate, []Match) {
	sorted := make([]model.Entry, len(existing))
	copy(sorted, existing)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var fresh []model.Candidate
	var duplicates []Match

	for _, candidate := range candidates {
		if entry, reason, ok := d.findDuplicate(sorted, candidate); ok {
			duplicates = append(duplicates, Match{Candidate: candidate, EntryID: entry.ID, Reason: reason})
			continue
		}
		fresh = append(fresh, candidate)
	}
	return fresh, duplicates
}

func (d *Deduplicator) findDuplicate(sorted []model.Entry, candidate model.Candidate) (model.Entry, Reason, bool) {
	srcIdx := candidate.SourcePosting()
	if srcIdx < 0 {
		return model.Entry{}, "", false
	}
	source := candidate.Entry.Postings[srcIdx]

	window := time.Duration(d.Window) * 24 * time.Hour
	from := candidate.Entry.Date.Add(-window)
	to := candidate.Entry.Date.Add(window)

	// Entries are sorted by date; binary-search the window start.
	start := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Date.Before(from) })

	for i := start; i < len(sorted) && !sorted[i].Date.After(to); i++ {
		entry := sorted[i]
		if reason, ok := d.compare(entry, candidate, source); ok {
			return entry, reason, true
		}
	}
	return model.Entry{}, "", false
}

// compare applies the duplicate criteria against one existing entry: the
// entry must post the exact same amount and currency to the candidate's
// source account, and then either the narrations match (exactly or
// normalized), or the dates are exactly equal.
func (d *Deduplicator) compare(entry model.Entry, candidate model.Candidate, source model.Posting) (Reason, bool) {
	matched := false
	for _, p := range entry.Postings {
		if p.Account == source.Account && p.Amount.Equal(source.Amount) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	entryDesc := entry.Description()
	candDesc := candidate.Description()

	if entryDesc == candDesc && entryDesc != "" {
		return ReasonExactNarration, true
	}
	if normalize(entryDesc) == normalize(candDesc) && normalize(entryDesc) != "" {
		return ReasonNormalizedNarration, true
	}
	if sameDay(entry.Date, candidate.Entry.Date) {
		return ReasonAmountDate, true
	}
	return "", false
}

// normalize lowers case and collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
