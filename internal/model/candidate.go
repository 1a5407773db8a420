package model

// RawRecord is one row from a bank export in bank-native shape. It is
// ephemeral: the Normalizer consumes it and the import report references it.
type RawRecord struct {
	Fields    map[string]string
	Date      string
	Amount    string
	Currency  string
	Payee     string
	Narration string
	Line      int
}

// Candidate is an imported transaction before commit: structurally an
// Entry-to-be, plus provenance and prediction state.
type Candidate struct {
	Entry  Entry
	Source string
	Raw    RawRecord

	// Prediction state. The prior posting snapshot lives on the candidate
	// itself so revert is a pure undo, not a re-derivation.
	PredictedAccount string
	PredictedScore   float64
	Predicted        bool
	priorPostings    []Posting
}

// Description returns the classification/matching text for the candidate.
func (c *Candidate) Description() string {
	return c.Entry.Description()
}

// SourcePosting returns the index of the candidate's source leg: the first
// posting with a concrete amount. Normalized candidates have exactly one.
func (c *Candidate) SourcePosting() int {
	for i, p := range c.Entry.Postings {
		if !p.IsMissing() {
			return i
		}
	}
	return -1
}

// CounterPosting returns the index of the candidate's missing counter leg,
// or -1 when every posting already has an amount.
func (c *Candidate) CounterPosting() int {
	for i, p := range c.Entry.Postings {
		if p.IsMissing() {
			return i
		}
	}
	return -1
}

// HasCounterAccount reports whether the counter leg already names a concrete
// account, in which case prediction is a no-op.
func (c *Candidate) HasCounterAccount() bool {
	i := c.CounterPosting()
	if i < 0 {
		return true
	}
	return c.Entry.Postings[i].Account != ""
}

// ApplyPrediction sets the missing counter posting's account, snapshotting
// the prior posting state for revert. The amount stays missing; the
// balancer infers it at commit.
func (c *Candidate) ApplyPrediction(account string) {
	i := c.CounterPosting()
	if i < 0 {
		return
	}
	c.priorPostings = ClonePostings(c.Entry.Postings)
	c.Entry.Postings[i].Account = account
	c.Predicted = true
	c.PredictedAccount = account
}

// RevertPrediction restores the candidate's postings to their exact
// pre-prediction shape. A no-op when no prediction was applied.
func (c *Candidate) RevertPrediction() {
	if !c.Predicted || c.priorPostings == nil {
		return
	}
	c.Entry.Postings = ClonePostings(c.priorPostings)
	c.priorPostings = nil
	c.Predicted = false
	c.PredictedAccount = ""
	c.PredictedScore = 0
}

// Clone returns a deep copy of the candidate, prediction snapshot included.
func (c *Candidate) Clone() Candidate {
	out := *c
	out.Entry = c.Entry.Clone()
	if c.priorPostings != nil {
		out.priorPostings = ClonePostings(c.priorPostings)
	}
	if c.Raw.Fields != nil {
		out.Raw.Fields = make(map[string]string, len(c.Raw.Fields))
		for k, v := range c.Raw.Fields {
			out.Raw.Fields[k] = v
		}
	}
	return out
}

// PostingsEqual reports whether two posting slices are deep-equal. Used by
// tests asserting the revert contract.
func PostingsEqual(a, b []Posting) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Account != b[i].Account {
			return false
		}
		if !a[i].Amount.Equal(b[i].Amount) {
			return false
		}
	}
	return true
}
