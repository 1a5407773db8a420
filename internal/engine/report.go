package engine

import "time"

// Status classifies the outcome of one raw record in an import batch.
type Status string

const (
	// StatusImported means the record was committed as a new entry.
	StatusImported Status = "imported"
	// StatusDuplicate means the record matched an existing entry and was
	// dropped.
	StatusDuplicate Status = "duplicate-skipped"
	// StatusMalformed means the record could not be normalized or did not
	// balance.
	StatusMalformed Status = "malformed"
	// StatusHookFailed means a hook rejected the record's candidate.
	StatusHookFailed Status = "hook-failed"
)

// RecordResult is the per-record outcome of an import batch.
type RecordResult struct {
	Status      Status `json:"status"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Line        int    `json:"line,omitempty"`

	// Imported records.
	EntryID   string  `json:"entry_id,omitempty"`
	Account   string  `json:"account,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Predicted bool    `json:"predicted,omitempty"`
	Fallback  bool    `json:"fallback,omitempty"`

	// Duplicates.
	MatchedEntryID string `json:"matched_entry_id,omitempty"`
	Reason         string `json:"reason,omitempty"`

	// Malformed and hook-failed records.
	Error string `json:"error,omitempty"`
}

// Report is the full outcome of one import batch.
type Report struct {
	Source     string         `json:"source"`
	File       string         `json:"file,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	RunID      int64          `json:"run_id,omitempty"`
	DryRun     bool           `json:"dry_run,omitempty"`
	Records    []RecordResult `json:"records"`

	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
	HookFailed int `json:"hook_failed"`
	Fallback   int `json:"fallback"`
}

func (r *Report) add(result RecordResult) {
	r.Records = append(r.Records, result)
	switch result.Status {
	case StatusImported:
		r.Imported++
	case StatusDuplicate:
		r.Duplicates++
	case StatusMalformed:
		r.Malformed++
	case StatusHookFailed:
		r.HookFailed++
	}
	// Hook-failed records can still route to the fallback file.
	if result.Fallback {
		r.Fallback++
	}
}
