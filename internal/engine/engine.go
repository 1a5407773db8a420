// Package engine wires the import pipeline together: parse, normalize,
// deduplicate, run hooks, balance-check, commit, and record the run in the
// history database.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/beanflow/beanflow/internal/classify"
	"github.com/beanflow/beanflow/internal/common"
	"github.com/beanflow/beanflow/internal/dedup"
	"github.com/beanflow/beanflow/internal/hooks"
	"github.com/beanflow/beanflow/internal/importer"
	"github.com/beanflow/beanflow/internal/ledger"
	"github.com/beanflow/beanflow/internal/model"
	"github.com/beanflow/beanflow/internal/storage"
)

// FallbackAccount is the placeholder counter account written to the
// fallback file when no prediction clears the confidence floor. The leg's
// amount stays missing so a later manual edit only renames the account.
const FallbackAccount = "Expenses:FIXME"

// Engine runs the import pipeline against one ledger.
type Engine struct {
	store           *ledger.Store
	registry        *importer.Registry
	deduplicator    *dedup.Deduplicator
	pipeline        *hooks.Pipeline
	sourcePipelines map[string]*hooks.Pipeline
	classifier      *classify.Classifier
	history         storage.History
	sourceRe        *regexp.Regexp
	categoryRe      *regexp.Regexp
	fallbackFile    string
	logger          *slog.Logger
}

// Params collects the engine's collaborators. All fields except
// SourcePipelines, FallbackFile and Logger are required.
type Params struct {
	Store        *ledger.Store
	Registry     *importer.Registry
	Deduplicator *dedup.Deduplicator
	Pipeline     *hooks.Pipeline
	Classifier   *classify.Classifier
	History      storage.History
	SourceRe     *regexp.Regexp
	CategoryRe   *regexp.Regexp
	FallbackFile string
	Logger       *slog.Logger

	// SourcePipelines overrides the default hook pipeline for individual
	// sources, keyed by source name.
	SourcePipelines map[string]*hooks.Pipeline
}

// New assembles an engine from its collaborators.
func New(p Params) (*Engine, error) {
	switch {
	case p.Store == nil:
		return nil, fmt.Errorf("engine: ledger store is required")
	case p.Registry == nil:
		return nil, fmt.Errorf("engine: parser registry is required")
	case p.Deduplicator == nil:
		return nil, fmt.Errorf("engine: deduplicator is required")
	case p.Pipeline == nil:
		return nil, fmt.Errorf("engine: hook pipeline is required")
	case p.Classifier == nil:
		return nil, fmt.Errorf("engine: classifier is required")
	case p.History == nil:
		return nil, fmt.Errorf("engine: history is required")
	case p.SourceRe == nil || p.CategoryRe == nil:
		return nil, fmt.Errorf("engine: account regexes are required")
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:           p.Store,
		registry:        p.Registry,
		deduplicator:    p.Deduplicator,
		pipeline:        p.Pipeline,
		sourcePipelines: p.SourcePipelines,
		classifier:      p.Classifier,
		history:         p.History,
		sourceRe:        p.SourceRe,
		categoryRe:      p.CategoryRe,
		fallbackFile:    p.FallbackFile,
		logger:          logger,
	}, nil
}

// ImportOptions tunes one import batch.
type ImportOptions struct {
	// File is the original input path, recorded in the run history.
	File string
	// DryRun runs the full pipeline but commits nothing and records no run.
	DryRun bool
	// Progress, when set, is called once per raw record as it is processed.
	Progress func()
}

// Import runs one batch: parse the reader with the source's parser,
// normalize, deduplicate against a single ledger snapshot, run the hook
// pipeline per candidate, and commit survivors. Candidates still lacking a
// counter account go to the fallback file. Parse failure aborts the batch;
// everything after that is isolated per record.
func (e *Engine) Import(ctx context.Context, source importer.Source, r io.Reader, opts ImportOptions) (*Report, error) {
	imp, err := importer.New(source, e.registry)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Source:    source.Name,
		File:      opts.File,
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
	}

	candidates, recordErrs, err := imp.Extract(ctx, r)
	if err != nil {
		return nil, err
	}

	for _, recErr := range recordErrs {
		report.add(RecordResult{
			Status:      StatusMalformed,
			Date:        recErr.Record.Date,
			Description: recordDescription(recErr.Record),
			Amount:      recErr.Record.Amount,
			Line:        recErr.Record.Line,
			Error:       recErr.Err.Error(),
		})
		e.step(opts)
	}

	// One snapshot for the whole batch; records within the batch never
	// shadow each other.
	fresh, matches := e.deduplicator.Deduplicate(e.store.Entries(), candidates)

	duplicateLog := make([]storage.DuplicateRecord, 0, len(matches))
	for _, match := range matches {
		report.add(RecordResult{
			Status:         StatusDuplicate,
			Date:           match.Candidate.Entry.Date.Format("2006-01-02"),
			Description:    match.Candidate.Description(),
			Amount:         candidateAmount(match.Candidate),
			Line:           match.Candidate.Raw.Line,
			MatchedEntryID: match.EntryID,
			Reason:         string(match.Reason),
		})
		duplicateLog = append(duplicateLog, storage.DuplicateRecord{
			Date:           match.Candidate.Entry.Date,
			Description:    match.Candidate.Description(),
			Amount:         candidateAmount(match.Candidate),
			MatchedEntryID: match.EntryID,
			Reason:         string(match.Reason),
		})
		e.step(opts)
	}

	pipeline := e.pipeline
	if override, ok := e.sourcePipelines[source.Name]; ok {
		pipeline = override
	}

	var commit []model.Entry
	var fallback []model.Entry
	for i := range fresh {
		candidate := &fresh[i]
		result := RecordResult{
			Date:        candidate.Entry.Date.Format("2006-01-02"),
			Description: candidate.Description(),
			Amount:      candidateAmount(*candidate),
			Line:        candidate.Raw.Line,
		}

		// A hook error never drops the transaction: the candidate keeps
		// going unmodified and usually lands in the fallback file through
		// the missing-counter-account branch below.
		if err := pipeline.Run(ctx, candidate); err != nil {
			result.Status = StatusHookFailed
			result.Error = err.Error()
			e.logger.Warn("Hook rejected candidate",
				"source", source.Name,
				"description", candidate.Description(),
				"error", err)
		}

		entry := candidate.Entry
		entry.ID = uuid.NewString()
		result.EntryID = entry.ID
		result.Predicted = candidate.Predicted
		result.Score = candidate.PredictedScore

		if !candidate.HasCounterAccount() {
			if result.Status == "" {
				result.Status = StatusImported
			}
			result.Fallback = true
			entry = entry.Clone()
			entry.Postings[candidate.CounterPosting()].Account = FallbackAccount
			fallback = append(fallback, entry)
			report.add(result)
			e.step(opts)
			continue
		}

		entry.InferMissing()
		result.Account = counterAccount(*candidate)

		if err := entry.Balance(); err != nil {
			result.Status = StatusMalformed
			result.Error = err.Error()
			result.EntryID = ""
			report.add(result)
			e.step(opts)
			continue
		}

		if result.Status == "" {
			result.Status = StatusImported
		}
		commit = append(commit, entry)
		report.add(result)
		e.step(opts)
	}

	if !opts.DryRun {
		if len(commit) > 0 {
			if err := e.store.Append(commit...); err != nil {
				return nil, fmt.Errorf("committing entries: %w", err)
			}
			if err := e.store.Flush(); err != nil {
				return nil, fmt.Errorf("flushing ledger: %w", err)
			}
		}
		if len(fallback) > 0 {
			if e.fallbackFile == "" {
				return nil, fmt.Errorf("%d unresolved entries and no fallback file configured", len(fallback))
			}
			if err := ledger.AppendFile(e.fallbackFile, fallback); err != nil {
				return nil, fmt.Errorf("writing fallback file: %w", err)
			}
		}
	}

	report.FinishedAt = time.Now()

	if !opts.DryRun {
		if err := e.recordRun(ctx, report, duplicateLog); err != nil {
			// The ledger write already succeeded; a history failure must
			// not look like a failed import.
			e.logger.Error("Failed to record import run", "error", err)
		}
	}

	e.logger.Info("Import batch finished",
		"source", source.Name,
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"malformed", report.Malformed,
		"hook_failed", report.HookFailed,
		"fallback", report.Fallback)
	return report, nil
}

func (e *Engine) recordRun(ctx context.Context, report *Report, duplicates []storage.DuplicateRecord) error {
	run := &storage.RunRecord{
		Source:     report.Source,
		File:       report.File,
		Imported:   report.Imported,
		Duplicates: report.Duplicates,
		Malformed:  report.Malformed,
		HookFailed: report.HookFailed,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}

	opts := common.RetryOptions{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond}
	err := common.WithRetry(ctx, func() error {
		return e.history.RecordRun(ctx, run)
	}, opts)
	if err != nil {
		return err
	}
	report.RunID = run.ID

	return common.WithRetry(ctx, func() error {
		return e.history.LogDuplicates(ctx, run.ID, duplicates)
	}, opts)
}

// TrainResult reports what a training run produced.
type TrainResult struct {
	Stats       classify.Stats
	Fingerprint string
	Examples    int
}

// Train rebuilds the classification model from the current ledger and
// caches the serialized model in the history database.
func (e *Engine) Train(ctx context.Context) (*TrainResult, error) {
	examples := classify.BuildExamples(e.store.Entries(), e.sourceRe, e.categoryRe)
	fingerprint := classify.Fingerprint(examples)

	stats, err := e.classifier.Train(examples, fingerprint)
	if err != nil {
		return nil, err
	}

	data, err := e.classifier.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("serializing model: %w", err)
	}
	record := &storage.ModelRecord{
		TrainedAt:   time.Now(),
		Fingerprint: fingerprint,
		Data:        data,
	}
	err = common.WithRetry(ctx, func() error {
		return e.history.SaveModel(ctx, record)
	}, common.RetryOptions{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond})
	if err != nil {
		return nil, fmt.Errorf("caching model: %w", err)
	}

	e.logger.Info("Model trained",
		"examples", len(examples),
		"accounts", stats.Accounts,
		"fingerprint", fingerprint[:12])
	return &TrainResult{Stats: stats, Fingerprint: fingerprint, Examples: len(examples)}, nil
}

// EnsureTrained loads the cached model when the in-process classifier is
// still untrained. Returns ErrUntrainedModel when no cache exists either.
func (e *Engine) EnsureTrained(ctx context.Context) error {
	if e.classifier.Trained() {
		return nil
	}

	record, err := e.history.LoadModel(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return classify.ErrUntrainedModel
	}
	if err != nil {
		return fmt.Errorf("loading cached model: %w", err)
	}
	if err := e.classifier.Restore(record.Data); err != nil {
		return fmt.Errorf("restoring cached model: %w", err)
	}
	e.logger.Debug("Restored cached model", "trained_at", record.TrainedAt)
	return nil
}

// Prediction is one counter-account prediction for a committed entry.
type Prediction struct {
	EntryID   string  `json:"entry_id"`
	Account   string  `json:"account,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Predicted bool    `json:"predicted"`
}

// Predict returns counter-account predictions for the given committed
// entries. Entries whose best score sits below the confidence floor get a
// result with Predicted=false. An unknown id is an error.
func (e *Engine) Predict(ctx context.Context, ids []string) ([]Prediction, error) {
	if err := e.EnsureTrained(ctx); err != nil {
		return nil, err
	}

	predictions := make([]Prediction, 0, len(ids))
	for _, id := range ids {
		entry, err := e.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}

		account, score, ok, err := e.classifier.PredictAccount(entry.Description())
		if err != nil {
			return nil, err
		}
		p := Prediction{EntryID: id, Predicted: ok}
		if ok {
			p.Account = account
			p.Score = score
		}
		predictions = append(predictions, p)
	}
	return predictions, nil
}

// Runs returns the most recent import runs from the history database.
func (e *Engine) Runs(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	return e.history.GetRuns(ctx, limit)
}

func (e *Engine) step(opts ImportOptions) {
	if opts.Progress != nil {
		opts.Progress()
	}
}

func recordDescription(r model.RawRecord) string {
	if r.Payee != "" {
		return r.Payee
	}
	return r.Narration
}

func candidateAmount(c model.Candidate) string {
	if i := c.SourcePosting(); i >= 0 {
		return c.Entry.Postings[i].Amount.String()
	}
	return ""
}

// counterAccount returns the account of the leg opposite the source
// posting, empty when several or none qualify.
func counterAccount(c model.Candidate) string {
	source := c.SourcePosting()
	for i, p := range c.Entry.Postings {
		if i != source && p.Account != "" {
			return p.Account
		}
	}
	return ""
}
