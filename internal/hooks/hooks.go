// Package hooks runs an ordered chain of post-processing steps over
// imported candidates before they are finalized. Hooks are composed at
// configuration time into an explicit pipeline; there is no dynamic
// registration.
package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beanflow/beanflow/internal/model"
)

// Hook is one transformation step over a candidate transaction.
type Hook interface {
	Name() string
	Apply(ctx context.Context, candidate *model.Candidate) error
}

// HookError wraps a failure of a single hook for a single candidate. The
// failure is isolated: the candidate passes through unmodified and the rest
// of the batch is unaffected.
type HookError struct {
	Err  error
	Hook string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Pipeline applies hooks in registration order, deterministically. Hooks
// share no state beyond the candidate being transformed.
type Pipeline struct {
	hooks []Hook
}

// NewPipeline composes hooks into a pipeline. Order is execution order.
func NewPipeline(hooks ...Hook) *Pipeline {
	return &Pipeline{hooks: hooks}
}

// Run applies every hook to the candidate. Hooks operate on a working copy;
// on any hook error the original candidate is left untouched and a
// HookError is returned. The error aborts only this candidate, never the
// batch.
func (p *Pipeline) Run(ctx context.Context, candidate *model.Candidate) error {
	working := candidate.Clone()

	for _, hook := range p.hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := hook.Apply(ctx, &working); err != nil {
			slog.Warn("Hook failed, passing candidate through unmodified",
				"hook", hook.Name(),
				"description", candidate.Description(),
				"error", err)
			return &HookError{Hook: hook.Name(), Err: err}
		}
	}

	*candidate = working
	return nil
}

// Len returns the number of composed hooks.
func (p *Pipeline) Len() int {
	return len(p.hooks)
}
