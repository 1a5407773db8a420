package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beanflow/beanflow/internal/classify"
	"github.com/beanflow/beanflow/internal/model"
)

// HookPredict is the configuration name of the prediction hook.
const HookPredict = "predict"

// BuildPipeline assembles a pipeline from configured hook names.
func BuildPipeline(names []string, classifier *classify.Classifier) (*Pipeline, error) {
	built := make([]Hook, 0, len(names))
	for _, name := range names {
		switch name {
		case HookPredict:
			built = append(built, NewPredictionHook(classifier))
		default:
			return nil, fmt.Errorf("unknown hook %q", name)
		}
	}
	return NewPipeline(built...), nil
}

// PredictionHook attaches a predicted counter account to candidates that
// lack one. Under-confident predictions are never applied: the posting
// stays missing and the candidate is not marked predicted.
type PredictionHook struct {
	classifier *classify.Classifier
}

// NewPredictionHook wires the prediction step to a classifier.
func NewPredictionHook(classifier *classify.Classifier) *PredictionHook {
	return &PredictionHook{classifier: classifier}
}

// Name identifies the hook in configuration and logs.
func (h *PredictionHook) Name() string { return "predict" }

// Apply predicts the counter account. A no-op when the counter account is
// already known. An untrained model degrades like low confidence: the
// posting stays missing and the record routes to the fallback file instead
// of being rejected.
func (h *PredictionHook) Apply(_ context.Context, candidate *model.Candidate) error {
	if candidate.HasCounterAccount() {
		return nil
	}

	account, score, ok, err := h.classifier.PredictAccount(candidate.Description())
	if errors.Is(err, classify.ErrUntrainedModel) {
		slog.Debug("Model untrained, leaving posting missing",
			"description", candidate.Description())
		return nil
	}
	if err != nil {
		return err
	}
	if !ok {
		slog.Debug("No confident prediction, leaving posting missing",
			"description", candidate.Description())
		return nil
	}

	candidate.ApplyPrediction(account)
	candidate.PredictedScore = score
	slog.Debug("Applied prediction",
		"description", candidate.Description(),
		"account", account,
		"score", score)
	return nil
}
