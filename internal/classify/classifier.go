package classify

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUntrainedModel is returned when a prediction is requested before any
// train call.
var ErrUntrainedModel = errors.New("classifier model is untrained")

// DefaultConfidenceFloor is the minimum top-ranking score required before a
// prediction is applied to a candidate.
const DefaultConfidenceFloor = 0.55

// Stats summarizes a completed training run.
type Stats struct {
	TrainedAt time.Time
	Examples  int
	Accounts  int
}

// Classifier serves predictions against the current trained model. Train is
// exclusive: it builds a complete new model offline and swaps it in
// atomically, so predictions never observe a half-trained model.
type Classifier struct {
	model *Model
	floor float64
	mu    sync.RWMutex
}

// New creates an untrained classifier. A non-positive floor selects the
// default.
func New(floor float64) *Classifier {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return &Classifier{floor: floor}
}

// Floor returns the configured minimum-confidence threshold.
func (c *Classifier) Floor() float64 {
	return c.floor
}

// Trained reports whether a model is available.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Train builds a new model from the labeled examples and atomically
// replaces the current one. The previous model keeps serving predictions
// until the swap.
func (c *Classifier) Train(examples []Example, fingerprint string) (Stats, error) {
	if len(examples) == 0 {
		return Stats{}, fmt.Errorf("no training examples: every ledger entry was ambiguous or uncategorized")
	}

	model := newModel(examples, fingerprint)

	c.mu.Lock()
	c.model = model
	c.mu.Unlock()

	return Stats{
		Examples:  model.Examples,
		Accounts:  len(model.Centroids),
		TrainedAt: model.TrainedAt,
	}, nil
}

// Predict ranks category accounts for a description. Callers apply the
// confidence floor; the full ranking is returned for inspection.
func (c *Classifier) Predict(description string) (Rankings, error) {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	if model == nil {
		return nil, ErrUntrainedModel
	}
	return model.Rank(description), nil
}

// PredictAccount returns the top-ranked account when it clears the
// confidence floor, or ok=false when no confident prediction exists.
func (c *Classifier) PredictAccount(description string) (account string, score float64, ok bool, err error) {
	rankings, err := c.Predict(description)
	if err != nil {
		return "", 0, false, err
	}
	top := rankings.Top()
	if top == nil || top.Score < c.floor {
		return "", 0, false, nil
	}
	return top.Account, top.Score, true, nil
}

// Snapshot serializes the current model for caching, or ErrUntrainedModel.
func (c *Classifier) Snapshot() ([]byte, error) {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	if model == nil {
		return nil, ErrUntrainedModel
	}
	return model.Encode()
}

// Restore installs a previously serialized model.
func (c *Classifier) Restore(data []byte) error {
	model, err := DecodeModel(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
	return nil
}

// Stats describes the current model, or ok=false when untrained.
func (c *Classifier) Stats() (Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return Stats{}, false
	}
	return Stats{
		Examples:  c.model.Examples,
		Accounts:  len(c.model.Centroids),
		TrainedAt: c.model.TrainedAt,
	}, true
}
