package hooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanflow/beanflow/internal/classify"
	"github.com/beanflow/beanflow/internal/model"
)

type renameHook struct {
	name  string
	trace *[]string
	fail  bool
}

func (h *renameHook) Name() string { return h.name }

func (h *renameHook) Apply(_ context.Context, candidate *model.Candidate) error {
	*h.trace = append(*h.trace, h.name)
	if h.fail {
		return errors.New("boom")
	}
	candidate.Entry.Narration += "|" + h.name
	return nil
}

func testCandidate() model.Candidate {
	return model.Candidate{
		Source: "test",
		Entry: model.Entry{
			Date:      time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
			Flag:      model.FlagPending,
			Payee:     "Coffee Shop 2",
			Narration: "start",
			Postings: []model.Posting{
				{Account: "Assets:Checking", Amount: model.MustAmount("-4.20", "EUR")},
				{Account: ""},
			},
		},
	}
}

func TestPipelineRunsInOrder(t *testing.T) {
	var trace []string
	p := NewPipeline(
		&renameHook{name: "first", trace: &trace},
		&renameHook{name: "second", trace: &trace},
	)

	c := testCandidate()
	require.NoError(t, p.Run(context.Background(), &c))

	assert.Equal(t, []string{"first", "second"}, trace)
	assert.Equal(t, "start|first|second", c.Entry.Narration)
}

func TestPipelineErrorLeavesCandidateUnmodified(t *testing.T) {
	var trace []string
	p := NewPipeline(
		&renameHook{name: "first", trace: &trace},
		&renameHook{name: "second", trace: &trace, fail: true},
		&renameHook{name: "third", trace: &trace},
	)

	c := testCandidate()
	err := p.Run(context.Background(), &c)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "second", hookErr.Hook)

	// The first hook's mutation is rolled back with everything else, and
	// the third hook never ran.
	assert.Equal(t, "start", c.Entry.Narration)
	assert.Equal(t, []string{"first", "second"}, trace)
}

func TestPredictionHookAppliesConfidentPrediction(t *testing.T) {
	classifier := trainedOn(t, "Coffee Shop", "Expenses:Food")
	p := NewPipeline(NewPredictionHook(classifier))

	c := testCandidate()
	require.NoError(t, p.Run(context.Background(), &c))

	assert.True(t, c.Predicted)
	assert.Equal(t, "Expenses:Food", c.Entry.Postings[1].Account)
	assert.True(t, c.Entry.Postings[1].IsMissing())
	assert.GreaterOrEqual(t, c.PredictedScore, classifier.Floor())
}

func TestPredictionHookSkipsKnownCounterAccount(t *testing.T) {
	classifier := trainedOn(t, "Coffee Shop", "Expenses:Food")
	p := NewPipeline(NewPredictionHook(classifier))

	c := testCandidate()
	c.Entry.Postings[1].Account = "Expenses:Office"
	require.NoError(t, p.Run(context.Background(), &c))

	assert.False(t, c.Predicted)
	assert.Equal(t, "Expenses:Office", c.Entry.Postings[1].Account)
}

func TestPredictionHookUntrainedModelLeavesPostingMissing(t *testing.T) {
	p := NewPipeline(NewPredictionHook(classify.New(0)))

	c := testCandidate()
	require.NoError(t, p.Run(context.Background(), &c))

	assert.False(t, c.Predicted)
	assert.Empty(t, c.Entry.Postings[1].Account)
	assert.True(t, c.Entry.Postings[1].IsMissing())
}

func TestPredictionHookLeavesUnknownTextAlone(t *testing.T) {
	classifier := trainedOn(t, "Coffee Shop", "Expenses:Food")
	p := NewPipeline(NewPredictionHook(classifier))

	c := testCandidate()
	c.Entry.Payee = "Qqqqq Zzzzz"
	c.Entry.Narration = ""
	require.NoError(t, p.Run(context.Background(), &c))

	assert.False(t, c.Predicted)
	assert.Empty(t, c.Entry.Postings[1].Account)
}

func trainedOn(t *testing.T, description, account string) *classify.Classifier {
	t.Helper()
	examples := make([]classify.Example, 10)
	for i := range examples {
		examples[i] = classify.Example{Description: description, Account: account}
	}
	c := classify.New(0)
	_, err := c.Train(examples, classify.Fingerprint(examples))
	require.NoError(t, err)
	return c
}

func TestBuildPipeline(t *testing.T) {
	classifier := classify.New(0)

	pipeline, err := BuildPipeline([]string{HookPredict}, classifier)
	require.NoError(t, err)
	assert.Equal(t, 1, pipeline.Len())

	empty, err := BuildPipeline(nil, classifier)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	_, err = BuildPipeline([]string{"frobnicate"}, classifier)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}
