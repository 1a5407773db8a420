package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEntryBalance(t *testing.T) {
	tests := []struct {
		name     string
		postings []Posting
		wantErr  bool
	}{
		{
			name: "balanced pair",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: MustAmount("-12.34", "EUR")},
				{Account: "Expenses:Food", Amount: MustAmount("12.34", "EUR")},
			},
		},
		{
			name: "one missing posting absorbs residual",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: MustAmount("-12.34", "EUR")},
				{Account: "Expenses:Food"},
			},
		},
		{
			name: "unbalanced without missing posting",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: MustAmount("-12.34", "EUR")},
				{Account: "Expenses:Food", Amount: MustAmount("12.00", "EUR")},
			},
			wantErr: true,
		},
		{
			name: "two missing postings",
			postings: []Posting{
				{Account: "Assets:Checking"},
				{Account: "Expenses:Food"},
			},
			wantErr: true,
		},
		{
			name: "balanced per currency",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: MustAmount("-10", "EUR")},
				{Account: "Assets:Wallet", Amount: MustAmount("10", "EUR")},
				{Account: "Assets:USD", Amount: MustAmount("-5", "USD")},
				{Account: "Assets:Cash", Amount: MustAmount("5", "USD")},
			},
		},
		{
			name: "single posting",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: MustAmount("-10", "EUR")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry{ID: "e1", Date: date("2024-01-05"), Flag: FlagCleared, Postings: tt.postings}
			err := e.Balance()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBalanceErrorContext(t *testing.T) {
	e := Entry{
		ID:   "e2",
		Date: date("2024-02-01"),
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: MustAmount("-20.00", "EUR")},
			{Account: "Expenses:Food", Amount: MustAmount("19.50", "EUR")},
		},
	}
	err := e.Balance()
	require.Error(t, err)

	var balErr *BalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, "EUR", balErr.Currency)
	assert.Equal(t, "-0.5", balErr.Residual.String())
	assert.Contains(t, err.Error(), "e2")
}

func TestInferMissing(t *testing.T) {
	e := Entry{
		ID:   "e3",
		Date: date("2024-03-01"),
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: MustAmount("-33.10", "EUR")},
			{Account: "Expenses:Food"},
		},
	}
	e.InferMissing()
	require.False(t, e.Postings[1].IsMissing())
	assert.Equal(t, "33.1 EUR", e.Postings[1].Amount.String())
	assert.NoError(t, e.Balance())
}

func TestInferMissingAmbiguous(t *testing.T) {
	// Two nonzero currency residuals cannot be absorbed by one leg.
	e := Entry{
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: MustAmount("-10", "EUR")},
			{Account: "Assets:USD", Amount: MustAmount("-5", "USD")},
			{Account: "Expenses:Travel"},
		},
	}
	e.InferMissing()
	assert.True(t, e.Postings[2].IsMissing())
}

func TestDescriptionPrefersPayee(t *testing.T) {
	e := Entry{Payee: "REWE", Narration: "REWE SAGT DANKE"}
	assert.Equal(t, "REWE", e.Description())

	e.Payee = ""
	assert.Equal(t, "REWE SAGT DANKE", e.Description())
}

func TestEntryCloneIsDeep(t *testing.T) {
	e := Entry{
		ID:       "e4",
		Metadata: map[string]string{"source": "dkb"},
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: MustAmount("-1", "EUR")},
			{Account: "Expenses:Food"},
		},
		Tags: []string{"imported"},
	}
	c := e.Clone()
	c.Postings[0].Amount.Number = c.Postings[0].Amount.Number.Neg()
	c.Metadata["source"] = "chase"
	c.Tags[0] = "edited"

	assert.Equal(t, "-1 EUR", e.Postings[0].Amount.String())
	assert.Equal(t, "dkb", e.Metadata["source"])
	assert.Equal(t, "imported", e.Tags[0])
}
