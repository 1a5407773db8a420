package classify

import "sort"

// Ranking scores how likely a description belongs to a category account.
type Ranking struct {
	Account string
	Score   float64
}

// Rankings is a scored account list supporting sorting and selection.
type Rankings []Ranking

// Sort orders rankings by score descending; equal scores break ties by
// account name for determinism.
func (r Rankings) Sort() {
	sort.Slice(r, func(i, j int) bool {
		if r[i].Score != r[j].Score {
			return r[i].Score > r[j].Score
		}
		return r[i].Account < r[j].Account
	})
}

// Top returns the highest-scoring ranking, or nil if empty.
func (r Rankings) Top() *Ranking {
	if len(r) == 0 {
		return nil
	}
	r.Sort()
	return &r[0]
}
