package classify

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

// Model is a trained classification artifact: a fitted vectorizer, one
// tf-idf centroid per category account, and an exact-description mapping
// for unambiguous history. Models are immutable once built; retraining
// produces a new Model that replaces the old one wholesale.
type Model struct {
	TrainedAt   time.Time
	Vectorizer  *Vectorizer
	Centroids   map[string]Vector
	Mapping     map[string]string
	Fingerprint string
	Examples    int
}

// Rank scores every known category account for a description. An exact hit
// in the unambiguous mapping short-circuits with score 1.0; the statistical
// model only serves descriptions the mapping has never seen.
func (m *Model) Rank(description string) Rankings {
	normalized := NormalizeDescription(description)
	if normalized == "" {
		return nil
	}

	if account, ok := m.Mapping[normalized]; ok {
		return Rankings{{Account: account, Score: 1.0}}
	}

	vec := m.Vectorizer.Transform(normalized)
	if len(vec) == 0 {
		return nil
	}

	rankings := make(Rankings, 0, len(m.Centroids))
	for account, centroid := range m.Centroids {
		rankings = append(rankings, Ranking{Account: account, Score: dot(vec, centroid)})
	}
	rankings.Sort()
	return rankings
}

// newModel trains a model from labeled examples. Descriptions seen with
// conflicting accounts are excluded from the mapping but still feed the
// centroids.
func newModel(examples []Example, fingerprint string) *Model {
	docs := make([]string, 0, len(examples))
	for _, ex := range examples {
		docs = append(docs, NormalizeDescription(ex.Description))
	}

	vectorizer := NewVectorizer()
	vectorizer.Fit(docs)

	mapping := make(map[string]string)
	ambiguous := make(map[string]bool)
	sums := make(map[string]Vector)
	counts := make(map[string]int)

	for i, ex := range examples {
		doc := docs[i]
		if doc == "" {
			continue
		}

		if !ambiguous[doc] {
			if prev, seen := mapping[doc]; seen && prev != ex.Account {
				ambiguous[doc] = true
				delete(mapping, doc)
			} else {
				mapping[doc] = ex.Account
			}
		}

		vec := vectorizer.Transform(doc)
		if len(vec) == 0 {
			continue
		}
		sum, ok := sums[ex.Account]
		if !ok {
			sum = make(Vector)
			sums[ex.Account] = sum
		}
		for idx, w := range vec {
			sum[idx] += w
		}
		counts[ex.Account]++
	}

	centroids := make(map[string]Vector, len(sums))
	for account, sum := range sums {
		n := float64(counts[account])
		centroid := make(Vector, len(sum))
		for idx, w := range sum {
			centroid[idx] = w / n
		}
		normalizeL2(centroid)
		centroids[account] = centroid
	}

	return &Model{
		Vectorizer:  vectorizer,
		Centroids:   centroids,
		Mapping:     mapping,
		TrainedAt:   time.Now().UTC(),
		Examples:    len(examples),
		Fingerprint: fingerprint,
	}
}

// Encode serializes the model for caching.
func (m *Model) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encoding model: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeModel deserializes a cached model.
func DecodeModel(data []byte) (*Model, error) {
	var m Model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	return &m, nil
}
