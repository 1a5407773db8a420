package classify

import "math"

// Vector is a sparse tf-idf feature vector keyed by vocabulary index.
type Vector map[int]float64

// Vectorizer turns normalized descriptions into tf-idf vectors over
// character n-grams. It must be fitted on the training corpus before use;
// n-grams unseen at fit time are dropped at transform time.
type Vectorizer struct {
	Vocab    map[string]int
	IDF      []float64
	NgramMin int
	NgramMax int
}

// NewVectorizer creates an unfitted vectorizer over character 3–5-grams.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{NgramMin: 3, NgramMax: 5}
}

// Fit builds the vocabulary and inverse document frequencies from the
// training corpus. Documents are expected to be normalized already.
func (v *Vectorizer) Fit(docs []string) {
	v.Vocab = make(map[string]int)
	docFreq := make([]int, 0)

	for _, doc := range docs {
		for gram := range ngrams(doc, v.NgramMin, v.NgramMax) {
			idx, ok := v.Vocab[gram]
			if !ok {
				idx = len(v.Vocab)
				v.Vocab[gram] = idx
				docFreq = append(docFreq, 0)
			}
			docFreq[idx]++
		}
	}

	n := float64(len(docs))
	v.IDF = make([]float64, len(docFreq))
	for i, df := range docFreq {
		// Smoothed idf, never zero, so every known gram contributes.
		v.IDF[i] = math.Log((1+n)/(1+float64(df))) + 1
	}
}

// Transform vectorizes one document against the fitted vocabulary and
// L2-normalizes the result. Returns an empty vector when the document
// shares no n-gram with the training corpus.
func (v *Vectorizer) Transform(doc string) Vector {
	vec := make(Vector)
	for gram, count := range ngrams(doc, v.NgramMin, v.NgramMax) {
		if idx, ok := v.Vocab[gram]; ok {
			vec[idx] = float64(count) * v.IDF[idx]
		}
	}
	normalizeL2(vec)
	return vec
}

// ngrams counts character n-grams of lengths [min, max] in s.
func ngrams(s string, minLen, maxLen int) map[string]int {
	counts := make(map[string]int)
	runes := []rune(s)
	for n := minLen; n <= maxLen; n++ {
		for i := 0; i+n <= len(runes); i++ {
			counts[string(runes[i:i+n])]++
		}
	}
	return counts
}

func normalizeL2(vec Vector) {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i, w := range vec {
		vec[i] = w / norm
	}
}

// dot multiplies two sparse vectors. Both sides are L2-normalized, so the
// product is the cosine similarity.
func dot(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for i, w := range a {
		sum += w * b[i]
	}
	return sum
}
