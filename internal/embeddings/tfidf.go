// Package embeddings provides a local TF-IDF vectorizer and density-based
// grouping over code blocks.
//
// It stands in for the external model-inference collaborator: the output is
// plain cluster assignments, the same opaque shape the engine accepts from
// a real model, so nothing downstream depends on how the vectors were made.
package embeddings

import (
	"math"
	"strings"
	"sync"
)

// Dimension is the embedding vector dimension.
const Dimension = 100

// Vectorizer generates TF-IDF vectors for code blocks.
type Vectorizer struct {
	mu       sync.RWMutex
	idf      map[string]float64
	docCount int
	vocab    map[string]int
}

// NewVectorizer creates an empty vectorizer.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{
		idf:   make(map[string]float64),
		vocab: make(map[string]int),
	}
}

// Fit builds the vocabulary and IDF table from a corpus of code blocks.
func (v *Vectorizer) Fit(docs []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.docCount = len(docs)

	termIndex := 0
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range tokenize(doc) {
			if seen[term] {
				continue
			}
			seen[term] = true
			docFreq[term]++
			if _, exists := v.vocab[term]; !exists && termIndex < Dimension {
				v.vocab[term] = termIndex
				termIndex++
			}
		}
	}

	for term, df := range docFreq {
		if df > 0 {
			v.idf[term] = math.Log(float64(v.docCount) / float64(df))
		}
	}
}

// Vector computes the L2-normalized TF-IDF vector for one code block.
func (v *Vectorizer) Vector(doc string) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	vec := make([]float32, Dimension)

	tf := make(map[string]int)
	for _, term := range tokenize(doc) {
		tf[term]++
	}

	maxTF := 0.0
	for _, count := range tf {
		if float64(count) > maxTF {
			maxTF = float64(count)
		}
	}
	if maxTF == 0 {
		return vec
	}

	for term, count := range tf {
		idx, exists := v.vocab[term]
		if !exists {
			continue
		}
		idf := v.idf[term]
		if idf == 0 {
			idf = 1.0
		}
		vec[idx] = float32(float64(count) / maxTF * idf)
	}

	norm := 0.0
	for _, x := range vec {
		norm += float64(x * x)
	}
	norm = math.Sqrt(norm)
	if norm > 0 && !math.IsNaN(norm) {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

// Vectors fits the corpus and returns one vector per block.
func (v *Vectorizer) Vectors(docs []string) [][]float32 {
	v.Fit(docs)
	out := make([][]float32, len(docs))
	for i, doc := range docs {
		out[i] = v.Vector(doc)
	}
	return out
}

// CosineDistance returns 1 minus the cosine similarity of two vectors.
// Both inputs are expected to be L2-normalized.
func CosineDistance(a, b []float32) float64 {
	dot := 0.0
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
	}
	if dot > 1 {
		dot = 1
	}
	return 1 - dot
}

// tokenize splits code into lowercase alphanumeric terms of length >= 2.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})

	filtered := make([]string, 0, len(terms))
	for _, term := range terms {
		if len(term) >= 2 {
			filtered = append(filtered, term)
		}
	}
	return filtered
}
