package usecase

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// tfidfTokenPattern keeps runs of two or more letters, digits or underscores
var tfidfTokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// ErrEmptyVocabulary is returned when a corpus yields no usable terms
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// TFIDFVectorizer maps text onto L2-normalized TF-IDF vectors over a
// vocabulary fitted on a corpus
type TFIDFVectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

// FitTFIDF fits a vectorizer on the corpus and returns it with the encoded
// corpus rows, aligned with the input.
func FitTFIDF(corpus []string) (*TFIDFVectorizer, [][]float64, error) {
	docs := make([][]string, len(corpus))
	df := make(map[string]int)
	for i, text := range corpus {
		docs[i] = tokenizeTFIDF(text)
		seen := make(map[string]bool, len(docs[i]))
		for _, term := range docs[i] {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}
	if len(df) == 0 {
		return nil, nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &TFIDFVectorizer{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		v.vocabulary[term] = i
		// Smoothed idf: ln((1+n)/(1+df)) + 1
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	rows := make([][]float64, len(docs))
	for i, tokens := range docs {
		rows[i] = v.encodeTokens(tokens)
	}
	return v, rows, nil
}

// Transform encodes text into the fitted space. Terms outside the vocabulary
// are ignored, so unrelated text yields a zero vector.
func (v *TFIDFVectorizer) Transform(text string) []float64 {
	return v.encodeTokens(tokenizeTFIDF(text))
}

// Dimensions returns the vocabulary size
func (v *TFIDFVectorizer) Dimensions() int {
	return len(v.idf)
}

func (v *TFIDFVectorizer) encodeTokens(tokens []string) []float64 {
	vec := make([]float64, len(v.idf))
	for _, term := range tokens {
		if idx, ok := v.vocabulary[term]; ok {
			vec[idx]++
		}
	}
	var norm float64
	for i := range vec {
		vec[i] *= v.idf[i]
		norm += vec[i] * vec[i]
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func tokenizeTFIDF(text string) []string {
	return tfidfTokenPattern.FindAllString(strings.ToLower(text), -1)
}

// CosineSimilarity returns the cosine of the angle between a and b clamped to
// [0, 1]. Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, sim))
}
