// Package sparse implements lexical sparse encoders (BM25 and TF-IDF) that map
// text to a sparse vector over a vocabulary learned from a corpus.
//
// An encoder is fitted once on the chunk corpus, persisted as a versioned
// binary blob and loaded by the search service. Encode is safe for concurrent
// use; Fit and Load replace the fitted model atomically.
package sparse

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm identifies a sparse scoring function.
type Algorithm string

const (
	AlgorithmBM25  Algorithm = "bm25"
	AlgorithmTFIDF Algorithm = "tfidf"
)

const (
	DefaultMaxTerms = 128
	DefaultK1       = 1.5
	DefaultB        = 0.75
)

var (
	ErrNotFitted         = errors.New("sparse: encoder is not fitted")
	ErrEmptyCorpus       = errors.New("sparse: corpus is empty")
	ErrUnknownAlgorithm  = errors.New("sparse: unknown algorithm")
	ErrAlgorithmMismatch = errors.New("sparse: model algorithm mismatch")
	ErrCorruptModel      = errors.New("sparse: corrupt model data")
)

// Vector is a sparse vector stored as parallel index/value arrays.
// Indices are vocabulary positions, values are term weights.
type Vector struct {
	Indices []uint32  `json:"indices"`
	Values  []float64 `json:"values"`
}

// Len returns the number of non-zero entries.
func (v Vector) Len() int {
	return len(v.Indices)
}

// IsEmpty reports whether the vector has no entries.
func (v Vector) IsEmpty() bool {
	return len(v.Indices) == 0
}

// Encoder learns a vocabulary and IDF weights from a corpus and encodes text
// into sparse vectors.
type Encoder interface {
	// Fit rebuilds the vocabulary from corpus. On error the previous model is kept.
	Fit(corpus []string) error
	// Encode returns at most MaxTerms entries ordered by descending weight.
	Encode(text string) (Vector, error)
	Save(path string) error
	Load(path string) error
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
	Algorithm() Algorithm
	VocabSize() int
	Fitted() bool
}

type params struct {
	maxTerms int
	k1       float64
	b        float64
}

func defaultParams() params {
	return params{maxTerms: DefaultMaxTerms, k1: DefaultK1, b: DefaultB}
}

// Option configures an encoder.
type Option func(*params)

// WithMaxTerms caps the number of entries in an encoded vector.
func WithMaxTerms(n int) Option {
	return func(p *params) {
		if n > 0 {
			p.maxTerms = n
		}
	}
}

// WithK1 sets the BM25 term-frequency saturation parameter.
func WithK1(k1 float64) Option {
	return func(p *params) {
		if k1 >= 0 {
			p.k1 = k1
		}
	}
}

// WithB sets the BM25 length-normalisation parameter.
func WithB(b float64) Option {
	return func(p *params) {
		if b >= 0 && b <= 1 {
			p.b = b
		}
	}
}

// ParseAlgorithm maps a case-insensitive name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case AlgorithmBM25:
		return AlgorithmBM25, nil
	case AlgorithmTFIDF:
		return AlgorithmTFIDF, nil
	default:
		return "", fmt.Errorf("%w: %q (use bm25 or tfidf)", ErrUnknownAlgorithm, name)
	}
}

// NewEncoder returns an unfitted encoder for the named algorithm.
func NewEncoder(algorithm string, opts ...Option) (Encoder, error) {
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	switch algo {
	case AlgorithmBM25:
		return NewBM25(opts...), nil
	default:
		return NewTFIDF(opts...), nil
	}
}
