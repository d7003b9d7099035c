package sparse

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// model is the fitted, immutable state of an encoder. A refit builds a new
// model and swaps the pointer; readers never observe a half-built model.
type model struct {
	algorithm    Algorithm
	terms        []string // sorted; position is the vocabulary index
	idf          []float64
	index        map[string]uint32
	numDocs      int
	avgDocLength float64
	params       params
}

// scoreFunc computes the weight of a term with frequency tf in a text of docLen tokens.
type scoreFunc func(m *model, tf, docLen int, idf float64) float64

// base carries everything BM25 and TF-IDF share. Only the scoring differs.
type base struct {
	mu     sync.RWMutex
	algo   Algorithm
	params params
	model  *model
	score  scoreFunc
}

func (e *base) init(algo Algorithm, score scoreFunc, opts []Option) {
	e.algo = algo
	e.score = score
	e.params = defaultParams()
	for _, opt := range opts {
		opt(&e.params)
	}
}

// inverseDocumentFrequency is ln((N - df + 0.5)/(df + 0.5) + 1).
func inverseDocumentFrequency(numDocs, df int) float64 {
	n := float64(numDocs)
	d := float64(df)
	return math.Log((n-d+0.5)/(d+0.5) + 1.0)
}

func buildModel(algo Algorithm, p params, corpus []string) *model {
	df := make(map[string]int)
	totalTokens := 0
	for _, text := range corpus {
		tokens := Tokenize(text)
		totalTokens += len(tokens)
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	m := &model{
		algorithm:    algo,
		terms:        terms,
		idf:          make([]float64, len(terms)),
		index:        make(map[string]uint32, len(terms)),
		numDocs:      len(corpus),
		avgDocLength: float64(totalTokens) / float64(len(corpus)),
		params:       p,
	}
	for i, t := range terms {
		m.index[t] = uint32(i)
		m.idf[i] = inverseDocumentFrequency(len(corpus), df[t])
	}
	return m
}

// Fit learns vocabulary, IDF and average document length from corpus.
func (e *base) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}
	e.mu.RLock()
	p := e.params
	e.mu.RUnlock()

	m := buildModel(e.algo, p, corpus)

	e.mu.Lock()
	e.model = m
	e.mu.Unlock()
	return nil
}

type weightedTerm struct {
	index uint32
	score float64
}

// Encode scores every known term of text and keeps the MaxTerms heaviest.
// Equal scores are ordered by ascending vocabulary index.
func (e *base) Encode(text string) (Vector, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m := e.model
	if m == nil {
		return Vector{}, ErrNotFitted
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Vector{Indices: []uint32{}, Values: []float64{}}, nil
	}

	docLen := len(tokens)
	weighted := make([]weightedTerm, 0, len(tokens))
	for term, tf := range termFrequencies(tokens) {
		idx, ok := m.index[term]
		if !ok {
			continue
		}
		weighted = append(weighted, weightedTerm{index: idx, score: e.score(m, tf, docLen, m.idf[idx])})
	}

	sort.Slice(weighted, func(i, j int) bool {
		if weighted[i].score != weighted[j].score {
			return weighted[i].score > weighted[j].score
		}
		return weighted[i].index < weighted[j].index
	})
	if len(weighted) > m.params.maxTerms {
		weighted = weighted[:m.params.maxTerms]
	}

	vec := Vector{
		Indices: make([]uint32, len(weighted)),
		Values:  make([]float64, len(weighted)),
	}
	for i, w := range weighted {
		vec.Indices[i] = w.index
		vec.Values[i] = w.score
	}
	return vec, nil
}

func (e *base) Algorithm() Algorithm {
	return e.algo
}

// VocabSize returns 0 for an unfitted encoder.
func (e *base) VocabSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return 0
	}
	return len(e.model.terms)
}

func (e *base) Fitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Term returns the vocabulary term at index.
func (e *base) Term(index uint32) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil || int(index) >= len(e.model.terms) {
		return "", false
	}
	return e.model.terms[index], true
}

// IDF returns the inverse document frequency of term, if it is in the vocabulary.
func (e *base) IDF(term string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return 0, false
	}
	idx, ok := e.model.index[term]
	if !ok {
		return 0, false
	}
	return e.model.idf[idx], true
}

// AvgDocLength returns the mean token count of the fitted corpus.
func (e *base) AvgDocLength() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return 0
	}
	return e.model.avgDocLength
}

// MarshalBinary encodes the fitted model.
func (e *base) MarshalBinary() ([]byte, error) {
	e.mu.RLock()
	m := e.model
	e.mu.RUnlock()
	if m == nil {
		return nil, ErrNotFitted
	}
	return marshalModel(m), nil
}

// UnmarshalBinary replaces the model with one decoded from data. The blob must
// have been produced by an encoder of the same algorithm.
func (e *base) UnmarshalBinary(data []byte) error {
	m, err := unmarshalModel(data)
	if err != nil {
		return err
	}
	if m.algorithm != e.algo {
		return fmt.Errorf("%w: blob is %s, encoder is %s", ErrAlgorithmMismatch, m.algorithm, e.algo)
	}
	e.mu.Lock()
	e.model = m
	e.params = m.params
	e.mu.Unlock()
	return nil
}

// Save writes the model to path, creating parent directories. The file is
// written to a temporary sibling first and renamed into place.
func (e *base) Save(path string) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func (e *base) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	return e.UnmarshalBinary(data)
}
