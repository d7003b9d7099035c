package sparse

// BM25 weights terms with Okapi BM25, treating the encoded text as the document.
type BM25 struct {
	base
}

var _ Encoder = (*BM25)(nil)

// NewBM25 returns an unfitted BM25 encoder.
func NewBM25(opts ...Option) *BM25 {
	e := &BM25{}
	e.init(AlgorithmBM25, bm25Score, opts)
	return e
}

// bm25Score is idf * tf * (k1+1) / (tf + k1*norm), norm = 1 - b + b*docLen/avgdl.
func bm25Score(m *model, tf, docLen int, idf float64) float64 {
	k1, b := m.params.k1, m.params.b
	norm := 1.0
	if m.avgDocLength > 0 {
		norm = 1.0 - b + b*(float64(docLen)/m.avgDocLength)
	}
	f := float64(tf)
	return idf * f * (k1 + 1.0) / (f + k1*norm)
}
