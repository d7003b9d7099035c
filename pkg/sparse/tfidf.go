package sparse

// TFIDF weights terms by raw term frequency times IDF.
type TFIDF struct {
	base
}

var _ Encoder = (*TFIDF)(nil)

// NewTFIDF returns an unfitted TF-IDF encoder. K1 and B are ignored.
func NewTFIDF(opts ...Option) *TFIDF {
	e := &TFIDF{}
	e.init(AlgorithmTFIDF, tfidfScore, opts)
	return e
}

func tfidfScore(_ *model, tf, _ int, idf float64) float64 {
	return float64(tf) * idf
}
