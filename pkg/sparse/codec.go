package sparse

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Blob layout (MUS encoding):
//
//	magic string | version int | algorithm string | maxTerms int | k1 float64 |
//	b float64 | numDocs int | avgDocLength float64 | termCount int |
//	termCount x (term string | idf float64)
//
// Terms are written in vocabulary order so indices survive a round trip.
const (
	blobMagic   = "legal-rag/sparse"
	blobVersion = 1
)

func modelSize(m *model) int {
	size := ord.String.Size(blobMagic) +
		varint.Int.Size(blobVersion) +
		ord.String.Size(string(m.algorithm)) +
		varint.Int.Size(m.params.maxTerms) +
		raw.Float64.Size(m.params.k1) +
		raw.Float64.Size(m.params.b) +
		varint.Int.Size(m.numDocs) +
		raw.Float64.Size(m.avgDocLength) +
		varint.Int.Size(len(m.terms))
	for i, t := range m.terms {
		size += ord.String.Size(t) + raw.Float64.Size(m.idf[i])
	}
	return size
}

func marshalModel(m *model) []byte {
	bs := make([]byte, modelSize(m))
	n := ord.String.Marshal(blobMagic, bs)
	n += varint.Int.Marshal(blobVersion, bs[n:])
	n += ord.String.Marshal(string(m.algorithm), bs[n:])
	n += varint.Int.Marshal(m.params.maxTerms, bs[n:])
	n += raw.Float64.Marshal(m.params.k1, bs[n:])
	n += raw.Float64.Marshal(m.params.b, bs[n:])
	n += varint.Int.Marshal(m.numDocs, bs[n:])
	n += raw.Float64.Marshal(m.avgDocLength, bs[n:])
	n += varint.Int.Marshal(len(m.terms), bs[n:])
	for i, t := range m.terms {
		n += ord.String.Marshal(t, bs[n:])
		n += raw.Float64.Marshal(m.idf[i], bs[n:])
	}
	return bs[:n]
}

// blobReader walks a blob and remembers the first decoding error.
type blobReader struct {
	bs  []byte
	n   int
	err error
}

func (r *blobReader) readString() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *blobReader) readInt() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *blobReader) readFloat() float64 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func unmarshalModel(bs []byte) (*model, error) {
	r := &blobReader{bs: bs}
	if magic := r.readString(); r.err != nil || magic != blobMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptModel)
	}
	if version := r.readInt(); r.err != nil || version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrCorruptModel)
	}

	algo, err := ParseAlgorithm(r.readString())
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, r.err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}

	m := &model{algorithm: algo}
	m.params.maxTerms = r.readInt()
	m.params.k1 = r.readFloat()
	m.params.b = r.readFloat()
	m.numDocs = r.readInt()
	m.avgDocLength = r.readFloat()
	count := r.readInt()
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, r.err)
	}
	// Every entry takes at least two bytes, so a larger count cannot be genuine.
	if count < 0 || count > len(bs)-r.n || m.params.maxTerms <= 0 {
		return nil, fmt.Errorf("%w: invalid header values", ErrCorruptModel)
	}

	m.terms = make([]string, count)
	m.idf = make([]float64, count)
	m.index = make(map[string]uint32, count)
	for i := 0; i < count; i++ {
		m.terms[i] = r.readString()
		m.idf[i] = r.readFloat()
		if r.err != nil {
			return nil, fmt.Errorf("%w: term %d: %v", ErrCorruptModel, i, r.err)
		}
		if i > 0 && m.terms[i-1] >= m.terms[i] {
			return nil, fmt.Errorf("%w: vocabulary not sorted at %d", ErrCorruptModel, i)
		}
		m.index[m.terms[i]] = uint32(i)
	}
	return m, nil
}
