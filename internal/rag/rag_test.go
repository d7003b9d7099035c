package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/rag/ragtest"
	"github.com/johnpham4/legal-rag-llm/pkg/crossencoder"
)

func TestExtractEnriches(t *testing.T) {
	fake := &ragtest.LLM{Responses: []string{"```json\n{\"document_type\": \"Luật\", \"field\": \"Lao động\", \"document_number\": null}\n```"}}
	ex, err := NewMetadataExtractor(fake, false)
	require.NoError(t, err)

	q := model.NewQuery("Điều 97 Bộ luật Lao động quy định về thời giờ làm việc như thế nào?")
	res := ex.Extract(context.Background(), q)

	assert.Equal(t, OutcomeEnriched, res.Outcome)
	assert.Equal(t, map[string]string{
		model.MetaDocumentType: "Luật",
		model.MetaField:        "Lao động",
	}, res.Query.Metadata)
	assert.Equal(t, q.ID, res.Query.ID)
	assert.Empty(t, q.Metadata)
	assert.Contains(t, fake.Prompts[0], q.Content)
}

func TestExtractDropsValuesOutsideClosedSets(t *testing.T) {
	fake := &ragtest.LLM{Responses: []string{`{"document_type": "Hiến pháp", "field": "Thuế", "document_number": "45/2019/QH14"}`}}
	ex, err := NewMetadataExtractor(fake, false)
	require.NoError(t, err)

	res := ex.Extract(context.Background(), model.NewQuery("q"))
	assert.Equal(t, OutcomeEnriched, res.Outcome)
	assert.Equal(t, map[string]string{
		model.MetaField:          "Thuế",
		model.MetaDocumentNumber: "45/2019/QH14",
	}, res.Query.Metadata)
}

func TestExtractKeepsValidFieldsWhenOneHasWrongType(t *testing.T) {
	cases := map[string]struct {
		response string
		want     map[string]string
	}{
		"numeric document number": {
			response: `{"document_type": "Luật", "field": "Thuế", "document_number": 45}`,
			want: map[string]string{
				model.MetaDocumentType:   "Luật",
				model.MetaField:          "Thuế",
				model.MetaDocumentNumber: "45",
			},
		},
		"array document type": {
			response: `{"document_type": ["Luật"], "field": "Thuế"}`,
			want:     map[string]string{model.MetaField: "Thuế"},
		},
		"object field": {
			response: `{"document_type": "Nghị định", "field": {"name": "Thuế"}, "document_number": "12/2024/NĐ-CP"}`,
			want: map[string]string{
				model.MetaDocumentType:   "Nghị định",
				model.MetaDocumentNumber: "12/2024/NĐ-CP",
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ex, err := NewMetadataExtractor(&ragtest.LLM{Responses: []string{tc.response}}, false)
			require.NoError(t, err)

			res := ex.Extract(context.Background(), model.NewQuery("q"))
			assert.Equal(t, OutcomeEnriched, res.Outcome)
			assert.Equal(t, tc.want, res.Query.Metadata)
		})
	}
}

func TestExtractUnmodified(t *testing.T) {
	cases := map[string]*ragtest.LLM{
		"llm error":    {Err: errors.New("timeout")},
		"invalid json": {Responses: []string{"không biết"}},
		"all null":     {Responses: []string{`{"document_type": null, "field": null, "document_number": null}`}},
		"only invalid": {Responses: []string{`{"document_type": "Hiến pháp"}`}},
		"only wrong types": {Responses: []string{`{"document_type": 3, "field": true}`}},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			ex, err := NewMetadataExtractor(fake, false)
			require.NoError(t, err)
			q := model.NewQuery("Quy định về thuế thu nhập cá nhân?")
			res := ex.Extract(context.Background(), q)
			assert.Equal(t, OutcomeUnmodified, res.Outcome)
			assert.Equal(t, q, res.Query)
		})
	}
}

func TestExtractMockSkipsLLM(t *testing.T) {
	fake := &ragtest.LLM{}
	ex, err := NewMetadataExtractor(fake, true)
	require.NoError(t, err)
	res := ex.Extract(context.Background(), model.NewQuery("q"))
	assert.Equal(t, OutcomeUnmodified, res.Outcome)
	assert.Zero(t, fake.Calls())
}

func TestNewComponentsRequireDependencies(t *testing.T) {
	_, err := NewMetadataExtractor(nil, false)
	assert.ErrorIs(t, err, model.ErrNilDependency)
	_, err = NewQueryExpander(nil, false)
	assert.ErrorIs(t, err, model.ErrNilDependency)
	_, err = NewReranker(nil, false)
	assert.ErrorIs(t, err, model.ErrNilDependency)

	_, err = NewReranker(nil, true)
	assert.NoError(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1} `))
}

func TestExpand(t *testing.T) {
	fake := &ragtest.LLM{Responses: []string{"Thời giờ làm việc bình thường?\n#next-question\n\n#next-question Giờ làm thêm tối đa? #next-question Câu thừa"}}
	exp, err := NewQueryExpander(fake, false)
	require.NoError(t, err)

	q := model.NewQuery("Thời giờ làm việc?").WithMetadata(map[string]string{model.MetaField: "Lao động"})
	out, err := exp.Expand(context.Background(), q, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, q, out[0])
	assert.Equal(t, "Thời giờ làm việc bình thường?", out[1].Content)
	assert.Equal(t, "Giờ làm thêm tối đa?", out[2].Content)
	for _, v := range out {
		assert.Equal(t, q.ID, v.ID)
		assert.Equal(t, "Lao động", v.Metadata[model.MetaField])
	}
	assert.Contains(t, fake.Prompts[0], "tạo ra 2\n")
}

func TestExpandEdgeCases(t *testing.T) {
	q := model.NewQuery("q")

	exp, err := NewQueryExpander(&ragtest.LLM{}, false)
	require.NoError(t, err)
	_, err = exp.Expand(context.Background(), q, 0)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	fake := &ragtest.LLM{}
	exp, _ = NewQueryExpander(fake, false)
	out, err := exp.Expand(context.Background(), q, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.Query{q}, out)
	assert.Zero(t, fake.Calls())

	exp, _ = NewQueryExpander(&ragtest.LLM{Err: errors.New("down")}, false)
	out, err = exp.Expand(context.Background(), q, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Query{q}, out)

	exp, _ = NewQueryExpander(nil, true)
	out, err = exp.Expand(context.Background(), q, 4)
	require.NoError(t, err)
	assert.Len(t, out, 4)
	for _, v := range out {
		assert.Equal(t, q, v)
	}
}

func embedded(ids ...string) []model.EmbeddedChunk {
	out := make([]model.EmbeddedChunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.EmbeddedChunk{Chunk: model.Chunk{ID: id, Content: id}})
	}
	return out
}

func ids(chunks []model.EmbeddedChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ID)
	}
	return out
}

func TestRerankOrdersAndTruncates(t *testing.T) {
	scores := map[string]float64{"a": 0.1, "b": 0.9, "c": 0.5, "d": 0.9}
	r, err := NewReranker(&ragtest.Scorer{ScoreFn: func(p crossencoder.Pair) float64 {
		return scores[p.Passage]
	}}, false)
	require.NoError(t, err)

	out, err := r.Rerank(context.Background(), model.NewQuery("q"), embedded("a", "b", "c", "d"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "c"}, ids(out))

	out, err = r.Rerank(context.Background(), model.NewQuery("q"), embedded("a", "b"), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(out))
}

func TestRerankTwoChunksTopOne(t *testing.T) {
	scores := map[string]float64{"a": 0.2, "b": 0.9}
	r, err := NewReranker(&ragtest.Scorer{ScoreFn: func(p crossencoder.Pair) float64 {
		return scores[p.Passage]
	}}, false)
	require.NoError(t, err)

	q := model.NewQuery("q")
	out, err := r.Rerank(context.Background(), q, embedded("a", "b"), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(out))

	out, err = r.Rerank(context.Background(), q, embedded("a", "b"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(out))
}

func TestRerankFailures(t *testing.T) {
	q := model.NewQuery("q")

	r, _ := NewReranker(&ragtest.Scorer{Err: errors.New("503")}, false)
	_, err := r.Rerank(context.Background(), q, embedded("a"), 1)
	assert.ErrorIs(t, err, model.ErrCollaboratorFailure)

	r, _ = NewReranker(&ragtest.Scorer{Short: true, ScoreFn: func(crossencoder.Pair) float64 { return 1 }}, false)
	_, err = r.Rerank(context.Background(), q, embedded("a", "b"), 1)
	assert.ErrorIs(t, err, model.ErrCollaboratorFailure)
}

func TestRerankMockIsIdentity(t *testing.T) {
	r, err := NewReranker(nil, true)
	require.NoError(t, err)
	in := embedded("c", "a", "b")
	out, err := r.Rerank(context.Background(), model.NewQuery("q"), in, 1)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, BuildFilter(model.NewQuery("q")))

	q := model.NewQuery("q").WithMetadata(map[string]string{
		model.MetaDocumentNumber: "86/2015/NĐ-CP",
		model.MetaDocumentType:   "Nghị định",
	})
	f := BuildFilter(q)
	require.NotNil(t, f)
	require.Len(t, f.Conditions, 2)
	assert.Equal(t, model.MetaDocumentType, f.Conditions[0].Key)
	assert.Equal(t, model.MetaDocumentNumber, f.Conditions[1].Key)
}

func TestPrompts(t *testing.T) {
	p := SelfQueryPrompt("Nghị định về thuế?")
	for _, v := range model.LegalFields {
		assert.Contains(t, p, `"`+string(v)+`"`)
	}
	assert.True(t, strings.HasSuffix(p, "User question: Nghị định về thuế?\nResponse (JSON only):"))

	ctx := FormatContext([]model.EmbeddedChunk{{Chunk: model.Chunk{DocumentType: "Luật", Content: "Điều 1"}}})
	assert.Equal(t, "Chunk 1:\nPlatform: thuvienphapluat.vn\nType: Luật\nContent: Điều 1", ctx)
	assert.Contains(t, AnswerPrompt("Câu hỏi?", ctx), "Câu hỏi: Câu hỏi?\n\nTrả lời:")
}
