package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/index"
)

// hashEngine embeds deterministically from a lookup table.
type hashEngine struct {
	vectors map[string][]float32
	dims    int
}

func (e *hashEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, e.dims), nil
}

func (e *hashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (e *hashEngine) Dimensions() int { return e.dims }
func (e *hashEngine) Name() string    { return "hash:test" }

type mapState map[string]string

func (m mapState) LookupMapping(v1Key string) (string, bool) {
	v, ok := m[v1Key]
	return v, ok
}

func buildIndex(t *testing.T, engine *hashEngine, chunks []index.ContextChunk) *index.VectorIndex {
	t.Helper()
	idx := index.New(engine)
	require.NoError(t, idx.Add(chunks...))
	return idx
}

func TestExtractTagsDedup(t *testing.T) {
	tags := ExtractTags(`<modus-alert message="hi"></modus-alert><modus-alert message="bye">`)
	assert.Equal(t, []string{"modus-alert"}, tags)
}

func TestExtractTagsOrderPreserving(t *testing.T) {
	tags := ExtractTags(`<modus-button>ok</modus-button><modus-alert></modus-alert><modus-button>`)
	assert.Equal(t, []string{"modus-button", "modus-alert"}, tags)
}

func TestExtractTagsWcPrefix(t *testing.T) {
	tags := ExtractTags(`<modus-wc-badge color="primary">`)
	assert.Equal(t, []string{"modus-wc-badge"}, tags)
}

func TestExtractTagsNone(t *testing.T) {
	assert.Nil(t, ExtractTags(`<div><span>plain html</span></div>`))
}

func TestNormalizeV1Key(t *testing.T) {
	assert.Equal(t, "modus-alert.tsx", NormalizeV1Key("modus-alert"))
}

func TestRetrieveFlatRankedOrder(t *testing.T) {
	engine := &hashEngine{dims: 2, vectors: map[string][]float32{
		"near": {1, 0}, "far": {0, 1}, "query": {0.9, 0.1},
	}}
	idx := buildIndex(t, engine, []index.ContextChunk{
		{ID: "1", SectionType: index.SectionDoc, Name: "far.md", Text: "far", Embedding: []float32{0, 1}},
		{ID: "2", SectionType: index.SectionDoc, Name: "near.md", Text: "near", Embedding: []float32{1, 0}},
	})
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	out, err := e.RetrieveFlat(context.Background(), "query", 2)
	require.NoError(t, err)
	assert.Equal(t, "near\n\nfar", out)
}

func TestRetrieveFlatDeterministic(t *testing.T) {
	engine := &hashEngine{dims: 2, vectors: map[string][]float32{"query": {1, 0}}}
	idx := buildIndex(t, engine, []index.ContextChunk{
		{ID: "1", SectionType: index.SectionDoc, Name: "a.md", Text: "ta", Embedding: []float32{1, 0}},
		{ID: "2", SectionType: index.SectionDoc, Name: "b.md", Text: "tb", Embedding: []float32{1, 0}},
	})
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	first, err := e.RetrieveFlat(context.Background(), "query", 2)
	require.NoError(t, err)
	second, err := e.RetrieveFlat(context.Background(), "query", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveBySectionEndToEnd(t *testing.T) {
	snippet := `<modus-alert message="hi">`
	engine := &hashEngine{dims: 2, vectors: map[string][]float32{snippet: {1, 0}}}
	idx := buildIndex(t, engine, []index.ContextChunk{
		{ID: "a", SectionType: index.SectionV1Component, Name: "modus-alert.tsx", Text: "V1 ALERT DOC", Embedding: []float32{1, 0}},
		{ID: "b", SectionType: index.SectionV2Component, Name: "modus-wc-alert.tsx", Text: "V2 ALERT DOC", Embedding: []float32{0.8, 0.2}},
	})
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	state := mapState{"modus-alert.tsx": "modus-wc-alert.tsx"}
	out, err := e.RetrieveBySection(context.Background(), snippet, 5, 5, state)
	require.NoError(t, err)

	v1Pos := strings.Index(out, "### V1 COMPONENT")
	v2Pos := strings.Index(out, "### V2 COMPONENT")
	require.GreaterOrEqual(t, v1Pos, 0)
	require.Greater(t, v2Pos, v1Pos)
	assert.Contains(t, out[v1Pos:v2Pos], "V1 ALERT DOC")
	assert.Contains(t, out[v2Pos:], "V2 ALERT DOC")
}

func TestRetrieveBySectionFallbackScan(t *testing.T) {
	snippet := `<modus-alert message="hi">`
	// Query vector aligned with fillers so the mapped v2 chunk loses the
	// similarity ranking and must be recovered by the fallback scan.
	vectors := map[string][]float32{snippet: {1, 0}}
	engine := &hashEngine{dims: 2, vectors: vectors}

	chunks := []index.ContextChunk{
		{ID: "v2", SectionType: index.SectionV2Component, Name: "modus-wc-alert.tsx", Text: "V2 ALERT DOC", Embedding: []float32{0, 1}},
	}
	for i := 0; i < 5; i++ {
		chunks = append(chunks, index.ContextChunk{
			ID: string(rune('a' + i)), SectionType: index.SectionDoc,
			Name: "filler.md", Text: "filler", Embedding: []float32{1, 0},
		})
	}
	idx := buildIndex(t, engine, chunks)
	e, err := NewEngine(idx, 1000)
	require.NoError(t, err)

	state := mapState{"modus-alert.tsx": "modus-wc-alert.tsx"}
	out, err := e.RetrieveBySection(context.Background(), snippet, 3, 5, state)
	require.NoError(t, err)
	assert.Contains(t, out, "V2 ALERT DOC", "fallback scan must recover exact source-key matches")
}

func TestRetrieveBySectionNotFoundSentinel(t *testing.T) {
	snippet := `<modus-alert message="hi">`
	engine := &hashEngine{dims: 2, vectors: map[string][]float32{snippet: {1, 0}}}
	idx := buildIndex(t, engine, []index.ContextChunk{
		{ID: "a", SectionType: index.SectionV1Component, Name: "modus-alert.tsx", Text: "V1 ALERT DOC", Embedding: []float32{1, 0}},
		{ID: "b", SectionType: index.SectionV2Component, Name: "modus-wc-alert.tsx", Text: "V2 ALERT DOC", Embedding: []float32{0.9, 0.1}},
	})
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	state := mapState{"modus-alert.tsx": MappingNotFound}
	out, err := e.RetrieveBySection(context.Background(), snippet, 5, 5, state)
	require.NoError(t, err)

	assert.Contains(t, out, "V1 ALERT DOC")
	assert.NotContains(t, out, "V2 ALERT DOC")
	v2Pos := strings.Index(out, "### V2 COMPONENT")
	assert.Contains(t, out[v2Pos:], NoContentPlaceholder)
}

func TestRetrieveBySectionNoTags(t *testing.T) {
	engine := &hashEngine{dims: 2}
	idx := buildIndex(t, engine, []index.ContextChunk{
		{ID: "a", SectionType: index.SectionDoc, Name: "a.md", Text: "doc", Embedding: []float32{1, 0}},
	})
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	out, err := e.RetrieveBySection(context.Background(), "<div>no components</div>", 5, 5, mapState{})
	require.NoError(t, err)
	assert.Equal(t, "### V1 COMPONENT\n<no content>\n\n### V2 COMPONENT\n<no content>", out)
}

func TestRetrieveBySectionNilMapping(t *testing.T) {
	snippet := `<modus-alert>`
	engine := &hashEngine{dims: 2, vectors: map[string][]float32{snippet: {1, 0}}}
	idx := buildIndex(t, engine, []index.ContextChunk{
		{ID: "a", SectionType: index.SectionV1Component, Name: "modus-alert.tsx", Text: "V1 ALERT DOC", Embedding: []float32{1, 0}},
	})
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	out, err := e.RetrieveBySection(context.Background(), snippet, 5, 5, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "V1 ALERT DOC")
	assert.NotContains(t, out, "V2 ALERT")
}

func TestNewEngineRejectsBadScanCap(t *testing.T) {
	idx := index.New(&hashEngine{dims: 2})
	_, err := NewEngine(idx, 0)
	require.Error(t, err)
}

func TestRetrieveBySectionKPickLimits(t *testing.T) {
	snippet := `<modus-alert>`
	engine := &hashEngine{dims: 2, vectors: map[string][]float32{snippet: {1, 0}}}
	var chunks []index.ContextChunk
	for i := 0; i < 4; i++ {
		chunks = append(chunks, index.ContextChunk{
			ID: string(rune('a' + i)), SectionType: index.SectionV1Component,
			Name: "modus-alert.tsx", Text: "v1 chunk", Embedding: []float32{1, 0},
		})
	}
	idx := buildIndex(t, engine, chunks)
	e, err := NewEngine(idx, 100)
	require.NoError(t, err)

	out, err := e.RetrieveBySection(context.Background(), snippet, 10, 2, mapState{})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "v1 chunk"))
}
