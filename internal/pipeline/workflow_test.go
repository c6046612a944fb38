package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/llm"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/store"
)

// routedClient answers by first matching substring rule, in order.
type routedClient struct {
	rules   []routeRule
	prompts []string
}

type routeRule struct {
	match    string
	response string
}

func (c *routedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithMaxTokens(ctx, prompt, 0)
}

func (c *routedClient) CompleteWithMaxTokens(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.prompts = append(c.prompts, prompt)
	for _, r := range c.rules {
		if strings.Contains(prompt, r.match) {
			return r.response, nil
		}
	}
	return "[]", nil
}

func newTestStore(t *testing.T) *store.ContextStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUnits(t *testing.T, s *store.ContextStore, units ...store.Unit) {
	t.Helper()
	for _, u := range units {
		require.NoError(t, s.UpsertUnit(context.Background(), u))
	}
}

func TestLoadContextAttachesDocs(t *testing.T) {
	s := newTestStore(t)
	seedUnits(t, s,
		store.Unit{Category: store.CategoryV1Components, Name: "modus-alert.tsx", Content: "v1 source"},
		store.Unit{Category: store.CategoryV1Docs, Name: "modus-alert", Content: "message: the alert prop"},
		store.Unit{Category: store.CategoryV2Components, Name: "modus-wc-alert.tsx", Content: "v2 source"},
	)

	w := New(s, &routedClient{})
	state := NewState()
	require.NoError(t, w.LoadContext(context.Background(), state))

	require.Contains(t, state.V1Components, "modus-alert.tsx")
	assert.Equal(t, "v1 source", state.V1Components["modus-alert.tsx"].Source)
	assert.Equal(t, "message: the alert prop", state.V1Components["modus-alert.tsx"].Documentation)
	assert.Contains(t, state.V2Components, "modus-wc-alert.tsx")
	assert.Empty(t, state.V2Components["modus-wc-alert.tsx"].Documentation)
}

func TestLoadContextUnwrapsConstraints(t *testing.T) {
	s := newTestStore(t)
	seedUnits(t, s, store.Unit{
		Category: store.CategoryConstraints,
		Name:     "constraints.json",
		Content:  `{"constraints": [{"type": "breaking", "description": "renamed props"}]}`,
	})

	w := New(s, &routedClient{})
	state := NewState()
	require.NoError(t, w.LoadContext(context.Background(), state))

	require.Len(t, state.Constraints, 1)
	assert.Equal(t, "breaking", state.Constraints[0].Type)
	assert.Equal(t, "renamed props", state.Constraints[0].Description)
}

func TestLoadContextConstraintsList(t *testing.T) {
	s := newTestStore(t)
	seedUnits(t, s, store.Unit{
		Category: store.CategoryConstraints,
		Name:     "constraints.json",
		Content:  `[{"type": "styling", "description": "tokens changed"}]`,
	})

	w := New(s, &routedClient{})
	state := NewState()
	require.NoError(t, w.LoadContext(context.Background(), state))

	require.Len(t, state.Constraints, 1)
	assert.Equal(t, "styling", state.Constraints[0].Type)
}

func TestExtractProps(t *testing.T) {
	doc := strings.Join([]string{
		"message: the alert message prop",
		"Props:",
		"type: which property controls variant",
		"no colon line about props",
		"unrelated: line without the keyword",
		"message: repeated prop line",
	}, "\n")

	props := extractProps(doc)
	assert.Equal(t, []string{"message", "type"}, props)
}

func TestExtractPropsEmptyDoc(t *testing.T) {
	assert.Nil(t, extractProps(""))
}

func TestAnalyzeComponents(t *testing.T) {
	w := New(newTestStore(t), &routedClient{})
	state := NewState()
	state.V1Components["modus-alert.tsx"] = &Component{
		Documentation: "message: the alert message prop",
	}

	require.NoError(t, w.AnalyzeComponents(context.Background(), state))
	assert.Equal(t, []string{"message"}, state.V1Components["modus-alert.tsx"].Props)
}

func TestGenerateMappingParsesResponse(t *testing.T) {
	client := &routedClient{rules: []routeRule{
		{"component mapping from Modus 1.0", "```json\n{\"modus-alert.tsx\": {\"new_tag\": \"modus-wc-alert.tsx\", \"props\": [\"message\"]}}\n```"},
	}}
	w := New(newTestStore(t), client)
	state := NewState()

	require.NoError(t, w.GenerateMapping(context.Background(), state))
	require.Contains(t, state.ComponentMap, "modus-alert.tsx")
	assert.Equal(t, "modus-wc-alert.tsx", state.ComponentMap["modus-alert.tsx"].NewTag)
}

func TestGenerateMappingParseFailureContinuesChain(t *testing.T) {
	s := newTestStore(t)
	client := &routedClient{rules: []routeRule{
		{"component mapping from Modus 1.0", "I cannot produce JSON today."},
		{"migration constraints", `[{"type": "breaking", "description": "x"}]`},
	}}
	w := New(s, client)

	state, metrics, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, state.ComponentMap)
	require.Len(t, state.Constraints, 1, "constraints stage must still run after a mapping parse failure")
	assert.Equal(t, 1, metrics.DecodeFailures)
	assert.Equal(t, 4, metrics.ModelCalls)
}

func TestRunStageOrder(t *testing.T) {
	client := &routedClient{}
	w := New(newTestStore(t), client)

	_, _, err := w.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, client.prompts, 4)
	assert.Contains(t, client.prompts[0], "component mapping")
	assert.Contains(t, client.prompts[1], "migration constraints")
	assert.Contains(t, client.prompts[2], "step-by-step migration plan")
	assert.Contains(t, client.prompts[3], "verification rules")
}

func TestMigrateCodeExtractsFence(t *testing.T) {
	client := &routedClient{rules: []routeRule{
		{"Migrate the following code", "Here you go:\n```html\n<modus-wc-alert alert-title=\"hi\"></modus-wc-alert>\n```"},
	}}
	w := New(newTestStore(t), client)
	state := NewState()
	state.CurrentFile = "page.html"
	state.ModifiedCode["page.html"] = `<modus-alert message="hi"></modus-alert>`

	require.NoError(t, w.MigrateCode(context.Background(), state))
	assert.Equal(t, `<modus-wc-alert alert-title="hi"></modus-wc-alert>`, state.ModifiedCode["page.html"])
}

func TestMigrateCodeFallsBackToFullResponse(t *testing.T) {
	client := &routedClient{rules: []routeRule{
		{"Migrate the following code", "  <modus-wc-alert></modus-wc-alert>  "},
	}}
	w := New(newTestStore(t), client)
	state := NewState()
	state.CurrentFile = "page.html"
	state.ModifiedCode["page.html"] = "<modus-alert></modus-alert>"

	require.NoError(t, w.MigrateCode(context.Background(), state))
	assert.Equal(t, "<modus-wc-alert></modus-wc-alert>", state.ModifiedCode["page.html"])
}

func TestMigrateCodeNoOpWithoutStagedCode(t *testing.T) {
	client := &routedClient{}
	w := New(newTestStore(t), client)
	state := NewState()

	require.NoError(t, w.MigrateCode(context.Background(), state))
	assert.Empty(t, client.prompts, "must not call the model without staged code")
}

func TestVerifyMigrationReplacesRules(t *testing.T) {
	client := &routedClient{rules: []routeRule{
		{"Verify the following migrated code", `[{"rule": "tags renamed", "status": "verified", "result": "pass", "comment": "ok"}]`},
	}}
	w := New(newTestStore(t), client)
	state := NewState()
	state.CurrentFile = "page.html"
	state.ModifiedCode["page.html"] = "<modus-wc-alert></modus-wc-alert>"
	state.VerificationRules = []VerificationRule{{Rule: "tags renamed", Status: "pending"}}

	require.NoError(t, w.VerifyMigration(context.Background(), state))
	require.Len(t, state.VerificationRules, 1)
	assert.Equal(t, "pass", state.VerificationRules[0].Result)
	assert.Equal(t, "verified", state.VerificationRules[0].Status)
}

func TestVerifyMigrationKeepsRulesOnParseFailure(t *testing.T) {
	client := &routedClient{rules: []routeRule{
		{"Verify the following migrated code", "not json at all"},
	}}
	w := New(newTestStore(t), client)
	state := NewState()
	state.CurrentFile = "page.html"
	state.ModifiedCode["page.html"] = "<modus-wc-alert></modus-wc-alert>"
	prior := []VerificationRule{{Rule: "tags renamed", Status: "pending"}}
	state.VerificationRules = prior

	require.NoError(t, w.VerifyMigration(context.Background(), state))
	assert.Equal(t, prior, state.VerificationRules, "parse failure must keep the prior rules")
}

func TestRunFileFullChain(t *testing.T) {
	s := newTestStore(t)
	seedUnits(t, s,
		store.Unit{Category: store.CategoryV1Components, Name: "modus-alert.tsx", Content: "v1 source"},
	)
	client := &routedClient{rules: []routeRule{
		{"component mapping from Modus 1.0", `{"modus-alert.tsx": {"new_tag": "modus-wc-alert.tsx"}}`},
		{"Migrate the following code", "```html\n<modus-wc-alert></modus-wc-alert>\n```"},
		{"Verify the following migrated code", `[{"rule": "r", "result": "pass"}]`},
	}}
	w := New(s, client)

	state, metrics, err := w.RunFile(context.Background(), "page.html", "<modus-alert></modus-alert>")
	require.NoError(t, err)

	assert.Equal(t, "<modus-wc-alert></modus-wc-alert>", state.ModifiedCode["page.html"])
	require.Len(t, state.VerificationRules, 1)
	assert.Equal(t, "pass", state.VerificationRules[0].Result)
	assert.Equal(t, 6, metrics.ModelCalls)
}

func TestCacheHitsReportedPerRun(t *testing.T) {
	s := newTestStore(t)
	client := llm.NewCachingClient(&routedClient{})

	// Cold cache: every stage prompt misses.
	first := New(s, client)
	_, metrics, err := first.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), metrics.CacheHits)

	// Identical prompts now hit for each generative stage.
	second := New(s, client)
	_, metrics, err = second.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), metrics.CacheHits)

	// A later workflow sharing the client reports only its own hits,
	// not the accumulated counter.
	third := New(s, client)
	_, metrics, err = third.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), metrics.CacheHits)
}

func TestLookupMapping(t *testing.T) {
	state := NewState()
	state.ComponentMap["modus-alert.tsx"] = MappingEntry{NewTag: "modus-wc-alert.tsx"}

	got, ok := state.LookupMapping("modus-alert.tsx")
	require.True(t, ok)
	assert.Equal(t, "modus-wc-alert.tsx", got)

	_, ok = state.LookupMapping("modus-button.tsx")
	assert.False(t, ok)
}
