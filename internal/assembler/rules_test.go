package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceRules_ArrayShape(t *testing.T) {
	raw := []byte(`[
		{"type": "contribution", "stage_slug": "thesis", "multiple": true, "section_header": "Thesis Documents", "document_key": "business_case"},
		{"type": "feedback", "stage_slug": "thesis", "required": false}
	]`)
	rules := ParseSourceRules(raw, "antithesis")
	require.Len(t, rules, 2)

	assert.Equal(t, RuleKindContribution, rules[0].Kind)
	assert.Equal(t, "thesis", rules[0].StageSlug)
	assert.True(t, rules[0].Required, "required defaults to true")
	assert.True(t, rules[0].Multiple)
	assert.Equal(t, "Thesis Documents", rules[0].SectionHeader)
	assert.Equal(t, "business_case", rules[0].DocumentKey)

	assert.Equal(t, RuleKindFeedback, rules[1].Kind)
	assert.False(t, rules[1].Required)
}

func TestParseSourceRules_SourcesEnvelope(t *testing.T) {
	raw := []byte(`{"sources": [{"type": "contribution", "slug": "thesis"}]}`)
	rules := ParseSourceRules(raw, "antithesis")
	require.Len(t, rules, 1)
	assert.Equal(t, "thesis", rules[0].StageSlug)
}

func TestParseSourceRules_MissingSlugFallsBackToCurrentStage(t *testing.T) {
	raw := []byte(`[{"type": "feedback"}]`)
	rules := ParseSourceRules(raw, "synthesis")
	require.Len(t, rules, 1)
	assert.Equal(t, "synthesis", rules[0].StageSlug)
}

func TestParseSourceRules_LenientOnBadInput(t *testing.T) {
	cases := map[string][]byte{
		"nil":          nil,
		"empty":        []byte(``),
		"not json":     []byte(`{{nope`),
		"scalar":       []byte(`42`),
		"object":       []byte(`{"foo": "bar"}`),
		"unknown type": []byte(`[{"type": "telepathy", "stage_slug": "thesis"}]`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, ParseSourceRules(raw, "thesis"))
		})
	}
}

func TestParseSourceRules_SkipsMalformedEntriesKeepsRest(t *testing.T) {
	raw := []byte(`[
		{"type": "contribution", "stage_slug": "thesis"},
		"not an object",
		{"type": "feedback", "stage_slug": "thesis"}
	]`)
	rules := ParseSourceRules(raw, "antithesis")
	require.Len(t, rules, 2)
	assert.Equal(t, RuleKindContribution, rules[0].Kind)
	assert.Equal(t, RuleKindFeedback, rules[1].Kind)
}

func TestParseOutputContract_Shapes(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c, err := ParseOutputContract(nil)
		require.NoError(t, err)
		assert.Equal(t, OutputsNone, c.Kind)
	})

	t.Run("legacy list", func(t *testing.T) {
		c, err := ParseOutputContract([]byte(`["thesis.md", "notes.md"]`))
		require.NoError(t, err)
		assert.Equal(t, OutputsLegacyList, c.Kind)
		assert.Equal(t, []string{"thesis.md", "notes.md"}, c.LegacyArtifacts)
	})

	t.Run("plan", func(t *testing.T) {
		c, err := ParseOutputContract([]byte(`{"context_for_documents": [{"document_key": "business_case", "content_to_include": {"summary": ""}}]}`))
		require.NoError(t, err)
		assert.Equal(t, OutputsPlan, c.Kind)
		require.Len(t, c.ContextForDocuments, 1)
		assert.Equal(t, "business_case", c.ContextForDocuments[0].DocumentKey)
	})

	t.Run("execute keeps document contract", func(t *testing.T) {
		c, err := ParseOutputContract([]byte(`{
			"files_to_generate": [{"from_document_key": "business_case", "filename": "business_case.md"}],
			"context_for_documents": [{"document_key": "business_case", "content_to_include": {"summary": "", "risks": ""}}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, OutputsExecute, c.Kind)
		file, ok := c.FileFor("business_case")
		require.True(t, ok)
		assert.Equal(t, "business_case.md", file.FileName)
		contract, ok := c.ContextFor("business_case")
		require.True(t, ok)
		assert.Len(t, contract.ContentToInclude, 2)
	})

	t.Run("malformed is an error", func(t *testing.T) {
		_, err := ParseOutputContract([]byte(`"just a string"`))
		assert.Error(t, err)
	})
}
