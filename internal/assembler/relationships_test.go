package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentRelationships_FlatWireShape(t *testing.T) {
	raw := []byte(`{"thesis": "11111111-1111-1111-1111-111111111111", "isContinuation": true, "turnIndex": 2}`)
	rel, err := ParseDocumentRelationships(raw)
	require.NoError(t, err)

	root, ok := rel.RootFor("thesis")
	require.True(t, ok)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", root)
	assert.True(t, rel.IsContinuation)
	require.NotNil(t, rel.TurnIndex)
	assert.Equal(t, 2, *rel.TurnIndex)

	_, ok = rel.RootFor("antithesis")
	assert.False(t, ok)
}

func TestParseDocumentRelationships_Empty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(``)} {
		rel, err := ParseDocumentRelationships(raw)
		require.NoError(t, err)
		assert.False(t, rel.IsContinuation)
		assert.Nil(t, rel.TurnIndex)
		assert.Empty(t, rel.Roots)
	}
}

func TestParseDocumentRelationships_RejectsNonStringRoot(t *testing.T) {
	_, err := ParseDocumentRelationships([]byte(`{"thesis": 42}`))
	assert.Error(t, err)
}

func TestDocumentRelationships_MarshalRoundTrip(t *testing.T) {
	idx := 3
	rel := DocumentRelationships{
		Roots:          map[string]string{"thesis": "root-a", "antithesis": "root-b"},
		IsContinuation: true,
		TurnIndex:      &idx,
	}
	raw, err := rel.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"antithesis": "root-b", "thesis": "root-a", "isContinuation": true, "turnIndex": 3}`, string(raw))

	var back DocumentRelationships
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.Equal(t, rel, back)
}

func TestDocumentRelationships_OmitsAbsentMarkers(t *testing.T) {
	raw, err := DocumentRelationships{Roots: map[string]string{"thesis": "root-a"}}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"thesis": "root-a"}`, string(raw))
}
