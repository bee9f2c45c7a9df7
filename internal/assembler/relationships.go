package assembler

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DocumentRelationships links a contribution to the root of its
// generation lineage, one root per stage slug, plus the continuation
// markers. The wire shape is flat: stage slugs map directly to root ids
// at the top level, alongside the optional isContinuation and turnIndex
// fields.
type DocumentRelationships struct {
	Roots          map[string]string
	IsContinuation bool
	TurnIndex      *int
}

// ParseDocumentRelationships decodes the jsonb column. Nil or empty
// input yields a zero record. Unknown scalar fields are treated as
// stage-root entries; non-string values under stage keys are rejected.
func ParseDocumentRelationships(raw []byte) (DocumentRelationships, error) {
	var rel DocumentRelationships
	if len(raw) == 0 {
		return rel, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rel, fmt.Errorf("Failed to parse document_relationships: %w", err)
	}
	for key, val := range fields {
		switch key {
		case "isContinuation":
			if err := json.Unmarshal(val, &rel.IsContinuation); err != nil {
				return rel, fmt.Errorf("Failed to parse document_relationships field isContinuation: %w", err)
			}
		case "turnIndex":
			var idx int
			if err := json.Unmarshal(val, &idx); err != nil {
				return rel, fmt.Errorf("Failed to parse document_relationships field turnIndex: %w", err)
			}
			rel.TurnIndex = &idx
		default:
			var id string
			if err := json.Unmarshal(val, &id); err != nil {
				return rel, fmt.Errorf("Failed to parse document_relationships root for stage %q: %w", key, err)
			}
			if rel.Roots == nil {
				rel.Roots = map[string]string{}
			}
			rel.Roots[key] = id
		}
	}
	return rel, nil
}

// RootFor returns the root contribution id recorded for a stage slug.
func (r DocumentRelationships) RootFor(stageSlug string) (string, bool) {
	id, ok := r.Roots[stageSlug]
	return id, ok && id != ""
}

// MarshalJSON writes the flat wire shape. Stage keys are emitted in
// sorted order so serialized records are stable.
func (r DocumentRelationships) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Roots)+2)
	for slug, id := range r.Roots {
		out[slug] = id
	}
	if r.IsContinuation {
		out["isContinuation"] = true
	}
	if r.TurnIndex != nil {
		out["turnIndex"] = *r.TurnIndex
	}
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(out[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON mirrors ParseDocumentRelationships for struct decoding.
func (r *DocumentRelationships) UnmarshalJSON(raw []byte) error {
	parsed, err := ParseDocumentRelationships(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
