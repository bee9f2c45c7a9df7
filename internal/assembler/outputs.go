package assembler

import (
	"encoding/json"
	"fmt"
)

// OutputsKind discriminates the three historical shapes of a recipe
// step's outputs_required column.
type OutputsKind int

const (
	// OutputsNone: column absent or empty.
	OutputsNone OutputsKind = iota
	// OutputsLegacyList: a bare array of artifact names from recipes
	// that predate structured contracts.
	OutputsLegacyList
	// OutputsPlan: object with context_for_documents; a PLAN step that
	// instructs the model which documents to plan context for.
	OutputsPlan
	// OutputsExecute: object with files_to_generate; an EXECUTE step
	// that maps planned document keys to output files.
	OutputsExecute
)

// FileToGenerate maps one planned document key to the file an EXECUTE
// step must produce for it.
type FileToGenerate struct {
	FromDocumentKey  string `json:"from_document_key"`
	TemplateFileName string `json:"template_filename,omitempty"`
	FileName         string `json:"filename,omitempty"`
}

// ContextForDocument declares one document a PLAN step must gather
// context for. ContentToInclude lists the keys the planner is expected
// to fill; at planning time the values are typically empty.
type ContextForDocument struct {
	DocumentKey      string         `json:"document_key"`
	ContentToInclude map[string]any `json:"content_to_include,omitempty"`
}

// OutputContract is the parsed, closed-sum view of outputs_required.
// Kind names the step's primary shape; both slices stay populated when
// present, since an EXECUTE step also carries the per-document
// context_for_documents contract its turns are validated against.
type OutputContract struct {
	Kind                OutputsKind
	LegacyArtifacts     []string
	ContextForDocuments []ContextForDocument
	FilesToGenerate     []FileToGenerate
}

type rawOutputContract struct {
	ContextForDocuments []ContextForDocument `json:"context_for_documents"`
	FilesToGenerate     []FileToGenerate     `json:"files_to_generate"`
}

// ParseOutputContract decodes outputs_required once, up front, so the
// orchestrators never poke at raw JSON. Unlike source rules this parse
// is strict: a malformed column is a configuration error, not a
// degradation.
func ParseOutputContract(raw []byte) (*OutputContract, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &OutputContract{Kind: OutputsNone}, nil
	}
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return &OutputContract{Kind: OutputsLegacyList, LegacyArtifacts: legacy}, nil
	}
	var rc rawOutputContract
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("Failed to parse outputs_required: %w", err)
	}
	out := &OutputContract{
		ContextForDocuments: rc.ContextForDocuments,
		FilesToGenerate:     rc.FilesToGenerate,
	}
	switch {
	case len(rc.FilesToGenerate) > 0:
		out.Kind = OutputsExecute
	case len(rc.ContextForDocuments) > 0:
		out.Kind = OutputsPlan
	default:
		out.Kind = OutputsNone
	}
	return out, nil
}

// FileFor returns the files_to_generate entry for a document key.
func (c *OutputContract) FileFor(documentKey string) (FileToGenerate, bool) {
	for _, f := range c.FilesToGenerate {
		if f.FromDocumentKey == documentKey {
			return f, true
		}
	}
	return FileToGenerate{}, false
}

// ContextFor returns the context_for_documents entry for a document key.
func (c *OutputContract) ContextFor(documentKey string) (ContextForDocument, bool) {
	for _, d := range c.ContextForDocuments {
		if d.DocumentKey == documentKey {
			return d, true
		}
	}
	return ContextForDocument{}, false
}
