package assembler

import (
	"encoding/json"
	"strings"
)

// RuleKind is the artifact class a source rule targets.
type RuleKind string

const (
	RuleKindContribution  RuleKind = "contribution"
	RuleKindFeedback      RuleKind = "feedback"
	RuleKindHeaderContext RuleKind = "header_context"
)

// SourceRule is one parsed input declaration. Required rules fail the
// whole assembly when their artifact is missing; optional rules are
// skipped silently.
type SourceRule struct {
	Kind          RuleKind
	StageSlug     string
	Required      bool
	Multiple      bool
	SectionHeader string
	DocumentKey   string
}

type rawSourceRule struct {
	Type          string `json:"type"`
	StageSlug     string `json:"stage_slug"`
	Slug          string `json:"slug"`
	Required      *bool  `json:"required"`
	Multiple      bool   `json:"multiple"`
	SectionHeader string `json:"section_header"`
	DocumentKey   string `json:"document_key"`
}

// ParseSourceRules decodes a rules column leniently: nil, malformed or
// non-array input yields zero rules, unknown rule types are dropped,
// and a rule without a stage slug falls back to currentStageSlug.
// Parsing never fails; bad configuration degrades to "gather nothing"
// and the downstream required checks report what is actually missing.
func ParseSourceRules(raw []byte, currentStageSlug string) []SourceRule {
	if len(raw) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Column may wrap the list in a {"sources": [...]} envelope.
		var envelope struct {
			Sources []json.RawMessage `json:"sources"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Sources == nil {
			return nil
		}
		entries = envelope.Sources
	}
	rules := make([]SourceRule, 0, len(entries))
	for _, entry := range entries {
		var rr rawSourceRule
		if err := json.Unmarshal(entry, &rr); err != nil {
			continue
		}
		kind := RuleKind(strings.ToLower(strings.TrimSpace(rr.Type)))
		switch kind {
		case RuleKindContribution, RuleKindFeedback, RuleKindHeaderContext:
		default:
			continue
		}
		slug := rr.StageSlug
		if slug == "" {
			slug = rr.Slug
		}
		if slug == "" {
			slug = currentStageSlug
		}
		required := true
		if rr.Required != nil {
			required = *rr.Required
		}
		rules = append(rules, SourceRule{
			Kind:          kind,
			StageSlug:     slug,
			Required:      required,
			Multiple:      rr.Multiple,
			SectionHeader: rr.SectionHeader,
			DocumentKey:   rr.DocumentKey,
		})
	}
	return rules
}
