package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Gather resolves a parsed rule list into source documents, in declared
// rule order. Zero rules means zero store calls. Required rules fail
// the whole gather; optional rules degrade to a warning. Gather never
// writes anything.
func (a *Assembler) Gather(ctx context.Context, rules []SourceRule, sessionID uuid.UUID, iteration int, userID uuid.UUID) ([]SourceDocument, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	displayNames, err := a.stageDisplayNames(ctx, rules)
	if err != nil {
		return nil, err
	}

	var docs []SourceDocument
	for _, rule := range rules {
		name := displayNames[rule.StageSlug]
		switch rule.Kind {
		case RuleKindContribution:
			gathered, err := a.gatherContributions(ctx, rule, name, sessionID, iteration)
			if err != nil {
				return nil, err
			}
			docs = append(docs, gathered...)
		case RuleKindFeedback:
			doc, err := a.gatherFeedback(ctx, rule, name, sessionID, iteration, userID)
			if err != nil {
				return nil, err
			}
			if doc != nil {
				docs = append(docs, *doc)
			}
		case RuleKindHeaderContext:
			// Consumed by the turn orchestrator directly, not gathered.
		}
	}
	return docs, nil
}

func (a *Assembler) stageDisplayNames(ctx context.Context, rules []SourceRule) (map[string]string, error) {
	seen := map[string]bool{}
	var slugs []string
	for _, r := range rules {
		if r.Kind == RuleKindHeaderContext || seen[r.StageSlug] {
			continue
		}
		seen[r.StageSlug] = true
		slugs = append(slugs, r.StageSlug)
	}
	names := map[string]string{}
	if len(slugs) > 0 {
		fetched, err := a.deps.Stages.DisplayNames(ctx, slugs)
		if err != nil {
			return nil, fmt.Errorf("Failed to resolve stage display names: %w", err)
		}
		names = fetched
	}
	for _, slug := range slugs {
		if names[slug] == "" {
			names[slug] = titleFromSlug(slug)
		}
	}
	return names, nil
}

func (a *Assembler) gatherContributions(ctx context.Context, rule SourceRule, stageName string, sessionID uuid.UUID, iteration int) ([]SourceDocument, error) {
	contribs, err := a.deps.Contributions.ListLatestForStage(ctx, sessionID, iteration, rule.StageSlug)
	if err != nil {
		if rule.Required {
			return nil, fmt.Errorf("Failed to fetch contributions for stage '%s': %w", stageName, err)
		}
		a.log.Warn("Skipping optional contribution rule after lookup failure", "stage_slug", rule.StageSlug, "error", err.Error())
		return nil, nil
	}
	if len(contribs) == 0 {
		if rule.Required {
			return nil, fmt.Errorf("Required contributions for stage '%s' were not found.", stageName)
		}
		return nil, nil
	}
	if !rule.Multiple {
		contribs = contribs[:1]
	}

	header := rule.SectionHeader
	if header == "" {
		header = stageName + " Documents"
	}
	var docs []SourceDocument
	for _, c := range contribs {
		content, err := a.deps.Objects.Download(ctx, c.StorageBucket, objectPath(c.StoragePath, c.FileName))
		if err != nil {
			if rule.Required {
				return nil, fmt.Errorf("Failed to download REQUIRED content for contribution %s from stage '%s': %w", c.ID, stageName, err)
			}
			a.log.Warn("Skipping optional contribution after download failure", "contribution_id", c.ID.String(), "error", err.Error())
			continue
		}
		documentKey := rule.DocumentKey
		if documentKey == "" {
			documentKey = c.ContributionType
		}
		docs = append(docs, SourceDocument{
			ID:      c.ID.String(),
			Type:    DocumentTypeDocument,
			Content: string(content),
			Metadata: SourceDocumentMetadata{
				DisplayName: stageName,
				Header:      header,
				ModelName:   c.ModelName,
				DocumentKey: documentKey,
			},
		})
	}
	if rule.Required && len(docs) == 0 {
		return nil, fmt.Errorf("Required contributions for stage '%s' were not found.", stageName)
	}
	return docs, nil
}

// gatherFeedback targets the previous iteration's feedback, clamped to
// iteration 1, because feedback on iteration N is written before
// iteration N+1 assembles.
func (a *Assembler) gatherFeedback(ctx context.Context, rule SourceRule, stageName string, sessionID uuid.UUID, iteration int, userID uuid.UUID) (*SourceDocument, error) {
	target := iteration - 1
	if target < 1 {
		target = 1
	}
	fb, err := a.deps.Feedback.GetForIteration(ctx, sessionID, rule.StageSlug, target, userID)
	if err != nil {
		if rule.Required {
			return nil, fmt.Errorf("Failed to fetch feedback for stage '%s': %w", stageName, err)
		}
		a.log.Warn("Skipping optional feedback rule after lookup failure", "stage_slug", rule.StageSlug, "error", err.Error())
		return nil, nil
	}
	if fb == nil {
		if rule.Required {
			return nil, fmt.Errorf("Required feedback for stage '%s' was not found.", stageName)
		}
		return nil, nil
	}
	content, err := a.deps.Objects.Download(ctx, fb.StorageBucket, objectPath(fb.StoragePath, fb.FileName))
	if err != nil {
		if rule.Required {
			return nil, fmt.Errorf("Failed to download REQUIRED content for feedback %s from stage '%s': %w", fb.ID, stageName, err)
		}
		a.log.Warn("Skipping optional feedback after download failure", "feedback_id", fb.ID.String(), "error", err.Error())
		return nil, nil
	}
	header := rule.SectionHeader
	if header == "" {
		header = stageName + " Feedback"
	}
	documentKey := rule.DocumentKey
	if documentKey == "" {
		documentKey = "user_feedback"
	}
	return &SourceDocument{
		ID:      fb.ID.String(),
		Type:    DocumentTypeFeedback,
		Content: string(content),
		Metadata: SourceDocumentMetadata{
			DisplayName: stageName,
			Header:      header,
			DocumentKey: documentKey,
		},
	}, nil
}

// objectPath joins a storage directory and file name without doubling
// separators.
func objectPath(dir, file string) string {
	dir = strings.TrimRight(dir, "/")
	if dir == "" {
		return file
	}
	if file == "" {
		return dir
	}
	return dir + "/" + file
}

// titleFromSlug turns "paralysis-check" into "Paralysis Check" for
// stages with no stored display name.
func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
