package assembler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dialecticlabs/dialectic-backend/internal/types"
)

// ReconstructConversation rebuilds the message history of a chunked
// generation from its root contribution: the original seed prompt as
// the opening user turn, each stored fragment as an assistant turn, and
// a synthetic "Please continue." user turn between fragments. The
// returned sequence always ends on an assistant turn.
func (a *Assembler) ReconstructConversation(ctx context.Context, rootID uuid.UUID) ([]Message, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.ReconstructConversation")
	defer span.End()

	root, err := a.deps.Contributions.GetByID(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch root contribution %s: %w", rootID, err)
	}
	if root == nil {
		return nil, fmt.Errorf("Root contribution %s not found", rootID)
	}
	// Stage identity must be direct on the root; relationships of other
	// rows never stand in for it.
	if strings.TrimSpace(root.Stage) == "" {
		return nil, fmt.Errorf("Root contribution %s has no stage information", root.ID)
	}

	related, err := a.deps.Contributions.ListByRoot(ctx, root.Stage, root.ID)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch continuation chunks for root %s: %w", root.ID, err)
	}
	chunks := orderChunks(root, related)

	seedPath := objectPath(stageRootPath(root.StoragePath), "seed_prompt.md")
	seed, err := a.deps.Objects.Download(ctx, root.StorageBucket, seedPath)
	if err != nil {
		return nil, fmt.Errorf("Failed to download seed prompt from %s: %w", seedPath, err)
	}

	messages := []Message{{Role: RoleUser, Content: string(seed)}}
	for i, c := range chunks {
		if i > 0 {
			messages = append(messages, Message{Role: RoleUser, Content: ContinuePrompt})
		}
		content, err := a.deps.Objects.Download(ctx, c.StorageBucket, objectPath(c.StoragePath, c.FileName))
		if err != nil {
			return nil, fmt.Errorf("Failed to download content for chunk %s: %w", c.ID, err)
		}
		messages = append(messages, Message{Role: RoleAssistant, Content: string(content), ID: c.ID.String()})
	}
	return messages, nil
}

// orderChunks sorts a generation lineage into replay order: the root
// first, then explicit turn indexes ascending, then index-less chunks
// by creation time. The root is deduplicated if the store returned it.
func orderChunks(root *types.Contribution, related []*types.Contribution) []*types.Contribution {
	type chunk struct {
		c        *types.Contribution
		hasIndex bool
		index    int
	}
	var rest []chunk
	for _, c := range related {
		if c.ID == root.ID {
			continue
		}
		rel, err := ParseDocumentRelationships(c.DocumentRelationships)
		if err != nil {
			// Unparseable relationships sort with the index-less tail.
			rest = append(rest, chunk{c: c})
			continue
		}
		if rel.TurnIndex != nil {
			rest = append(rest, chunk{c: c, hasIndex: true, index: *rel.TurnIndex})
		} else {
			rest = append(rest, chunk{c: c})
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i], rest[j]
		if a.hasIndex != b.hasIndex {
			return a.hasIndex
		}
		if a.hasIndex {
			return a.index < b.index
		}
		return a.c.CreatedAt.Before(b.c.CreatedAt)
	})
	out := make([]*types.Contribution, 0, len(rest)+1)
	out = append(out, root)
	for _, ch := range rest {
		out = append(out, ch.c)
	}
	return out
}

// stageRootPath strips the working suffix from a contribution path so
// the stage-scoped seed prompt can be located next to the outputs.
func stageRootPath(storagePath string) string {
	return strings.TrimSuffix(strings.TrimRight(storagePath, "/"), "/_work")
}
