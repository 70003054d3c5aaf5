package builtin

import (
	"context"
	"fmt"

	"github.com/attunelabs/attune/internal/memory"
	"github.com/attunelabs/attune/internal/tools"
)

// RecallTool reads the last messages of a user's decrypted memory along with
// the per-bucket counts.
type RecallTool struct {
	store *memory.Store
}

// NewRecallTool creates the tool over the shared memory store.
func NewRecallTool(store *memory.Store) *RecallTool {
	return &RecallTool{store: store}
}

func (t *RecallTool) Name() string { return "recall_last_conversation" }

func (t *RecallTool) Description() string {
	return "Recall the most recent messages from the user's conversation memory, with counts per conversation bucket."
}

func (t *RecallTool) Schema() tools.Schema {
	return tools.Schema{
		"user_id": {
			Type:        tools.TypeInteger,
			Required:    true,
			Description: "The id of the user whose conversation to recall",
		},
		"limit": {
			Type:        tools.TypeInteger,
			Description: "Maximum number of messages to return",
			Default:     10,
		},
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	userID, ok := int64Arg(args, "user_id")
	if !ok {
		return nil, fmt.Errorf("user_id is required")
	}
	limit := intArg(args, "limit", 10)
	if limit < 1 {
		limit = 1
	} else if limit > 50 {
		limit = 50
	}

	manager := t.store.ForUser(userID)
	msgs, err := manager.Recall(ctx, limit, "")
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}
	general, ai, err := manager.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count buckets: %w", err)
	}

	out := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, map[string]any{
			"role":      string(msg.Role),
			"content":   msg.Content,
			"type":      string(msg.Type),
			"timestamp": msg.Timestamp,
		})
	}
	return map[string]any{
		"messages":      out,
		"general_count": general,
		"ai_count":      ai,
	}, nil
}
