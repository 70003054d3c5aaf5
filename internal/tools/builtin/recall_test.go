package builtin

import (
	"context"
	"testing"

	"github.com/attunelabs/attune/internal/memory"
	"github.com/attunelabs/attune/pkg/models"
)

func TestRecallReturnsMessagesAndCounts(t *testing.T) {
	ctx := context.Background()
	repo, userID := newRepoWithUser(t)
	store := memory.NewStore(repo, nil, 0, 0)

	manager := store.ForUser(userID)
	if err := manager.Append(ctx, models.NewMessage(models.RoleUser, "hello", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := manager.Append(ctx, models.NewMessage(models.RoleAssistant, "hi!", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := manager.Append(ctx, models.NewMessage(models.RoleUser, "room chatter", models.TypeGeneral)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	tool := NewRecallTool(store)
	result, err := tool.Execute(ctx, map[string]any{
		"user_id": userID,
		"limit":   10,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out := result.(map[string]any)
	if out["general_count"] != 1 || out["ai_count"] != 2 {
		t.Errorf("counts = %v / %v", out["general_count"], out["ai_count"])
	}
	msgs := out["messages"].([]map[string]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0]["content"] != "hello" {
		t.Errorf("first message = %v", msgs[0])
	}
}

func TestRecallLimitClamped(t *testing.T) {
	ctx := context.Background()
	repo, userID := newRepoWithUser(t)
	store := memory.NewStore(repo, nil, 0, 0)

	tool := NewRecallTool(store)
	if _, err := tool.Execute(ctx, map[string]any{
		"user_id": userID,
		"limit":   500,
	}); err != nil {
		t.Fatalf("Execute with oversized limit: %v", err)
	}
}
