package memory

import (
	"context"
	"testing"
	"time"

	"github.com/attunelabs/attune/internal/crypto"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/pkg/models"
)

func mustAddUser(t *testing.T, repo *storage.MemoryRepository, username string) int64 {
	t.Helper()
	user := &models.User{Username: username}
	if err := repo.AddUser(context.Background(), user); err != nil {
		t.Fatalf("AddUser(%s): %v", username, err)
	}
	return user.ID
}

func newTestManager(t *testing.T) (*Manager, *storage.MemoryRepository) {
	t.Helper()
	repo := storage.NewMemoryRepository()
	id := mustAddUser(t, repo, "alice")
	return NewManager(repo, nil, id, 3, 5), repo
}

func TestAppendAndRecall(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	if err := m.Append(ctx, models.NewMessage(models.RoleUser, "hello", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append(ctx, models.NewMessage(models.RoleAssistant, "hi there", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := m.Recall(ctx, 10, models.TypeAI)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Errorf("messages out of order: %+v", msgs)
	}
}

func TestInternalPromptFiltered(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	triggers := []string{
		"CONVERSATION MONITORING REQUEST for user 1",
		"INSTRUCTIONS: respond only with",
		"Should you intervene here?",
		"NO_INTERVENTION_NEEDED",
		"You are monitoring this conversation between",
		"Analyze if intervention is needed now",
	}
	for _, content := range triggers {
		if err := m.Append(ctx, models.NewMessage(models.RoleSystem, content, models.TypeAI)); err != nil {
			t.Fatalf("Append(%q): %v", content, err)
		}
	}

	msgs, err := m.Recall(ctx, 100, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("internal prompts persisted: %+v", msgs)
	}
}

func TestBucketBounds(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t) // maxGeneral=3, maxAI=5

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		msg := models.NewMessage(models.RoleUser, "general", models.TypeGeneral)
		msg.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := m.Append(ctx, msg); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		msg := models.NewMessage(models.RoleUser, "ai", models.TypeAI)
		msg.Timestamp = base.Add(time.Duration(100+i) * time.Second)
		if err := m.Append(ctx, msg); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	general, ai, err := m.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if general != 3 || ai != 5 {
		t.Errorf("counts = (%d, %d), want (3, 5)", general, ai)
	}

	merged, err := m.Recall(ctx, 0, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(merged) != 8 {
		t.Errorf("merged len = %d, want 8", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Timestamp.Before(merged[i-1].Timestamp) {
			t.Errorf("merged history not chronological at %d", i)
		}
	}
}

func TestFlushRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	mustAddUser(t, repo, "alice")

	m := NewManager(repo, nil, 1, 0, 0)
	if err := m.Append(ctx, models.NewMessage(models.RoleUser, "persist me", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	blob, err := repo.GetEncryptedMemory(ctx, 1)
	if err != nil {
		t.Fatalf("GetEncryptedMemory: %v", err)
	}
	if !crypto.IsEncrypted(blob) {
		t.Fatalf("blob not encrypted: %q", blob)
	}

	// A second manager for the same user reads the same view back.
	reload := NewManager(repo, nil, 1, 0, 0)
	msgs, err := reload.Recall(ctx, 10, "")
	if err != nil {
		t.Fatalf("Recall after reload: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persist me" {
		t.Errorf("reloaded messages = %+v", msgs)
	}
}

func TestFlushIdempotent(t *testing.T) {
	ctx := context.Background()
	m, repo := newTestManager(t)

	if err := m.Append(ctx, models.NewMessage(models.RoleUser, "once", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	first, _ := repo.GetEncryptedMemory(ctx, 1)

	if err := m.Flush(ctx); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	second, _ := repo.GetEncryptedMemory(ctx, 1)
	if first != second {
		t.Error("clean flush rewrote the blob")
	}
}

func TestDecryptFailureStartsFresh(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	mustAddUser(t, repo, "alice")
	if err := repo.SetEncryptedMemory(ctx, 1, "enc::not-actually-valid-ciphertext-padding"); err != nil {
		t.Fatalf("SetEncryptedMemory: %v", err)
	}

	m := NewManager(repo, nil, 1, 0, 0)
	msgs, err := m.Recall(ctx, 10, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected fresh view, got %+v", msgs)
	}
}

func TestLegacyFallback(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	mustAddUser(t, repo, "alice")
	repo.SeedLegacyMessages(1, []models.Message{
		models.NewMessage(models.RoleUser, "old message", models.TypeAI),
	})

	m := NewManager(repo, nil, 1, 0, 0)
	msgs, err := m.Recall(ctx, 10, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "old message" {
		t.Fatalf("legacy messages not recalled: %+v", msgs)
	}

	// Reading legacy history alone must not create a blob.
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if blob, _ := repo.GetEncryptedMemory(ctx, 1); blob != "" {
		t.Error("legacy read created an encrypted blob")
	}
}

func TestUserIsolation(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	aliceID := mustAddUser(t, repo, "alice")
	bobID := mustAddUser(t, repo, "bob")
	store := NewStore(repo, nil, 0, 0)

	alice := store.ForUser(aliceID)
	bob := store.ForUser(bobID)

	if err := alice.Append(ctx, models.NewMessage(models.RoleUser, "alice private", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := alice.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	msgs, err := bob.Recall(ctx, 10, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("bob can see alice's memory: %+v", msgs)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	m, repo := newTestManager(t)

	if err := m.Append(ctx, models.NewMessage(models.RoleUser, "gone soon", models.TypeAI)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	msgs, err := m.Recall(ctx, 10, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived Clear: %+v", msgs)
	}
	if blob, _ := repo.GetEncryptedMemory(ctx, 1); blob == "" {
		t.Error("Clear must flush the empty view")
	}
}

func TestUpdatePlan(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	err := m.UpdatePlan(ctx, func(plan *models.TrainingPlan) {
		plan.MessageCount++
	})
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}

	plan, err := m.Plan(ctx)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan == nil || plan.MessageCount != 1 {
		t.Fatalf("plan = %+v", plan)
	}

	// Plan returns a copy; mutating it must not leak back.
	plan.MessageCount = 99
	again, _ := m.Plan(ctx)
	if again.MessageCount != 1 {
		t.Errorf("Plan copy leaked: %d", again.MessageCount)
	}
}
