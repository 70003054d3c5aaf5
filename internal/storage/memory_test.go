package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/attunelabs/attune/pkg/models"
)

func TestMemoryRepositoryUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	user := &models.User{Username: "alice"}
	if err := repo.AddUser(ctx, user); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("AddUser should assign an id")
	}
	if err := repo.AddUser(ctx, &models.User{Username: "alice"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate username: got %v, want ErrAlreadyExists", err)
	}

	got, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil || got == nil || got.ID != user.ID {
		t.Fatalf("GetUserByUsername: got %+v, %v", got, err)
	}

	// Miss returns nil, nil.
	missing, err := repo.GetUser(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("missing user: got %+v, %v, want nil, nil", missing, err)
	}
}

func TestMemoryRepositoryEncryptionKey(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := &models.User{Username: "bob"}
	if err := repo.AddUser(ctx, user); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	key1, err := repo.EnsureEncryptionKey(ctx, user.ID)
	if err != nil || key1 == "" {
		t.Fatalf("EnsureEncryptionKey: %q, %v", key1, err)
	}
	key2, err := repo.EnsureEncryptionKey(ctx, user.ID)
	if err != nil {
		t.Fatalf("EnsureEncryptionKey second call: %v", err)
	}
	if key1 != key2 {
		t.Error("encryption key must be stable across calls")
	}
}

func TestMemoryRepositoryMemoryBlob(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	blob, err := repo.GetEncryptedMemory(ctx, 1)
	if err != nil || blob != "" {
		t.Fatalf("empty memory: got %q, %v", blob, err)
	}
	if err := repo.SetEncryptedMemory(ctx, 1, "enc::abc"); err != nil {
		t.Fatalf("SetEncryptedMemory: %v", err)
	}
	blob, _ = repo.GetEncryptedMemory(ctx, 1)
	if blob != "enc::abc" {
		t.Errorf("got %q", blob)
	}

	// User isolation.
	other, _ := repo.GetEncryptedMemory(ctx, 2)
	if other != "" {
		t.Error("user 2 must not see user 1's blob")
	}
}

func TestMemoryRepositoryPreferences(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.SetPreference(ctx, 1, "communication", "preferred_language", "German", 0.95); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	if err := repo.SetPreference(ctx, 1, "personal_info", "city", "Berlin", 1.0); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}

	prefs, err := repo.GetPreferences(ctx, 1, "communication")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if len(prefs) != 1 {
		t.Fatalf("got %d prefs, want 1", len(prefs))
	}
	if string(prefs["preferred_language"].Value) != `"German"` {
		t.Errorf("value = %s", prefs["preferred_language"].Value)
	}

	all, _ := repo.GetPreferences(ctx, 1, "")
	if len(all) != 2 {
		t.Errorf("all prefs = %d, want 2", len(all))
	}

	if err := repo.DeletePreference(ctx, 1, "communication", ""); err != nil {
		t.Fatalf("DeletePreference: %v", err)
	}
	left, _ := repo.GetPreferences(ctx, 1, "")
	if len(left) != 1 {
		t.Errorf("after delete = %d, want 1", len(left))
	}
}

func TestMemoryRepositorySkills(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	skill, err := repo.GetOrCreateSkill(ctx, "empathy")
	if err != nil {
		t.Fatalf("GetOrCreateSkill: %v", err)
	}
	again, _ := repo.GetOrCreateSkill(ctx, "empathy")
	if again.ID != skill.ID {
		t.Error("GetOrCreateSkill must be idempotent")
	}

	if err := repo.SetSkillLevel(ctx, 1, skill.ID, 4); err != nil {
		t.Fatalf("SetSkillLevel: %v", err)
	}
	level, _ := repo.GetSkillLevel(ctx, 1, skill.ID)
	if level != 4 {
		t.Errorf("level = %d, want 4", level)
	}
	if err := repo.SetSkillLevel(ctx, 1, skill.ID, 11); err == nil {
		t.Error("level above cap should be rejected")
	}

	training := &models.Training{UserID: 1, SkillID: skill.ID, Status: models.TrainingActive, Progress: 0.4}
	if err := repo.AddTraining(ctx, training); err != nil {
		t.Fatalf("AddTraining: %v", err)
	}
	if err := repo.UpdateTrainingStatus(ctx, 1, skill.ID, models.TrainingCompleted); err != nil {
		t.Fatalf("UpdateTrainingStatus: %v", err)
	}
	got, _ := repo.GetTraining(ctx, 1, skill.ID)
	if got == nil || got.Status != models.TrainingCompleted {
		t.Errorf("training = %+v", got)
	}
}

func TestMemoryRepositoryRooms(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	for i := 0; i < 5; i++ {
		err := repo.AddRoomMessage(ctx, &models.RoomMessage{
			RoomID: "general", UserID: 1, Username: "alice", Content: "hi",
		})
		if err != nil {
			t.Fatalf("AddRoomMessage: %v", err)
		}
	}

	msgs, err := repo.GetRoomMessages(ctx, "general", 3, 0)
	if err != nil {
		t.Fatalf("GetRoomMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].ID >= msgs[1].ID {
		t.Error("messages must be chronological")
	}

	before, _ := repo.GetRoomMessages(ctx, "general", 10, msgs[1].ID)
	for _, m := range before {
		if m.ID >= msgs[1].ID {
			t.Errorf("beforeID not honored: %d", m.ID)
		}
	}

	in, _ := repo.IsUserInRoom(ctx, 1, "general")
	if in {
		t.Error("user not yet in room")
	}
	if err := repo.AddUserToRoom(ctx, 1, "general"); err != nil {
		t.Fatalf("AddUserToRoom: %v", err)
	}
	in, _ = repo.IsUserInRoom(ctx, 1, "general")
	if !in {
		t.Error("user should be in room")
	}
}
