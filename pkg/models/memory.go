package models

import (
	"time"
)

// Default bucket bounds for a user's conversational memory.
const (
	DefaultMaxGeneral = 10
	DefaultMaxAI      = 20
)

// MemoryView is the decrypted, in-memory form of a user's stored
// conversation. Its encrypted serialization (the memory blob) is the
// canonical store; see storage.Repository.
type MemoryView struct {
	// Messages is the merged history, bounded at maxGeneral+maxAI entries.
	Messages []Message `json:"messages"`

	// GeneralChat holds only general-chat messages.
	GeneralChat []Message `json:"general_chat"`

	// AIConversation holds only private AI-conversation messages.
	AIConversation []Message `json:"ai_conversation"`

	// TrainingPlan is the user's embedded skill-training state, if any.
	TrainingPlan *TrainingPlan `json:"training_plan,omitempty"`

	Metadata MemoryMetadata `json:"metadata"`
}

// MemoryMetadata carries bookkeeping for a memory blob.
type MemoryMetadata struct {
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdated   time.Time      `json:"last_updated"`
	UserID        int64          `json:"user_id"`
	Version       int            `json:"version"`
	MessageCounts map[string]int `json:"message_counts,omitempty"`
}

// NewMemoryView returns an empty view for the given user.
func NewMemoryView(userID int64) *MemoryView {
	now := time.Now().UTC()
	return &MemoryView{
		Metadata: MemoryMetadata{
			CreatedAt:   now,
			LastUpdated: now,
			UserID:      userID,
			Version:     1,
		},
	}
}

// TrainingStatus is the lifecycle state of one training.
type TrainingStatus string

const (
	TrainingPending   TrainingStatus = "pending"
	TrainingActive    TrainingStatus = "active"
	TrainingCompleted TrainingStatus = "completed"
)

// TrainingPlan is the per-user record of active skill trainings, embedded in
// the encrypted memory blob.
type TrainingPlan struct {
	UserID            int64                     `json:"user_id"`
	CreatedAt         time.Time                 `json:"created_at"`
	MessageCount      int                       `json:"message_count"`
	LastProgressCheck time.Time                 `json:"last_progress_check"`
	LastLogout        time.Time                 `json:"last_logout,omitempty"`
	Trainings         map[string]*TrainingEntry `json:"trainings"`
}

// TrainingEntry tracks one skill inside a training plan.
type TrainingEntry struct {
	SkillID      int64          `json:"skill_id"`
	SkillName    string         `json:"skill_name"`
	CurrentLevel int            `json:"current_level"`
	TargetLevel  int            `json:"target_level"`
	Status       TrainingStatus `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	Milestones   []Milestone    `json:"milestones,omitempty"`

	// NextMilestone is derived: the first milestone above CurrentLevel.
	NextMilestone *Milestone `json:"next_milestone,omitempty"`
}

// Milestone pairs a skill level threshold with a human description.
type Milestone struct {
	Level       int    `json:"level"`
	Description string `json:"description"`
}

// NextMilestone returns the first milestone whose level exceeds the current
// level, or nil when all milestones are reached.
func NextMilestone(milestones []Milestone, currentLevel int) *Milestone {
	for i := range milestones {
		if milestones[i].Level > currentLevel {
			m := milestones[i]
			return &m
		}
	}
	return nil
}
