package models

import (
	"encoding/json"
	"time"
)

// Principal identifies an authenticated user for the duration of a request.
// It is created by the transport layer and never mutated by the core.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// User is the persisted user record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`

	// EncryptionKey is the user's encoded symmetric key. It is generated on
	// first need and never leaves the process unencoded.
	EncryptionKey string `json:"-"`

	// Temperature overrides the provider default when in (0, 1].
	Temperature float64 `json:"temperature,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Preference is a typed key/value setting attached to a user.
type Preference struct {
	UserID     int64           `json:"user_id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Preference types whose string values are encrypted at rest with the user's
// key.
var SensitivePreferenceTypes = map[string]bool{
	"personal_info":  true,
	"contact":        true,
	"financial":      true,
	"medical":        true,
	"identification": true,
	"private":        true,
}

// Skill is a canonical, named skill.
type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserSkill joins a user to a skill at a level in [0, 10].
type UserSkill struct {
	UserID  int64 `json:"user_id"`
	SkillID int64 `json:"skill_id"`
	Level   int   `json:"level"`
}

// MaxSkillLevel caps skill progression.
const MaxSkillLevel = 10

// Training joins a user and a skill with progress state.
type Training struct {
	ID       int64          `json:"id"`
	UserID   int64          `json:"user_id"`
	SkillID  int64          `json:"skill_id"`
	Status   TrainingStatus `json:"status"`
	Progress float64        `json:"progress"`
	Notes    string         `json:"notes,omitempty"`
}

// SkillUpdate describes one skill level change from an evaluation.
type SkillUpdate struct {
	Name     string `json:"name"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Feedback string `json:"feedback,omitempty"`
}

// SkillAnalysis is the structured outcome of a skill evaluation pass.
type SkillAnalysis struct {
	SkillsUpdated []SkillUpdate `json:"skills_updated"`
	Summary       string        `json:"summary,omitempty"`
}
