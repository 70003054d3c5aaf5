// Package storage defines the persistence contract the core depends on and
// provides in-memory, SQLite, and Postgres implementations.
//
// Read operations return zero values on miss; "not found" is never an error
// for reads. All implementations are safe for concurrent use.
package storage

import (
	"context"
	"errors"

	"github.com/attunelabs/attune/pkg/models"
)

var (
	// ErrAlreadyExists is returned when creating a record that exists.
	ErrAlreadyExists = errors.New("storage: already exists")
)

// Repository is the only persistence interface the core sees.
type Repository interface {
	// Users.
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	AddUser(ctx context.Context, user *models.User) error
	SetUserTemperature(ctx context.Context, id int64, temperature float64) error

	// EnsureEncryptionKey returns the user's encoded key, generating and
	// persisting one on first need.
	EnsureEncryptionKey(ctx context.Context, id int64) (string, error)

	// Encrypted memory. GetEncryptedMemory returns "" when the user has no
	// blob yet. GetLegacyMessages reads the read-only plaintext compatibility
	// column used only when no blob exists.
	GetEncryptedMemory(ctx context.Context, userID int64) (string, error)
	SetEncryptedMemory(ctx context.Context, userID int64, blob string) error
	GetLegacyMessages(ctx context.Context, userID int64) ([]models.Message, error)

	// Preferences. prefType == "" matches all types.
	GetPreferences(ctx context.Context, userID int64, prefType string) (map[string]models.Preference, error)
	SetPreference(ctx context.Context, userID int64, prefType, key string, value any, confidence float64) error
	DeletePreference(ctx context.Context, userID int64, prefType, key string) error

	// Skills and training.
	GetOrCreateSkill(ctx context.Context, name string) (*models.Skill, error)
	GetSkillLevel(ctx context.Context, userID, skillID int64) (int, error)
	SetSkillLevel(ctx context.Context, userID, skillID int64, level int) error
	AddTraining(ctx context.Context, training *models.Training) error
	GetTraining(ctx context.Context, userID, skillID int64) (*models.Training, error)
	UpdateTrainingStatus(ctx context.Context, userID, skillID int64, status models.TrainingStatus) error

	// Rooms.
	AddRoomMessage(ctx context.Context, msg *models.RoomMessage) error
	GetRoomMessages(ctx context.Context, roomID string, limit int, beforeID int64) ([]*models.RoomMessage, error)
	IsUserInRoom(ctx context.Context, userID int64, roomID string) (bool, error)
	AddUserToRoom(ctx context.Context, userID int64, roomID string) error
}
