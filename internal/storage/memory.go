package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attunelabs/attune/internal/crypto"
	"github.com/attunelabs/attune/pkg/models"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu sync.RWMutex

	nextUserID     int64
	nextSkillID    int64
	nextTrainingID int64
	nextRoomMsgID  int64

	users          map[int64]*models.User
	byUsername     map[string]int64
	memoryBlobs    map[int64]string
	legacyMessages map[int64][]models.Message
	preferences    map[int64]map[string]models.Preference
	skills         map[string]*models.Skill
	skillLevels    map[string]int // userID:skillID
	trainings      map[string]*models.Training
	roomMessages   map[string][]*models.RoomMessage
	roomMembers    map[string]map[int64]bool
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextUserID:     1,
		nextSkillID:    1,
		nextTrainingID: 1,
		nextRoomMsgID:  1,
		users:          map[int64]*models.User{},
		byUsername:     map[string]int64{},
		memoryBlobs:    map[int64]string{},
		legacyMessages: map[int64][]models.Message{},
		preferences:    map[int64]map[string]models.Preference{},
		skills:         map[string]*models.Skill{},
		skillLevels:    map[string]int{},
		trainings:      map[string]*models.Training{},
		roomMessages:   map[string][]*models.RoomMessage{},
		roomMembers:    map[string]map[int64]bool{},
	}
}

var _ Repository = (*MemoryRepository)(nil)

func userSkillKey(userID, skillID int64) string {
	return fmt.Sprintf("%d:%d", userID, skillID)
}

func prefKey(prefType, key string) string {
	return prefType + "." + key
}

func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byUsername[username]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetUser(ctx, id)
}

func (r *MemoryRepository) AddUser(ctx context.Context, user *models.User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("user with username is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUsername[user.Username]; ok {
		return ErrAlreadyExists
	}
	if user.ID == 0 {
		user.ID = r.nextUserID
		r.nextUserID++
	} else if user.ID >= r.nextUserID {
		r.nextUserID = user.ID + 1
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	clone := *user
	r.users[user.ID] = &clone
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *MemoryRepository) SetUserTemperature(ctx context.Context, id int64, temperature float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	user.Temperature = temperature
	return nil
}

func (r *MemoryRepository) EnsureEncryptionKey(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return "", fmt.Errorf("user %d not found", id)
	}
	if user.EncryptionKey != "" {
		return user.EncryptionKey, nil
	}
	key, err := crypto.NewKey()
	if err != nil {
		return "", err
	}
	user.EncryptionKey = crypto.EncodeKey(key)
	return user.EncryptionKey, nil
}

func (r *MemoryRepository) GetEncryptedMemory(ctx context.Context, userID int64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memoryBlobs[userID], nil
}

func (r *MemoryRepository) SetEncryptedMemory(ctx context.Context, userID int64, blob string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memoryBlobs[userID] = blob
	return nil
}

func (r *MemoryRepository) GetLegacyMessages(ctx context.Context, userID int64) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.legacyMessages[userID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// SeedLegacyMessages populates the read-only compatibility column. Test hook.
func (r *MemoryRepository) SeedLegacyMessages(userID int64, msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.legacyMessages[userID] = append([]models.Message(nil), msgs...)
}

func (r *MemoryRepository) GetPreferences(ctx context.Context, userID int64, prefType string) (map[string]models.Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]models.Preference{}
	for _, pref := range r.preferences[userID] {
		if prefType == "" || pref.Type == prefType {
			out[pref.Key] = pref
		}
	}
	return out, nil
}

func (r *MemoryRepository) SetPreference(ctx context.Context, userID int64, prefType, key string, value any, confidence float64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal preference value: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preferences[userID] == nil {
		r.preferences[userID] = map[string]models.Preference{}
	}
	r.preferences[userID][prefKey(prefType, key)] = models.Preference{
		UserID:     userID,
		Type:       prefType,
		Key:        key,
		Value:      raw,
		Confidence: confidence,
		UpdatedAt:  time.Now().UTC(),
	}
	return nil
}

func (r *MemoryRepository) DeletePreference(ctx context.Context, userID int64, prefType, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, pref := range r.preferences[userID] {
		if prefType != "" && pref.Type != prefType {
			continue
		}
		if key != "" && pref.Key != key {
			continue
		}
		delete(r.preferences[userID], k)
	}
	return nil
}

func (r *MemoryRepository) GetOrCreateSkill(ctx context.Context, name string) (*models.Skill, error) {
	if name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if skill, ok := r.skills[name]; ok {
		clone := *skill
		return &clone, nil
	}
	skill := &models.Skill{ID: r.nextSkillID, Name: name}
	r.nextSkillID++
	r.skills[name] = skill
	clone := *skill
	return &clone, nil
}

func (r *MemoryRepository) GetSkillLevel(ctx context.Context, userID, skillID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skillLevels[userSkillKey(userID, skillID)], nil
}

func (r *MemoryRepository) SetSkillLevel(ctx context.Context, userID, skillID int64, level int) error {
	if level < 0 || level > models.MaxSkillLevel {
		return fmt.Errorf("level %d out of range", level)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skillLevels[userSkillKey(userID, skillID)] = level
	return nil
}

func (r *MemoryRepository) AddTraining(ctx context.Context, training *models.Training) error {
	if training == nil {
		return fmt.Errorf("training is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userSkillKey(training.UserID, training.SkillID)
	if _, ok := r.trainings[key]; ok {
		return ErrAlreadyExists
	}
	if training.ID == 0 {
		training.ID = r.nextTrainingID
		r.nextTrainingID++
	}
	clone := *training
	r.trainings[key] = &clone
	return nil
}

func (r *MemoryRepository) GetTraining(ctx context.Context, userID, skillID int64) (*models.Training, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	training, ok := r.trainings[userSkillKey(userID, skillID)]
	if !ok {
		return nil, nil
	}
	clone := *training
	return &clone, nil
}

func (r *MemoryRepository) UpdateTrainingStatus(ctx context.Context, userID, skillID int64, status models.TrainingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	training, ok := r.trainings[userSkillKey(userID, skillID)]
	if !ok {
		return fmt.Errorf("training for user %d skill %d not found", userID, skillID)
	}
	training.Status = status
	return nil
}

func (r *MemoryRepository) AddRoomMessage(ctx context.Context, msg *models.RoomMessage) error {
	if msg == nil || msg.RoomID == "" {
		return fmt.Errorf("room message with room id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == 0 {
		msg.ID = r.nextRoomMsgID
		r.nextRoomMsgID++
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	clone := *msg
	r.roomMessages[msg.RoomID] = append(r.roomMessages[msg.RoomID], &clone)
	return nil
}

func (r *MemoryRepository) GetRoomMessages(ctx context.Context, roomID string, limit int, beforeID int64) ([]*models.RoomMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.roomMessages[roomID]
	out := make([]*models.RoomMessage, 0, len(msgs))
	for _, msg := range msgs {
		if beforeID > 0 && msg.ID >= beforeID {
			continue
		}
		clone := *msg
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MemoryRepository) IsUserInRoom(ctx context.Context, userID int64, roomID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomMembers[roomID][userID], nil
}

func (r *MemoryRepository) AddUserToRoom(ctx context.Context, userID int64, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roomMembers[roomID] == nil {
		r.roomMembers[roomID] = map[int64]bool{}
	}
	r.roomMembers[roomID][userID] = true
	return nil
}
