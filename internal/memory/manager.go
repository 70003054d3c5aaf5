// Package memory owns the decrypted view of a user's conversational memory:
// lazy loading, bucket bounds, the internal-prompt filter, and encrypted
// write-back through the repository.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/attunelabs/attune/internal/crypto"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/pkg/models"
)

// internalPromptMarkers are content fragments that identify system monitoring
// prompts. Messages carrying any of them are rejected silently on append so
// they never become part of a user's persisted memory.
var internalPromptMarkers = []string{
	"CONVERSATION MONITORING REQUEST",
	"INSTRUCTIONS:",
	"Should you intervene",
	"NO_INTERVENTION_NEEDED",
	"You are monitoring this conversation",
	"Analyze if intervention is needed",
}

// IsInternalPrompt reports whether content matches the internal-prompt filter.
func IsInternalPrompt(content string) bool {
	for _, marker := range internalPromptMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// Manager holds one user's decrypted memory view. The view is loaded lazily
// on first use: the ciphertext is read through the repository and decrypted
// with the user's key. A missing blob falls back to the legacy plaintext
// message column; a decrypt failure is treated as missing memory.
//
// Manager is safe for concurrent use, but callers that need turn-level
// ordering must serialize at the user level themselves.
type Manager struct {
	repo   storage.Repository
	logger *observability.Logger
	userID int64

	maxGeneral int
	maxAI      int

	mu     sync.Mutex
	view   *models.MemoryView
	key    crypto.Key
	loaded bool
	dirty  bool

	now func() time.Time
}

// NewManager creates a memory manager for one user. Non-positive bounds fall
// back to the model defaults.
func NewManager(repo storage.Repository, logger *observability.Logger, userID int64, maxGeneral, maxAI int) *Manager {
	if maxGeneral <= 0 {
		maxGeneral = models.DefaultMaxGeneral
	}
	if maxAI <= 0 {
		maxAI = models.DefaultMaxAI
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Manager{
		repo:       repo,
		logger:     logger,
		userID:     userID,
		maxGeneral: maxGeneral,
		maxAI:      maxAI,
		now:        time.Now,
	}
}

// load populates the view on first use. Callers must hold m.mu.
func (m *Manager) load(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	encoded, err := m.repo.EnsureEncryptionKey(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("ensure encryption key: %w", err)
	}
	key, err := crypto.DecodeKey(encoded)
	if err != nil {
		return fmt.Errorf("decode encryption key: %w", err)
	}
	m.key = key

	blob, err := m.repo.GetEncryptedMemory(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("read memory blob: %w", err)
	}

	if blob == "" {
		m.view = models.NewMemoryView(m.userID)
		m.loaded = true
		return m.loadLegacy(ctx)
	}

	plaintext, err := crypto.Decrypt(key, blob)
	if err != nil {
		// Undecryptable memory is treated as missing; the user starts
		// from a fresh view rather than seeing an error.
		m.logger.Warn(ctx, "memory blob undecryptable, starting fresh", "user_id", m.userID)
		m.view = models.NewMemoryView(m.userID)
		m.loaded = true
		return nil
	}

	var view models.MemoryView
	if err := json.Unmarshal(plaintext, &view); err != nil {
		m.logger.Warn(ctx, "memory blob malformed, starting fresh", "user_id", m.userID, "error", err)
		m.view = models.NewMemoryView(m.userID)
		m.loaded = true
		return nil
	}
	if view.Metadata.UserID == 0 {
		view.Metadata.UserID = m.userID
	}
	m.view = &view
	m.loaded = true
	return nil
}

// loadLegacy seeds the view from the read-only plaintext message column that
// predates encrypted blobs. Callers must hold m.mu with m.view set.
func (m *Manager) loadLegacy(ctx context.Context) error {
	legacy, err := m.repo.GetLegacyMessages(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("read legacy messages: %w", err)
	}
	for _, msg := range legacy {
		if IsInternalPrompt(msg.Content) {
			continue
		}
		if msg.Type == "" {
			msg.Type = models.TypeAI
		}
		m.appendLocked(msg)
	}
	// Legacy history is a read fallback, not a migration: the blob is only
	// written once the user produces new messages.
	m.dirty = false
	return nil
}

// Append adds a message to the merged history and its type bucket. Messages
// matching the internal-prompt filter are rejected silently. A zero timestamp
// is filled in.
func (m *Manager) Append(ctx context.Context, msg models.Message) error {
	if IsInternalPrompt(msg.Content) {
		m.logger.Debug(ctx, "internal prompt filtered from memory", "user_id", m.userID)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx); err != nil {
		return err
	}
	if msg.Type == "" {
		msg.Type = models.TypeAI
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now().UTC()
	}
	m.appendLocked(msg)
	m.dirty = true
	return nil
}

func (m *Manager) appendLocked(msg models.Message) {
	m.view.Messages = append(m.view.Messages, msg)
	switch msg.Type {
	case models.TypeGeneral:
		m.view.GeneralChat = append(m.view.GeneralChat, msg)
	default:
		m.view.AIConversation = append(m.view.AIConversation, msg)
	}
	m.trimLocked()
}

// trimLocked enforces the bucket bounds by dropping oldest entries and
// rebuilds the merged history from the bounded buckets in chronological
// order.
func (m *Manager) trimLocked() {
	if n := len(m.view.GeneralChat); n > m.maxGeneral {
		m.view.GeneralChat = m.view.GeneralChat[n-m.maxGeneral:]
	}
	if n := len(m.view.AIConversation); n > m.maxAI {
		m.view.AIConversation = m.view.AIConversation[n-m.maxAI:]
	}

	merged := make([]models.Message, 0, len(m.view.GeneralChat)+len(m.view.AIConversation))
	merged = append(merged, m.view.GeneralChat...)
	merged = append(merged, m.view.AIConversation...)
	sortByTimestamp(merged)
	m.view.Messages = merged
}

func sortByTimestamp(msgs []models.Message) {
	// Insertion sort keeps equal timestamps in their existing order, which
	// matters for messages appended within the same clock tick.
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].Timestamp.Before(msgs[j-1].Timestamp); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}

// Flush re-encrypts the view and writes it through the repository. It is a
// no-op when nothing changed since the last flush.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded || !m.dirty {
		return nil
	}

	m.view.Metadata.LastUpdated = m.now().UTC()
	m.view.Metadata.MessageCounts = map[string]int{
		"general": len(m.view.GeneralChat),
		"ai":      len(m.view.AIConversation),
	}

	plaintext, err := json.Marshal(m.view)
	if err != nil {
		return fmt.Errorf("serialize memory view: %w", err)
	}
	blob, err := crypto.Encrypt(m.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt memory view: %w", err)
	}
	if err := m.repo.SetEncryptedMemory(ctx, m.userID, blob); err != nil {
		return fmt.Errorf("write memory blob: %w", err)
	}
	m.dirty = false
	return nil
}

// Recall returns a read-only copy of the last limit messages, optionally
// filtered by bucket. An empty msgType reads the merged history.
func (m *Manager) Recall(ctx context.Context, limit int, msgType models.MessageType) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx); err != nil {
		return nil, err
	}

	var source []models.Message
	switch msgType {
	case models.TypeGeneral:
		source = m.view.GeneralChat
	case models.TypeAI:
		source = m.view.AIConversation
	default:
		source = m.view.Messages
	}
	if limit > 0 && len(source) > limit {
		source = source[len(source)-limit:]
	}
	out := make([]models.Message, len(source))
	copy(out, source)
	return out, nil
}

// Counts returns the current bucket sizes.
func (m *Manager) Counts(ctx context.Context) (general, ai int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx); err != nil {
		return 0, 0, err
	}
	return len(m.view.GeneralChat), len(m.view.AIConversation), nil
}

// Clear replaces the view with an empty one and flushes immediately.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	if err := m.load(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.view = models.NewMemoryView(m.userID)
	m.dirty = true
	m.mu.Unlock()
	return m.Flush(ctx)
}

// UpdatePlan applies fn to the user's training plan, creating an empty plan
// first if none exists, and marks the view dirty. The plan is persisted on
// the next Flush.
func (m *Manager) UpdatePlan(ctx context.Context, fn func(plan *models.TrainingPlan)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx); err != nil {
		return err
	}
	if m.view.TrainingPlan == nil {
		m.view.TrainingPlan = &models.TrainingPlan{
			UserID:    m.userID,
			CreatedAt: m.now().UTC(),
			Trainings: map[string]*models.TrainingEntry{},
		}
	}
	fn(m.view.TrainingPlan)
	m.dirty = true
	return nil
}

// Plan returns a deep copy of the user's training plan, or nil when the user
// has none.
func (m *Manager) Plan(ctx context.Context) (*models.TrainingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	if m.view.TrainingPlan == nil {
		return nil, nil
	}
	return clonePlan(m.view.TrainingPlan), nil
}

func clonePlan(plan *models.TrainingPlan) *models.TrainingPlan {
	out := *plan
	out.Trainings = make(map[string]*models.TrainingEntry, len(plan.Trainings))
	for name, entry := range plan.Trainings {
		e := *entry
		if entry.NextMilestone != nil {
			next := *entry.NextMilestone
			e.NextMilestone = &next
		}
		e.Milestones = append([]models.Milestone(nil), entry.Milestones...)
		out.Trainings[name] = &e
	}
	return &out
}
