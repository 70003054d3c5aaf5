// Package training maintains per-user skill-training plans: which skills a
// user is working on, how far along they are, and when progress should be
// re-evaluated.
package training

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/attunelabs/attune/internal/memory"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/pkg/models"
)

// evaluationInterval is how many user messages pass between skill
// evaluations.
const evaluationInterval = 5

// defaultTrainings maps the trainings every user starts with to the skill
// each one exercises.
var defaultTrainings = map[string]string{
	"empathy_training":      "empathy",
	"conversation_training": "active_listening",
}

// defaultMilestones mark the levels worth calling out as a skill advances.
var defaultMilestones = []models.Milestone{
	{Level: 3, Description: "Getting the basics down"},
	{Level: 5, Description: "Applying the skill consistently"},
	{Level: 7, Description: "Handling difficult situations well"},
	{Level: 10, Description: "Training complete"},
}

// Tracker owns training-plan lifecycle. Plans live inside the user's
// encrypted memory blob; the skills and training rows in the repository are
// the queryable mirror.
type Tracker struct {
	repo   storage.Repository
	store  *memory.Store
	logger *observability.Logger

	now func() time.Time
}

// NewTracker creates a tracker over the given repository and memory store.
func NewTracker(repo storage.Repository, store *memory.Store, logger *observability.Logger) *Tracker {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Tracker{repo: repo, store: store, logger: logger, now: time.Now}
}

// OnLogin ensures the user's training plan exists with the default trainings
// and returns a reminder describing where each training stands. The reminder
// is empty only when every training is complete.
func (t *Tracker) OnLogin(ctx context.Context, userID int64) (string, error) {
	manager := t.store.ForUser(userID)

	type seeded struct {
		name  string
		entry *models.TrainingEntry
	}
	var entries []seeded

	err := manager.UpdatePlan(ctx, func(plan *models.TrainingPlan) {
		for name, skillName := range defaultTrainings {
			entry, ok := plan.Trainings[name]
			if !ok {
				entry = t.newEntry(ctx, userID, skillName)
				plan.Trainings[name] = entry
			}
			entries = append(entries, seeded{name: name, entry: entry})
		}
	})
	if err != nil {
		return "", err
	}

	for _, s := range entries {
		if err := t.ensureTrainingRow(ctx, userID, s.entry); err != nil {
			return "", err
		}
	}
	if err := manager.Flush(ctx); err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	var lines []string
	for _, s := range entries {
		if s.entry.Status == models.TrainingCompleted {
			continue
		}
		line := fmt.Sprintf("%s: level %d/%d", s.entry.SkillName, s.entry.CurrentLevel, s.entry.TargetLevel)
		if s.entry.NextMilestone != nil {
			line += fmt.Sprintf(" (next: %s)", s.entry.NextMilestone.Description)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "Active trainings: " + strings.Join(lines, "; "), nil
}

// newEntry builds a fresh plan entry for a skill, picking up any level the
// user already holds.
func (t *Tracker) newEntry(ctx context.Context, userID int64, skillName string) *models.TrainingEntry {
	entry := &models.TrainingEntry{
		SkillName:   skillName,
		TargetLevel: models.MaxSkillLevel,
		Status:      models.TrainingActive,
		StartedAt:   t.now().UTC(),
		Milestones:  append([]models.Milestone(nil), defaultMilestones...),
	}
	skill, err := t.repo.GetOrCreateSkill(ctx, skillName)
	if err != nil {
		t.logger.Warn(ctx, "skill lookup failed, plan entry starts at zero", "skill", skillName, "error", err)
		entry.NextMilestone = models.NextMilestone(entry.Milestones, 0)
		return entry
	}
	entry.SkillID = skill.ID
	if level, err := t.repo.GetSkillLevel(ctx, userID, skill.ID); err == nil {
		entry.CurrentLevel = level
	}
	if entry.CurrentLevel >= entry.TargetLevel {
		entry.Status = models.TrainingCompleted
	}
	entry.NextMilestone = models.NextMilestone(entry.Milestones, entry.CurrentLevel)
	return entry
}

// ensureTrainingRow mirrors a plan entry into the trainings table so it is
// queryable without decrypting memory.
func (t *Tracker) ensureTrainingRow(ctx context.Context, userID int64, entry *models.TrainingEntry) error {
	if entry.SkillID == 0 {
		return nil
	}
	existing, err := t.repo.GetTraining(ctx, userID, entry.SkillID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return t.repo.AddTraining(ctx, &models.Training{
		UserID:   userID,
		SkillID:  entry.SkillID,
		Status:   entry.Status,
		Progress: progressOf(entry.CurrentLevel),
	})
}

// OnMessage counts one user message against the plan.
func (t *Tracker) OnMessage(ctx context.Context, userID int64) error {
	return t.store.ForUser(userID).UpdatePlan(ctx, func(plan *models.TrainingPlan) {
		plan.MessageCount++
	})
}

// ShouldEvaluate reports whether the user's message count has reached the
// next evaluation boundary.
func (t *Tracker) ShouldEvaluate(ctx context.Context, userID int64) (bool, error) {
	plan, err := t.store.ForUser(userID).Plan(ctx)
	if err != nil {
		return false, err
	}
	if plan == nil {
		return false, nil
	}
	return plan.MessageCount > 0 && plan.MessageCount%evaluationInterval == 0, nil
}

// OnProgress folds evaluated skill updates into the plan and mirrors
// completion into the trainings table.
func (t *Tracker) OnProgress(ctx context.Context, userID int64, updates []models.SkillUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	byName := make(map[string]models.SkillUpdate, len(updates))
	for _, u := range updates {
		byName[u.Name] = u
	}

	var completed []*models.TrainingEntry
	err := t.store.ForUser(userID).UpdatePlan(ctx, func(plan *models.TrainingPlan) {
		plan.LastProgressCheck = t.now().UTC()
		for _, entry := range plan.Trainings {
			update, ok := byName[entry.SkillName]
			if !ok {
				continue
			}
			entry.CurrentLevel = update.NewLevel
			entry.NextMilestone = models.NextMilestone(entry.Milestones, entry.CurrentLevel)
			if entry.Status == models.TrainingActive && entry.CurrentLevel >= entry.TargetLevel {
				entry.Status = models.TrainingCompleted
				completed = append(completed, entry)
			}
		}
	})
	if err != nil {
		return err
	}

	for _, entry := range completed {
		if entry.SkillID == 0 {
			continue
		}
		if err := t.repo.UpdateTrainingStatus(ctx, userID, entry.SkillID, models.TrainingCompleted); err != nil {
			t.logger.Warn(ctx, "training completion not mirrored", "skill", entry.SkillName, "error", err)
		}
	}
	return nil
}

// OnLogout applies a final skill analysis when one is supplied, stamps the
// logout time on the plan, flushes the user's memory, and drops the cached
// manager.
func (t *Tracker) OnLogout(ctx context.Context, userID int64, final *models.SkillAnalysis) error {
	if final != nil {
		if err := t.OnProgress(ctx, userID, final.SkillsUpdated); err != nil {
			return err
		}
	}
	manager := t.store.ForUser(userID)
	err := manager.UpdatePlan(ctx, func(plan *models.TrainingPlan) {
		plan.LastLogout = t.now().UTC()
	})
	if err != nil {
		return err
	}
	if err := manager.Flush(ctx); err != nil {
		return err
	}
	t.store.Drop(userID)
	return nil
}

// progressOf converts a skill level to a completion fraction.
func progressOf(level int) float64 {
	return float64(level) / float64(models.MaxSkillLevel)
}
