// Package agent orchestrates one chat turn end to end: language resolution,
// prompt assembly, the provider call, the tool loop, response repair, and
// memory persistence.
package agent

import (
	"context"

	"github.com/attunelabs/attune/internal/memory"
	"github.com/attunelabs/attune/internal/normalizer"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/internal/training"
	"github.com/attunelabs/attune/pkg/models"
)

// Config tunes the agent loop.
type Config struct {
	// PreferredProvider is tried first on every call; empty lets priority
	// order decide.
	PreferredProvider string `yaml:"preferred_provider"`

	// ToolLoopCap bounds tool rounds within one turn.
	ToolLoopCap int `yaml:"tool_loop_cap"`

	// RecallLimit is how many remembered messages feed the prompt.
	RecallLimit int `yaml:"recall_limit"`
}

const (
	defaultToolLoopCap = 8
	defaultRecallLimit = 10

	// maxRecall bounds explicit recall requests from the transport.
	maxRecall = 50
)

func (c *Config) applyDefaults() {
	if c.ToolLoopCap <= 0 {
		c.ToolLoopCap = defaultToolLoopCap
	}
	if c.RecallLimit <= 0 {
		c.RecallLimit = defaultRecallLimit
	}
}

// Service is the conversational core. One Service serves all users; turns
// are serialized per user.
type Service struct {
	config     Config
	repo       storage.Repository
	store      *memory.Store
	registry   *tools.Registry
	runner     *tools.Runner
	mux        *providers.Multiplexer
	normalizer *normalizer.Normalizer
	tracker    *training.Tracker
	logger     *observability.Logger
	observer   observability.Observer
	locks      *userLocks
}

// NewService wires the agent from its collaborators.
func NewService(
	config Config,
	repo storage.Repository,
	store *memory.Store,
	registry *tools.Registry,
	runner *tools.Runner,
	mux *providers.Multiplexer,
	norm *normalizer.Normalizer,
	tracker *training.Tracker,
	logger *observability.Logger,
	observer observability.Observer,
) *Service {
	config.applyDefaults()
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if observer == nil {
		observer = observability.NopObserver{}
	}
	if norm == nil {
		norm = normalizer.New(normalizer.Config{})
	}
	return &Service{
		config:     config,
		repo:       repo,
		store:      store,
		registry:   registry,
		runner:     runner,
		mux:        mux,
		normalizer: norm,
		tracker:    tracker,
		logger:     logger,
		observer:   observer,
		locks:      newUserLocks(),
	}
}

// Recall returns the user's remembered messages, newest last. The limit is
// clamped to maxRecall; msgType "" merges both buckets.
func (s *Service) Recall(ctx context.Context, principal models.Principal, limit int, msgType models.MessageType) ([]models.Message, error) {
	if limit <= 0 || limit > maxRecall {
		limit = maxRecall
	}
	return s.store.ForUser(principal.ID).Recall(ctx, limit, msgType)
}

// LoginReminder prepares the user's training plan and returns the greeting
// line describing active trainings, "" when there are none.
func (s *Service) LoginReminder(ctx context.Context, principal models.Principal) (string, error) {
	return s.tracker.OnLogin(ctx, principal.ID)
}

// Logout persists the user's memory and releases the cached view. A final
// skill analysis, when supplied, is folded into the training plan first.
func (s *Service) Logout(ctx context.Context, principal models.Principal, final *models.SkillAnalysis) error {
	lock := s.locks.forUser(principal.ID)
	lock.Lock()
	defer lock.Unlock()
	return s.tracker.OnLogout(ctx, principal.ID, final)
}
