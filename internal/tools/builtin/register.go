package builtin

import (
	"context"
	"fmt"

	"github.com/attunelabs/attune/internal/memory"
	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
)

// RegisterAll adds every builtin tool to the registry. Schema warnings are
// logged, not fatal.
func RegisterAll(registry *tools.Registry, repo storage.Repository, store *memory.Store, searcher Searcher, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	all := []tools.Tool{
		NewWebSearchTool(searcher),
		NewRecallTool(store),
		NewPreferenceTool(repo),
		NewSkillEvaluatorTool(repo),
		NewLifeEventTool(repo),
		NewClarifyTool(),
		NewSetLanguageTool(repo),
		NewFormatOutputTool(),
	}
	for _, tool := range all {
		warnings, err := registry.Register(tool)
		if err != nil {
			return fmt.Errorf("register %s: %w", tool.Name(), err)
		}
		for _, w := range warnings {
			logger.Debug(context.Background(), "tool schema warning", "tool", tool.Name(), "warning", w)
		}
	}
	return nil
}
