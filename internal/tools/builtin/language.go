package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
)

// Preference coordinates for the user's language, shared with the language
// detector in the agent graph.
const (
	LanguagePrefType = "communication"
	LanguagePrefKey  = "preferred_language"
)

// SetLanguageTool writes the user's preferred conversation language.
type SetLanguageTool struct {
	repo storage.Repository
}

// NewSetLanguageTool creates the tool over the repository.
func NewSetLanguageTool(repo storage.Repository) *SetLanguageTool {
	return &SetLanguageTool{repo: repo}
}

func (t *SetLanguageTool) Name() string { return "set_language_preference" }

func (t *SetLanguageTool) Description() string {
	return "Store the language the user wants to converse in. Call this when the user states or confirms their preferred language."
}

func (t *SetLanguageTool) Schema() tools.Schema {
	return tools.Schema{
		"user_id": {
			Type:        tools.TypeInteger,
			Required:    true,
			Description: "The id of the user whose language to set",
		},
		"language": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "The preferred language, e.g. English, German, Spanish",
		},
		"confirmed": {
			Type:        tools.TypeBoolean,
			Description: "Whether the user explicitly confirmed this language",
			Default:     true,
		},
	}
}

func (t *SetLanguageTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	userID, ok := int64Arg(args, "user_id")
	if !ok {
		return nil, fmt.Errorf("user_id is required")
	}
	language := strings.TrimSpace(stringArg(args, "language"))
	if language == "" {
		return nil, fmt.Errorf("language must not be empty")
	}

	confidence := 1.0
	if !boolArg(args, "confirmed", true) {
		confidence = 0.7
	}
	if err := t.repo.SetPreference(ctx, userID, LanguagePrefType, LanguagePrefKey, language, confidence); err != nil {
		return nil, fmt.Errorf("store language preference: %w", err)
	}
	return map[string]any{
		"message":  fmt.Sprintf("Preferred language set to %s.", language),
		"language": language,
	}, nil
}
