package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/pkg/models"
)

// skillKeywords maps each coached skill to the message fragments that count
// as practicing it. Matching is case-insensitive substring search.
var skillKeywords = map[string][]string{
	"empathy": {
		"i understand",
		"that must be",
		"i'm sorry you",
		"how do you feel",
		"that sounds difficult",
		"i hear you",
		"i can imagine",
	},
	"active_listening": {
		"tell me more",
		"what i'm hearing",
		"if i understand correctly",
		"you mentioned",
		"let me make sure",
		"so you're saying",
	},
	"clarity": {
		"to be specific",
		"in other words",
		"let me rephrase",
		"what i mean is",
		"to clarify",
	},
	"conflict_resolution": {
		"let's find a compromise",
		"i see your point",
		"we both want",
		"common ground",
		"how about we",
	},
}

// SkillEvaluatorTool scans user messages for skill-practice patterns and
// advances the matching skill levels by one, capped at the maximum.
type SkillEvaluatorTool struct {
	repo storage.Repository
}

// NewSkillEvaluatorTool creates the evaluator over the repository.
func NewSkillEvaluatorTool(repo storage.Repository) *SkillEvaluatorTool {
	return &SkillEvaluatorTool{repo: repo}
}

func (t *SkillEvaluatorTool) Name() string { return "skill_evaluator" }

func (t *SkillEvaluatorTool) Description() string {
	return "Evaluate one or more user messages for communication-skill practice and update the user's skill levels. Returns a before/after snapshot with feedback per skill."
}

func (t *SkillEvaluatorTool) Schema() tools.Schema {
	return tools.Schema{
		"user_id": {
			Type:        tools.TypeInteger,
			Required:    true,
			Description: "The id of the user being evaluated",
		},
		"message": {
			Type:        tools.TypeString,
			Description: "A single message to evaluate",
			Default:     "",
		},
		"messages": {
			Type:        tools.TypeArray,
			Items:       tools.TypeString,
			Description: "A batch of messages to evaluate",
			Default:     []any{},
		},
		"cultural_context": {
			Type:        tools.TypeString,
			Description: "Cultural frame used when judging communication style",
			Default:     "Western",
		},
		"use_web_research": {
			Type:        tools.TypeBoolean,
			Description: "Whether background research may inform the evaluation",
			Default:     true,
		},
	}
}

func (t *SkillEvaluatorTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	userID, ok := int64Arg(args, "user_id")
	if !ok {
		return nil, fmt.Errorf("user_id is required")
	}

	single := stringArg(args, "message")
	batch, _ := args["messages"].([]any)
	if single != "" && len(batch) > 0 {
		return nil, fmt.Errorf("provide either message or messages, not both")
	}

	var texts []string
	if single != "" {
		texts = []string{single}
	}
	for _, raw := range batch {
		if s, ok := raw.(string); ok && s != "" {
			texts = append(texts, s)
		}
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("message or messages is required")
	}

	matched := matchSkills(texts)
	analysis := models.SkillAnalysis{}
	for _, name := range matched {
		update, err := t.advance(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		analysis.SkillsUpdated = append(analysis.SkillsUpdated, update)
	}

	if len(analysis.SkillsUpdated) == 0 {
		analysis.Summary = "No skill practice detected in the evaluated messages."
	} else {
		names := make([]string, len(analysis.SkillsUpdated))
		for i, u := range analysis.SkillsUpdated {
			names[i] = u.Name
		}
		analysis.Summary = fmt.Sprintf("Practice detected for: %s.", strings.Join(names, ", "))
	}
	return analysis, nil
}

// matchSkills returns the sorted set of skills whose keywords appear in any
// of the texts. A skill advances at most once per evaluation regardless of
// how many keywords matched.
func matchSkills(texts []string) []string {
	found := map[string]bool{}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for skill, keywords := range skillKeywords {
			if found[skill] {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					found[skill] = true
					break
				}
			}
		}
	}
	out := make([]string, 0, len(found))
	for skill := range found {
		out = append(out, skill)
	}
	sort.Strings(out)
	return out
}

func (t *SkillEvaluatorTool) advance(ctx context.Context, userID int64, name string) (models.SkillUpdate, error) {
	skill, err := t.repo.GetOrCreateSkill(ctx, name)
	if err != nil {
		return models.SkillUpdate{}, fmt.Errorf("resolve skill %q: %w", name, err)
	}
	level, err := t.repo.GetSkillLevel(ctx, userID, skill.ID)
	if err != nil {
		return models.SkillUpdate{}, fmt.Errorf("read level for %q: %w", name, err)
	}

	newLevel := level
	if level < models.MaxSkillLevel {
		newLevel = level + 1
		if err := t.repo.SetSkillLevel(ctx, userID, skill.ID, newLevel); err != nil {
			return models.SkillUpdate{}, fmt.Errorf("write level for %q: %w", name, err)
		}
	}

	feedback := fmt.Sprintf("Good use of %s.", strings.ReplaceAll(name, "_", " "))
	if newLevel >= models.MaxSkillLevel {
		feedback = fmt.Sprintf("You have mastered %s.", strings.ReplaceAll(name, "_", " "))
	}
	return models.SkillUpdate{
		Name:     name,
		OldLevel: level,
		NewLevel: newLevel,
		Feedback: feedback,
	}, nil
}
