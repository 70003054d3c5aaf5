package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/attunelabs/attune/internal/tools"
)

// harshPatterns are phrases that tend to escalate rather than resolve. Any
// match flags the text for an empathy check.
var harshPatterns = []string{
	"you always",
	"you never",
	"whatever",
	"calm down",
	"that's stupid",
	"that's ridiculous",
	"you're wrong",
	"shut up",
	"i don't care",
	"not my problem",
	"obviously",
	"as i already said",
}

// ClarifyTool reviews a message the user is about to send and flags wording
// likely to land badly, with a short coaching note.
type ClarifyTool struct{}

// NewClarifyTool creates the tool.
func NewClarifyTool() *ClarifyTool {
	return &ClarifyTool{}
}

func (t *ClarifyTool) Name() string { return "clarify_communication" }

func (t *ClarifyTool) Description() string {
	return "Review a message for tone and clarity before it is sent. Flags dismissive or escalating wording and suggests how to soften it."
}

func (t *ClarifyTool) Schema() tools.Schema {
	return tools.Schema{
		"text": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "The message text to review",
		},
		"target_language": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "Language the message will be delivered in",
		},
		"source_language": {
			Type:        tools.TypeString,
			Description: "Language the message was written in",
			Default:     "auto",
		},
		"context": {
			Type:        tools.TypeString,
			Description: "Conversation context the message belongs to",
			Default:     "",
		},
	}
}

func (t *ClarifyTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	text := stringArg(args, "text")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text must not be empty")
	}

	lower := strings.ToLower(text)
	var hits []string
	for _, pattern := range harshPatterns {
		if strings.Contains(lower, pattern) {
			hits = append(hits, pattern)
		}
	}

	detected := len(hits) > 0
	var analysis string
	var action string
	if detected {
		analysis = fmt.Sprintf(
			"The phrase %q can come across as dismissive. Consider restating what the other person said first, then your own view.",
			hits[0],
		)
		action = "rephrase_before_sending"
	} else {
		analysis = "The message reads clearly and respectfully."
		action = "none"
	}

	return map[string]any{
		"original_text":          text,
		"EMPATHY_ISSUE_DETECTED": detected,
		"coaching_analysis":      analysis,
		"action_required":        action,
	}, nil
}
