package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/pkg/models"
)

// promptContext gathers everything the system prompt is assembled from.
type promptContext struct {
	user      *models.User
	language  string
	prefs     map[string]models.Preference
	recalled  []models.Message
	trainings string
	defs      []tools.Definition
	family    providers.Family
}

// gatherPromptContext loads the per-user pieces of the system prompt.
func (s *Service) gatherPromptContext(ctx context.Context, userID int64, language string, family providers.Family) (*promptContext, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.repo.GetPreferences(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	recalled, err := s.store.ForUser(userID).Recall(ctx, s.config.RecallLimit, "")
	if err != nil {
		return nil, err
	}
	trainings := ""
	if plan, err := s.store.ForUser(userID).Plan(ctx); err == nil && plan != nil {
		trainings = trainingSummary(plan)
	}
	return &promptContext{
		user:      user,
		language:  language,
		prefs:     prefs,
		recalled:  recalled,
		trainings: trainings,
		defs:      s.registry.Definitions(),
		family:    family,
	}, nil
}

// buildSystemPrompt renders the assembled context into the system message.
func buildSystemPrompt(pc *promptContext) string {
	var b strings.Builder

	b.WriteString("You are Attune, a supportive conversational companion. ")
	b.WriteString("You help people communicate better, remember what matters to them, ")
	b.WriteString("and coach them on conversational skills without being preachy.\n")

	if pc.user != nil {
		fmt.Fprintf(&b, "\nYou are talking with %s.\n", pc.user.Username)
	}
	if pc.language != "" {
		fmt.Fprintf(&b, "Always respond in %s unless asked otherwise.\n", pc.language)
	}

	if prefLines := preferenceLines(pc.prefs); len(prefLines) > 0 {
		b.WriteString("\nKnown preferences:\n")
		for _, line := range prefLines {
			b.WriteString("- " + line + "\n")
		}
	}

	if pc.trainings != "" {
		b.WriteString("\n" + pc.trainings + "\n")
	}

	if len(pc.recalled) > 0 {
		b.WriteString("\nRecent conversation history:\n")
		for _, msg := range pc.recalled {
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
		}
	}

	if len(pc.defs) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, def := range pc.defs {
			fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
		}
		if pc.family == providers.FamilyLocal {
			b.WriteString(localEnvelopeInstructions(pc.defs))
		}
	}
	return b.String()
}

// preferenceLines renders non-sensitive preferences as prompt bullet points,
// sorted for stable prompts.
func preferenceLines(prefs map[string]models.Preference) []string {
	var lines []string
	for key, pref := range prefs {
		if models.SensitivePreferenceTypes[pref.Type] {
			continue
		}
		var value string
		if err := json.Unmarshal(pref.Value, &value); err != nil {
			value = string(pref.Value)
		}
		lines = append(lines, fmt.Sprintf("%s/%s: %s", pref.Type, key, value))
	}
	sort.Strings(lines)
	return lines
}

// trainingSummary renders active trainings for the prompt.
func trainingSummary(plan *models.TrainingPlan) string {
	type row struct {
		name  string
		entry *models.TrainingEntry
	}
	var rows []row
	for name, entry := range plan.Trainings {
		if entry.Status == models.TrainingActive {
			rows = append(rows, row{name, entry})
		}
	}
	if len(rows) == 0 {
		return ""
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	var b strings.Builder
	b.WriteString("The user is actively training these skills; weave gentle coaching in when natural:\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s (level %d/%d)\n", r.entry.SkillName, r.entry.CurrentLevel, r.entry.TargetLevel)
	}
	return strings.TrimRight(b.String(), "\n")
}

// localEnvelopeInstructions tells local models, which have no native
// tool-calling API, how to request tools through a JSON envelope in the
// response text.
func localEnvelopeInstructions(defs []tools.Definition) string {
	var b strings.Builder
	b.WriteString("\nTo use a tool, respond with only this JSON object and nothing else:\n")
	b.WriteString(`{"formatted_output": null, "tool_calls": [{"name": "<tool name>", "arguments": {<arguments>}}]}`)
	b.WriteString("\nWhen you have the final answer, respond with:\n")
	b.WriteString(`{"formatted_output": "<your answer>", "tool_calls": []}`)
	b.WriteString("\nTool argument schemas:\n")
	for _, def := range defs {
		if schema, err := json.Marshal(def.Schema.JSONSchemaMap()); err == nil {
			fmt.Fprintf(&b, "%s: %s\n", def.Name, schema)
		}
	}
	return b.String()
}
