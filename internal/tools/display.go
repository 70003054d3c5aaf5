package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/attunelabs/attune/pkg/models"
)

// MaxFormattedLength bounds any formatted tool result.
const MaxFormattedLength = 2000

// FormatResult renders a tool result as a human-readable string keyed by
// tool name. The output feeds both the conversation history and the
// empty-response fallback, so it must always be non-empty for ok results.
func FormatResult(result models.ToolResult) string {
	if result.IsError() {
		return truncate(fmt.Sprintf("Error from %s: %s", result.Name, result.Error))
	}

	var out string
	switch result.Name {
	case "skill_evaluator":
		out = formatSkillEvaluation(result.Value)
	case "web_search":
		out = formatWebSearch(result.Value)
	case "recall_last_conversation":
		out = formatRecall(result.Value)
	case "life_event":
		out = formatLifeEvent(result.Value)
	case "clarify_communication":
		out = formatClarification(result.Value)
	default:
		out = formatGeneric(result.Value)
	}
	if out == "" {
		out = formatGeneric(result.Value)
	}
	return truncate(out)
}

func truncate(s string) string {
	if len(s) <= MaxFormattedLength {
		return s
	}
	return s[:MaxFormattedLength-3] + "..."
}

// asMap converts struct or map values into a generic map via JSON.
func asMap(value any) (map[string]any, bool) {
	if m, ok := value.(map[string]any); ok {
		return m, true
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func asSlice(value any) ([]any, bool) {
	if s, ok := value.([]any); ok {
		return s, true
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var s []any
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return s, true
}

func formatSkillEvaluation(value any) string {
	m, ok := asMap(value)
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("📊 Skill Evaluation\n")
	if summary, ok := m["summary"].(string); ok && summary != "" {
		b.WriteString(summary + "\n")
	}
	if updates, ok := asSlice(m["skills_updated"]); ok && len(updates) > 0 {
		b.WriteString("🎯 Updated skills:\n")
		for _, u := range updates {
			um, ok := asMap(u)
			if !ok {
				continue
			}
			name, _ := um["name"].(string)
			oldLevel := numberOr(um["old_level"], 0)
			newLevel := numberOr(um["new_level"], 0)
			fmt.Fprintf(&b, "  • %s: %d → %d/10\n", name, oldLevel, newLevel)
			if feedback, ok := um["feedback"].(string); ok && feedback != "" {
				fmt.Fprintf(&b, "    💬 %s\n", feedback)
			}
		}
	} else {
		b.WriteString("No skill changes detected.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatWebSearch(value any) string {
	results, ok := asSlice(value)
	if !ok {
		if m, ok := asMap(value); ok {
			if inner, ok := asSlice(m["results"]); ok {
				results = inner
			} else {
				return ""
			}
		} else {
			return ""
		}
	}
	if len(results) == 0 {
		return "No search results found."
	}
	if len(results) > 3 {
		results = results[:3]
	}
	var b strings.Builder
	b.WriteString("Search results:\n")
	for i, r := range results {
		rm, ok := asMap(r)
		if !ok {
			continue
		}
		title, _ := rm["title"].(string)
		content, _ := rm["content"].(string)
		if len(content) > 500 {
			content = content[:500]
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, title, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRecall(value any) string {
	m, ok := asMap(value)
	if !ok {
		return ""
	}
	var b strings.Builder
	general := numberOr(m["general_count"], 0)
	ai := numberOr(m["ai_count"], 0)
	fmt.Fprintf(&b, "Conversation history: %d general, %d AI messages.\n", general, ai)
	if msgs, ok := asSlice(m["messages"]); ok {
		for _, raw := range msgs {
			mm, ok := asMap(raw)
			if !ok {
				continue
			}
			role, _ := mm["role"].(string)
			content, _ := mm["content"].(string)
			fmt.Fprintf(&b, "[%s] %s\n", role, content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLifeEvent(value any) string {
	m, ok := asMap(value)
	if !ok {
		return ""
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	return ""
}

func formatClarification(value any) string {
	m, ok := asMap(value)
	if !ok {
		return ""
	}
	detected, _ := m["EMPATHY_ISSUE_DETECTED"].(bool)
	analysis, _ := m["coaching_analysis"].(string)
	if detected {
		return "⚠️ EMPATHY CHECK:\n" + analysis
	}
	if analysis != "" {
		return analysis
	}
	if original, ok := m["original_text"].(string); ok {
		return original
	}
	return ""
}

// formatGeneric handles plain strings, lists, and dicts.
func formatGeneric(value any) string {
	switch v := value.(type) {
	case nil:
		return "(no result)"
	case string:
		return v
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	}

	if items, ok := value.([]any); ok {
		var b strings.Builder
		for i, item := range items {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %v\n", item)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	m, ok := asMap(value)
	if !ok {
		return fmt.Sprintf("%v", value)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 5 {
		keys = keys[:5]
	}
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, m[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func numberOr(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}
