package tools

import (
	"strings"
	"testing"

	"github.com/attunelabs/attune/pkg/models"
)

func TestFormatError(t *testing.T) {
	out := FormatResult(models.ToolResult{Name: "web_search", Error: "timeout"})
	if !strings.Contains(out, "web_search") || !strings.Contains(out, "timeout") {
		t.Errorf("out = %q", out)
	}
}

func TestFormatWebSearchTopThree(t *testing.T) {
	results := []any{
		map[string]any{"title": "Weather Paris", "content": "15°C cloudy"},
		map[string]any{"title": "Second", "content": "b"},
		map[string]any{"title": "Third", "content": "c"},
		map[string]any{"title": "Fourth", "content": "d"},
	}
	out := FormatResult(models.ToolResult{Name: "web_search", Value: results})
	if !strings.Contains(out, "Weather Paris") || !strings.Contains(out, "15°C cloudy") {
		t.Errorf("out = %q", out)
	}
	if strings.Contains(out, "Fourth") {
		t.Error("only top 3 results should be shown")
	}
}

func TestFormatWebSearchLongContentClipped(t *testing.T) {
	long := strings.Repeat("x", 800)
	out := FormatResult(models.ToolResult{Name: "web_search", Value: []any{
		map[string]any{"title": "T", "content": long},
	}})
	if strings.Count(out, "x") > 500 {
		t.Errorf("content not clipped to 500 chars: %d", strings.Count(out, "x"))
	}
}

func TestFormatSkillEvaluation(t *testing.T) {
	value := map[string]any{
		"summary": "One skill improved.",
		"skills_updated": []any{
			map[string]any{"name": "empathy", "old_level": 3, "new_level": 4, "feedback": "good listening"},
		},
	}
	out := FormatResult(models.ToolResult{Name: "skill_evaluator", Value: value})
	if !strings.Contains(out, "📊") {
		t.Errorf("missing section marker: %q", out)
	}
	if !strings.Contains(out, "empathy: 3 → 4/10") {
		t.Errorf("missing skill line: %q", out)
	}
}

func TestFormatRecall(t *testing.T) {
	value := map[string]any{
		"general_count": 2,
		"ai_count":      5,
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
			map[string]any{"role": "assistant", "content": "hello"},
		},
	}
	out := FormatResult(models.ToolResult{Name: "recall_last_conversation", Value: value})
	if !strings.Contains(out, "2 general") || !strings.Contains(out, "5 AI") {
		t.Errorf("missing counts: %q", out)
	}
	if !strings.Contains(out, "[assistant] hello") {
		t.Errorf("missing message: %q", out)
	}
}

func TestFormatClarification(t *testing.T) {
	detected := map[string]any{
		"EMPATHY_ISSUE_DETECTED": true,
		"coaching_analysis":      "Tone may come across as dismissive.",
	}
	out := FormatResult(models.ToolResult{Name: "clarify_communication", Value: detected})
	if !strings.HasPrefix(out, "⚠️ EMPATHY CHECK:") {
		t.Errorf("missing prefix: %q", out)
	}

	clean := map[string]any{
		"EMPATHY_ISSUE_DETECTED": false,
		"coaching_analysis":      "Reads fine.",
	}
	out = FormatResult(models.ToolResult{Name: "clarify_communication", Value: clean})
	if strings.HasPrefix(out, "⚠️") {
		t.Errorf("clean text must not carry the warning prefix: %q", out)
	}
}

func TestFormatGenericDict(t *testing.T) {
	value := map[string]any{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7}
	out := FormatResult(models.ToolResult{Name: "anything", Value: value})
	if strings.Count(out, "\n") > 4 {
		t.Errorf("more than five lines: %q", out)
	}
}

func TestFormatGenericList(t *testing.T) {
	value := []any{"one", "two", "three", "four", "five", "six"}
	out := FormatResult(models.ToolResult{Name: "anything", Value: value})
	if strings.Contains(out, "six") {
		t.Errorf("list must be clipped at five items: %q", out)
	}
}

func TestFormatPlainString(t *testing.T) {
	out := FormatResult(models.ToolResult{Name: "format_output", Value: "already formatted"})
	if out != "already formatted" {
		t.Errorf("out = %q", out)
	}
}

func TestFormatBounded(t *testing.T) {
	out := FormatResult(models.ToolResult{Name: "anything", Value: strings.Repeat("long ", 1000)})
	if len(out) > MaxFormattedLength {
		t.Errorf("len = %d, max %d", len(out), MaxFormattedLength)
	}
}
