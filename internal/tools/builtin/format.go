package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/attunelabs/attune/internal/tools"
)

// FormatOutputTool pretty-prints data for display. Local models sometimes
// call it instead of emitting plain text, so the tool has to cope with
// whatever shape arrives.
type FormatOutputTool struct{}

// NewFormatOutputTool creates the tool.
func NewFormatOutputTool() *FormatOutputTool {
	return &FormatOutputTool{}
}

func (t *FormatOutputTool) Name() string { return "format_output" }

func (t *FormatOutputTool) Description() string {
	return "Format data for display. Accepts raw text or a JSON-encoded structure and returns a readable rendering."
}

func (t *FormatOutputTool) Schema() tools.Schema {
	return tools.Schema{
		"data": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "The data to format, as text or JSON",
		},
		"data_type": {
			Type:        tools.TypeString,
			Description: "Hint for the input shape",
			Enum:        []string{"auto", "text", "json", "list"},
			Default:     "auto",
		},
	}
}

func (t *FormatOutputTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	data := stringArg(args, "data")
	if strings.TrimSpace(data) == "" {
		return nil, fmt.Errorf("data must not be empty")
	}
	dataType := stringArg(args, "data_type")
	if dataType == "" {
		dataType = "auto"
	}

	if dataType == "text" {
		return data, nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		if dataType == "json" || dataType == "list" {
			return nil, fmt.Errorf("data is not valid JSON: %w", err)
		}
		return data, nil
	}

	switch v := decoded.(type) {
	case string:
		return v, nil
	case []any:
		var b strings.Builder
		for _, item := range v {
			fmt.Fprintf(&b, "- %v\n", renderValue(item))
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case map[string]any:
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("format JSON: %w", err)
		}
		return string(pretty), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func renderValue(v any) string {
	if m, ok := v.(map[string]any); ok {
		if compact, err := json.Marshal(m); err == nil {
			return string(compact)
		}
	}
	return fmt.Sprintf("%v", v)
}
