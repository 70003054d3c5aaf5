package toolconv

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/attunelabs/attune/internal/tools"
)

// ToAnthropic renders definitions as Anthropic tool params.
func ToAnthropic(defs []tools.Definition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schemaMap := def.Schema.JSONSchemaMap()

		input := anthropic.ToolInputSchemaParam{
			Properties: schemaMap["properties"],
		}
		if required, ok := schemaMap["required"].([]string); ok && len(required) > 0 {
			input.ExtraFields = map[string]any{"required": required}
		}

		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: input,
			},
		})
	}
	return out
}
