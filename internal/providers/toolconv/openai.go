// Package toolconv converts provider-neutral tool definitions into the
// schema dialects of the supported back-ends.
package toolconv

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/attunelabs/attune/internal/tools"
)

// ToOpenAI renders definitions as OpenAI function tools. The same shape is
// used by OpenAI-compatible local servers.
func ToOpenAI(defs []tools.Definition) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Schema.JSONSchemaMap(),
			},
		})
	}
	return out
}
