package toolconv

import (
	"strings"

	"google.golang.org/genai"

	"github.com/attunelabs/attune/internal/tools"
)

// ToGemini renders definitions as Gemini function declarations. Gemini's
// schema dialect is stricter than the OpenAI one: no unions, no defaults, and
// arrays must declare their item type, so the conversion works field-by-field
// from the typed schema rather than through a generic JSON Schema map.
func ToGemini(defs []tools.Definition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  geminiSchema(def.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func geminiSchema(schema tools.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
	}
	for name, field := range schema {
		prop := &genai.Schema{
			Type:        geminiType(field.Type),
			Description: field.Description,
		}
		if field.Type == tools.TypeArray {
			prop.Items = &genai.Schema{Type: geminiType(field.Items)}
		}
		if len(field.Enum) > 0 {
			prop.Enum = append(prop.Enum, field.Enum...)
		}
		out.Properties[name] = prop
		if field.Required {
			out.Required = append(out.Required, name)
		}
	}
	return out
}

func geminiType(t tools.FieldType) genai.Type {
	return genai.Type(strings.ToUpper(string(t)))
}
