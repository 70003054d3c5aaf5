// Package tools provides the registry of named, schema-validated tools the
// agent may invoke, the dispatch runtime, and result formatting.
package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldType enumerates the argument types a tool schema may declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

var validFieldTypes = map[FieldType]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeArray:   true,
	TypeObject:  true,
}

// Field describes one tool argument.
type Field struct {
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Default     any       `json:"default,omitempty"`

	// Items declares the element type for array fields. Only simple element
	// types are allowed.
	Items FieldType `json:"items,omitempty"`

	// Enum restricts string fields to a fixed value set.
	Enum []string `json:"enum,omitempty"`
}

// Schema maps argument names to field descriptions.
type Schema map[string]Field

// Check validates the schema at registration time. Violations of hard rules
// are errors; optional fields without defaults are reported as warnings.
func (s Schema) Check() ([]string, error) {
	var warnings []string
	for name, field := range s {
		if !validFieldTypes[field.Type] {
			return nil, fmt.Errorf("field %q: unsupported type %q", name, field.Type)
		}
		if field.Description == "" {
			return nil, fmt.Errorf("field %q: description is required", name)
		}
		if field.Required && field.Default != nil {
			return nil, fmt.Errorf("field %q: required fields must not declare defaults", name)
		}
		if field.Type == TypeArray {
			switch field.Items {
			case TypeString, TypeInteger, TypeNumber, TypeBoolean:
			default:
				return nil, fmt.Errorf("field %q: array fields must declare a simple item type", name)
			}
		}
		if !field.Required && field.Default == nil {
			warnings = append(warnings, fmt.Sprintf("field %q: optional without default", name))
		}
	}

	// Self-check: the generated JSON schema must compile.
	raw, err := json.Marshal(s.JSONSchemaMap())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	if _, err := jsonschema.CompileString("tool_schema", string(raw)); err != nil {
		return nil, fmt.Errorf("generated schema does not compile: %w", err)
	}
	return warnings, nil
}

// JSONSchemaMap renders the schema as a generic JSON Schema object, the
// dialect OpenAI-style APIs expect.
func (s Schema) JSONSchemaMap() map[string]any {
	properties := map[string]any{}
	var required []string
	for name, field := range s {
		prop := map[string]any{
			"type":        string(field.Type),
			"description": field.Description,
		}
		if field.Type == TypeArray {
			prop["items"] = map[string]any{"type": string(field.Items)}
		}
		if field.Type == TypeObject {
			prop["additionalProperties"] = true
		}
		if len(field.Enum) > 0 {
			enum := make([]any, len(field.Enum))
			for i, v := range field.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		if field.Default != nil {
			prop["default"] = field.Default
		}
		properties[name] = prop
		if field.Required {
			required = append(required, name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// ValidateArgs checks an inbound argument map against the schema, coercing
// compatible values (string-encoded numbers and booleans) and applying
// defaults for absent optional fields.
func (s Schema) ValidateArgs(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for name, field := range s {
		value, present := args[name]
		if !present || value == nil {
			if field.Required {
				return nil, fmt.Errorf("missing required argument %q", name)
			}
			if field.Default != nil {
				out[name] = field.Default
			}
			continue
		}
		coerced, err := coerce(field, value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = coerced
	}
	// Unknown arguments are dropped rather than rejected; local models
	// routinely invent extras.
	return out, nil
}

func coerce(field Field, value any) (any, error) {
	switch field.Type {
	case TypeString:
		switch v := value.(type) {
		case string:
			if len(field.Enum) > 0 && !containsString(field.Enum, v) {
				return nil, fmt.Errorf("value %q not in %v", v, field.Enum)
			}
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case TypeInteger:
		switch v := value.(type) {
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("%v is not an integer", v)
			}
			return int(v), nil
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", v)
			}
			return n, nil
		}
	case TypeNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", v)
			}
			return f, nil
		}
	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", v)
			}
			return b, nil
		}
	case TypeArray:
		if v, ok := value.([]any); ok {
			return v, nil
		}
	case TypeObject:
		if v, ok := value.(map[string]any); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", value, field.Type)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
