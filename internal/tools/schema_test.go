package tools

import (
	"strings"
	"testing"
)

func TestSchemaCheckRules(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr string
		warns   int
	}{
		{
			name: "valid",
			schema: Schema{
				"query":       {Type: TypeString, Required: true, Description: "search query"},
				"max_results": {Type: TypeInteger, Description: "result cap", Default: 5},
			},
		},
		{
			name: "missing description",
			schema: Schema{
				"query": {Type: TypeString, Required: true},
			},
			wantErr: "description",
		},
		{
			name: "required with default",
			schema: Schema{
				"query": {Type: TypeString, Required: true, Description: "q", Default: "x"},
			},
			wantErr: "must not declare defaults",
		},
		{
			name: "bad type",
			schema: Schema{
				"query": {Type: "union", Description: "q"},
			},
			wantErr: "unsupported type",
		},
		{
			name: "array without item type",
			schema: Schema{
				"items": {Type: TypeArray, Description: "list"},
			},
			wantErr: "item type",
		},
		{
			name: "optional without default warns",
			schema: Schema{
				"context": {Type: TypeString, Description: "extra context"},
			},
			warns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := tt.schema.Check()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(warnings) != tt.warns {
				t.Errorf("warnings = %v, want %d", warnings, tt.warns)
			}
		})
	}
}

func TestValidateArgsCoercion(t *testing.T) {
	schema := Schema{
		"query":       {Type: TypeString, Required: true, Description: "q"},
		"max_results": {Type: TypeInteger, Description: "cap", Default: 5},
		"threshold":   {Type: TypeNumber, Description: "cutoff", Default: 0.5},
		"verbose":     {Type: TypeBoolean, Description: "flag", Default: false},
	}

	args, err := schema.ValidateArgs(map[string]any{
		"query":       "weather",
		"max_results": "3",
		"threshold":   "0.9",
		"verbose":     "true",
		"surplus":     "dropped",
	})
	if err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	if args["max_results"] != 3 {
		t.Errorf("max_results = %v (%T)", args["max_results"], args["max_results"])
	}
	if args["threshold"] != 0.9 {
		t.Errorf("threshold = %v", args["threshold"])
	}
	if args["verbose"] != true {
		t.Errorf("verbose = %v", args["verbose"])
	}
	if _, ok := args["surplus"]; ok {
		t.Error("unknown argument should be dropped")
	}
}

func TestValidateArgsMissingRequired(t *testing.T) {
	schema := Schema{
		"query": {Type: TypeString, Required: true, Description: "q"},
	}
	if _, err := schema.ValidateArgs(map[string]any{}); err == nil {
		t.Error("missing required argument must fail")
	}
}

func TestValidateArgsDefaultsApplied(t *testing.T) {
	schema := Schema{
		"lang": {Type: TypeString, Description: "language", Default: "English"},
	}
	args, err := schema.ValidateArgs(map[string]any{})
	if err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	if args["lang"] != "English" {
		t.Errorf("default not applied: %v", args["lang"])
	}
}

func TestValidateArgsEnum(t *testing.T) {
	schema := Schema{
		"action": {Type: TypeString, Required: true, Description: "op", Enum: []string{"get", "set", "delete"}},
	}
	if _, err := schema.ValidateArgs(map[string]any{"action": "set"}); err != nil {
		t.Errorf("valid enum value rejected: %v", err)
	}
	if _, err := schema.ValidateArgs(map[string]any{"action": "explode"}); err == nil {
		t.Error("invalid enum value accepted")
	}
}

func TestJSONSchemaMap(t *testing.T) {
	schema := Schema{
		"tags": {Type: TypeArray, Items: TypeString, Required: true, Description: "tag list"},
	}
	m := schema.JSONSchemaMap()
	if m["type"] != "object" {
		t.Errorf("type = %v", m["type"])
	}
	props := m["properties"].(map[string]any)
	tags := props["tags"].(map[string]any)
	items := tags["items"].(map[string]any)
	if items["type"] != "string" {
		t.Errorf("items type = %v", items["type"])
	}
	required := m["required"].([]string)
	if len(required) != 1 || required[0] != "tags" {
		t.Errorf("required = %v", required)
	}
}
