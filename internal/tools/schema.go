package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema reflects over a Go struct (typically the tool's argument
// type) to produce a JSON-schema document for the descriptor's InputSchema,
// so built-in tools never need to hand-write one. Descriptors registered
// from outside the binary (the MCP bridge) supply their own schema document
// instead.
func GenerateSchema(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}
	return data, nil
}

// compileSchema compiles a raw JSON-schema document for runtime validation.
func compileSchema(name string, raw json.RawMessage) (*jsonschemav5.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	compiler := jsonschemav5.NewCompiler()
	resourceName := name + ".schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// validateArgs validates raw JSON input against a compiled schema. A nil
// schema (no InputSchema configured) always passes.
func validateArgs(schema *jsonschemav5.Schema, input json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var decoded any
	if len(input) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(input, &decoded); err != nil {
		return fmt.Errorf("invalid json arguments: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("arguments failed schema validation: %w", err)
	}
	return nil
}
