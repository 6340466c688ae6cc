// Package schema validates tool call arguments against a
// ToolDescriptor's JSON Schema before dispatch, caching compiled schemas
// keyed by their raw text.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var cache sync.Map

// Validate parses argsJSON and checks it against schemaJSON, a raw JSON
// Schema document. An empty schemaJSON always passes.
func Validate(schemaJSON, argsJSON string) error {
	if schemaJSON == "" {
		return nil
	}

	compiled, err := compile(schemaJSON)
	if err != nil {
		return fmt.Errorf("schema: compile: %w", err)
	}

	var decoded any
	if err := json.Unmarshal([]byte(argsJSON), &decoded); err != nil {
		return fmt.Errorf("schema: decode arguments: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("schema: arguments invalid: %w", err)
	}
	return nil
}

func compile(schemaJSON string) (*jsonschema.Schema, error) {
	if cached, ok := cache.Load(schemaJSON); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", schemaJSON)
	if err != nil {
		return nil, err
	}
	cache.Store(schemaJSON, compiled)
	return compiled, nil
}
