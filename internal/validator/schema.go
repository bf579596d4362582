package validator

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// checkStructure runs a generic JSON Schema pass over args using
// descriptor's input schema, the same way the envelope-shape check the
// rest of this codebase's tool-call gateway always ran first. It catches
// malformed envelopes (wrong top-level type, missing id/data, unexpected
// top-level keys) before the field-by-field constraint evaluation in
// validator.go runs; it is not a substitute for that evaluation; pattern
// and whitelist failures surfaced by the schema here are re-checked with
// precise ViolationKinds afterward.
func checkStructure(inputSchema map[string]any, args map[string]any) error {
	raw, err := json.Marshal(inputSchema)
	if err != nil {
		return fmt.Errorf("invalid input schema: %w", err)
	}
	var schemaObj any
	if err := json.Unmarshal(raw, &schemaObj); err != nil {
		return fmt.Errorf("invalid input schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool.json", schemaObj); err != nil {
		return fmt.Errorf("compiling tool schema: %w", err)
	}
	sch, err := c.Compile("tool.json")
	if err != nil {
		return fmt.Errorf("compiling tool schema: %w", err)
	}

	instance, err := toJSONValue(args)
	if err != nil {
		return err
	}
	if err := sch.Validate(instance); err != nil {
		return err
	}
	return nil
}

// toJSONValue round-trips a Go map through JSON so jsonschema sees the
// same plain any/map[string]any/[]any shapes it would after decoding a
// wire request, regardless of what concrete types the caller built args
// with.
func toJSONValue(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("arguments are not serializable: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("arguments round-trip failed: %w", err)
	}
	return v, nil
}
