package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a JSON schema from a Go result type, suitable for a
// request's structured-output constraint. Reflection happens once per
// type at wave setup, not per request.
func SchemaFor(v any) (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline definitions; engines reject $ref-heavy schemas
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return raw, nil
}

// MustSchemaFor panics on reflection failure; used for package-level
// schema variables where the type is fixed at compile time.
func MustSchemaFor(v any) json.RawMessage {
	raw, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return raw
}
