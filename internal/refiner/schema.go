package refiner

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// coilSchema accepts {"coils": [coil...]}, a bare [coil...] or a single coil,
// where a coil is an object of scalar values.
const coilSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "coil": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
    }
  },
  "anyOf": [
    {
      "type": "object",
      "required": ["coils"],
      "properties": {
        "coils": {"type": "array", "items": {"$ref": "#/definitions/coil"}}
      }
    },
    {"type": "array", "items": {"$ref": "#/definitions/coil"}},
    {"$ref": "#/definitions/coil"}
  ]
}`

var (
	compiledSchema *jsonschema.Schema
	schemaOnce     sync.Once
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("coils.json", strings.NewReader(coilSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("coils.json")
	})
	return compiledSchema, schemaErr
}

// validateShape checks a decoded reply against the coil schema.
func validateShape(v interface{}) error {
	sch, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}
