// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package seed

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// schemaCache holds the compiled schema to avoid recompilation.
var schemaCache *jschema.Schema

// SchemaID is the schema $id referenced from seed.yaml files.
const SchemaID = "https://novamush.dev/schemas/seed.schema.json"

// GenerateSchema generates a JSON Schema from the Manifest struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "NovaMUSH Seed Manifest"
	schema.Description = "Schema for seed manifest YAML files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.
			Code(CodeSchemaFailed).
			With("operation", "marshal schema").
			Wrap(err)
	}
	return data, nil
}

// ValidateSchema validates raw manifest YAML against the seed schema.
// Structural checks beyond the schema live in Manifest.Validate.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code(CodeInvalid).New("manifest data is empty")
	}

	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return oops.
			Code(CodeInvalid).
			With("operation", "parse manifest").
			Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	if err := sch.Validate(convertToJSONTypes(yamlData)); err != nil {
		return oops.
			Code(CodeInvalid).
			With("operation", "schema validation").
			Wrap(err)
	}
	return nil
}

// compiledSchema returns the cached compiled schema or compiles it.
func compiledSchema() (*jschema.Schema, error) {
	if schemaCache != nil {
		return schemaCache, nil
	}

	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.
			Code(CodeSchemaFailed).
			With("operation", "parse schema JSON").
			Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("seed.schema.json", schemaData); err != nil {
		return nil, oops.
			Code(CodeSchemaFailed).
			With("operation", "add schema resource").
			Wrap(err)
	}
	sch, err := c.Compile("seed.schema.json")
	if err != nil {
		return nil, oops.
			Code(CodeSchemaFailed).
			With("operation", "compile schema").
			Wrap(err)
	}

	schemaCache = sch
	return sch, nil
}

// convertToJSONTypes rewrites YAML-parsed values into the types the
// schema validator expects, recursing through maps and sequences.
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertToJSONTypes(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertToJSONTypes(item)
		}
		return result
	case string, int, int64, float64, bool, nil:
		return val
	default:
		// Unusual YAML types go through a JSON round-trip.
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}
