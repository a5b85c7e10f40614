// Package schema builds the JSON Schemas that describe tool inputs to
// the model.
package schema

import (
	"sort"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/wirebird/wirebird/src/jsonval"
)

// StringProperty creates a JSON schema for a string field.
func StringProperty(description string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	s := &jsonschema.Schema{
		Type: &jsonschema.Type{SimpleTypes: &strType},
	}
	if description != "" {
		s.Description = &description
	}
	return s
}

// ObjectSchema creates a JSON schema for an object with the given
// properties and required fields.
func ObjectSchema(properties map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	schemaProps := make(map[string]jsonschema.SchemaOrBool)
	for name, prop := range properties {
		schemaProps[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}

	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:       &jsonschema.Type{SimpleTypes: &objType},
		Properties: schemaProps,
		Required:   required,
	}
}

// StringObjectSchema creates an object schema whose properties are all
// plain strings. Property order in Required is alphabetical so the
// output is deterministic.
func StringObjectSchema(names []string) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(names))
	required := make([]string, 0, len(names))
	for _, name := range names {
		props[name] = StringProperty("")
		required = append(required, name)
	}
	sort.Strings(required)
	return ObjectSchema(props, required)
}

// ToValue converts a schema into its JSON value representation.
func ToValue(s *jsonschema.Schema) (jsonval.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return jsonval.Null(), err
	}
	return jsonval.Parse(data)
}
