package tool

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// schemaForType derives a JSON schema for a tool's argument struct. Field
// names come from json tags and descriptions from desc tags; fields without
// omitempty are required.
func schemaForType[T any]() map[string]any {
	var zero T
	return schemaForReflectType(reflect.TypeOf(zero))
}

func schemaForReflectType(t reflect.Type) map[string]any {
	if t == nil {
		return map[string]any{"type": "object"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		properties := map[string]any{}
		var required []string
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, optional, skip := jsonName(field)
			if skip {
				continue
			}
			prop := schemaForReflectType(field.Type)
			if desc := strings.TrimSpace(field.Tag.Get("desc")); desc != "" {
				prop["description"] = desc
			}
			properties[name] = prop
			if !optional {
				required = append(required, name)
			}
		}
		out := map[string]any{
			"type":                 "object",
			"properties":           properties,
			"additionalProperties": false,
		}
		if len(required) > 0 {
			sort.Strings(required)
			out["required"] = required
		}
		return out
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": schemaForReflectType(t.Elem())}
	case reflect.Map, reflect.Interface:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{"type": "string"}
	}
}

func jsonName(field reflect.StructField) (name string, optional, skip bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" {
		return "", false, true
	}
	if n := strings.TrimSpace(parts[0]); n != "" {
		name = n
	}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "omitempty" {
			optional = true
		}
	}
	return name, optional, false
}

// checkTagParams rejects top-level properties that cannot appear as tags,
// since a tag-protocol model could never supply them.
func checkTagParams(tool toolvocab.ToolName, schema map[string]any, vocab *toolvocab.Vocabulary) error {
	props, _ := schema["properties"].(map[string]any)
	var unknown []string
	for name := range props {
		if !vocab.IsParam(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("tool: %s: parameters %s are not in the tag vocabulary", tool, strings.Join(unknown, ", "))
}
