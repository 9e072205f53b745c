package models

import (
	"reflect"
	"strings"
	"unicode"
)

var (
	objectIDType  = reflect.TypeOf(ObjectID{})
	timestampType = reflect.TypeOf(Timestamp{})
)

type enumType interface {
	Values() []string
}

// JSONSchema reflects a JSON-Schema object description of v using its json
// tags. Pointer fields become nullable unions, timestamps carry the
// date-time format and identifiers the ObjectId format.
func JSONSchema(v any, title string) map[string]any {
	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	props := make(map[string]any)
	order := []string{}
	collectProperties(rt, props, &order)

	required := []string{}
	for _, name := range order {
		def := props[name].(map[string]any)
		if req, ok := def["x-required"]; ok {
			delete(def, "x-required")
			if req.(bool) {
				required = append(required, name)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"title":      title,
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	if len(order) > 0 {
		schema["x-order"] = order
	}
	return schema
}

// collectProperties walks embedded structs first so that outer fields
// replace inherited ones with the same JSON name.
func collectProperties(rt reflect.Type, props map[string]any, order *[]string) {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("json") == "" {
			collectProperties(f.Type, props, order)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		def := fieldSchema(f.Type)
		def["title"] = TitleCase(name)
		def["x-required"] = strings.Contains(f.Tag.Get("validate"), "required")

		if _, exists := props[name]; !exists {
			*order = append(*order, name)
		}
		props[name] = def
	}
}

func fieldSchema(ft reflect.Type) map[string]any {
	if ft.Kind() == reflect.Pointer {
		return map[string]any{
			"anyOf": []any{fieldSchema(ft.Elem()), map[string]any{"type": "null"}},
		}
	}

	switch ft {
	case objectIDType:
		return map[string]any{"type": "string", "format": "ObjectId"}
	case timestampType:
		return map[string]any{"type": "string", "format": "date-time"}
	}

	if ft.Implements(reflect.TypeOf((*enumType)(nil)).Elem()) {
		values := reflect.Zero(ft).Interface().(enumType).Values()
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = v
		}
		return map[string]any{"type": "string", "enum": enum}
	}

	switch ft.Kind() {
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
		return map[string]any{"type": "array", "items": fieldSchema(ft.Elem())}
	case reflect.Map, reflect.Struct:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}

// TitleCase turns a snake_case field name into its display title, e.g.
// "created_at" becomes "Created At".
func TitleCase(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
