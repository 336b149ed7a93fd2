package plugin

import (
	"encoding"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

var (
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// checkTypes compares a generic JSON value (decoded with UseNumber) against
// the Go type it will be unmarshaled into and reports every mismatch with
// its indexed path. encoding/json stops at the first mismatch and loses
// slice indexes, so the walk is done here instead. Null is accepted
// anywhere; required checks catch missing values.
func checkTypes(v any, t reflect.Type, path string) []FieldError {
	if v == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(jsonUnmarshalerType) {
		return nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		if _, ok := v.(string); ok {
			return nil
		}
		return mismatch(path, "string", v)
	}

	switch t.Kind() {
	case reflect.Interface:
		return nil
	case reflect.String:
		if _, ok := v.(string); !ok {
			return mismatch(path, "string", v)
		}
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			return mismatch(path, "boolean", v)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := v.(json.Number)
		if !ok {
			return mismatch(path, "number", v)
		}
		if _, err := n.Int64(); err != nil {
			return []FieldError{{Path: path, Message: "Expected integer, received " + n.String()}}
		}
	case reflect.Float32, reflect.Float64:
		if _, ok := v.(json.Number); !ok {
			return mismatch(path, "number", v)
		}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			if _, ok := v.(string); ok {
				return nil
			}
		}
		list, ok := v.([]any)
		if !ok {
			return mismatch(path, "array", v)
		}
		var errs []FieldError
		for i, item := range list {
			errs = append(errs, checkTypes(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i))...)
		}
		return errs
	case reflect.Map:
		m, ok := v.(map[string]any)
		if !ok {
			return mismatch(path, "object", v)
		}
		var errs []FieldError
		for _, k := range slices.Sorted(maps.Keys(m)) {
			errs = append(errs, checkTypes(m[k], t.Elem(), joinKey(path, k))...)
		}
		return errs
	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok {
			return mismatch(path, "object", v)
		}
		return checkStruct(m, t, path)
	}
	return nil
}

func checkStruct(m map[string]any, t reflect.Type, path string) []FieldError {
	var errs []FieldError
	for i := range t.NumField() {
		f := t.Field(i)
		name := jsonName(f)
		if f.Anonymous && f.Tag.Get("json") == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				errs = append(errs, checkStruct(m, ft, path)...)
				continue
			}
		}
		if !f.IsExported() || name == "" {
			continue
		}
		if val, present := m[name]; present {
			errs = append(errs, checkTypes(val, f.Type, joinKey(path, name))...)
		}
	}
	return errs
}

func mismatch(path, want string, got any) []FieldError {
	return []FieldError{{Path: path, Message: fmt.Sprintf("Expected %s, received %s", want, jsonTypeName(got))}}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
