package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// schemaValidator returns the shared validator. Field names in reported
// paths come from json tags so they match the serialized block data.
func schemaValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		validate = v
	})
	return validate
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// decodeData unmarshals raw block data into dst. Type mismatches are
// reported as field errors, one per mismatched value, and the remaining
// fields are still decoded.
func decodeData(raw json.RawMessage, dst any) []FieldError {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return []FieldError{{Message: fmt.Sprintf("Invalid JSON at offset %d: %v", syntaxErr.Offset, err)}}
		}
		return []FieldError{{Message: err.Error()}}
	}
	typeErrs := checkTypes(generic, reflect.TypeOf(dst), "")

	// Unmarshal skips mismatched values and fills in the rest.
	err := json.Unmarshal(raw, dst)
	if err == nil || len(typeErrs) > 0 {
		return typeErrs
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("Expected %s, received %s", kindName(typeErr.Type), typeErr.Value),
		}}
	}
	return []FieldError{{Message: err.Error()}}
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Int, reflect.Int64, reflect.Float64, reflect.Float32:
		return "number"
	}
	return t.Kind().String()
}

// validateValue runs struct-tag validation and converts the result into
// field errors with JSON paths such as "items[0].title".
func validateValue(v any) []FieldError {
	err := schemaValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Path:    namespacePath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// namespacePath drops the leading struct type name from a validator namespace.
func namespacePath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ""
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "url", "http_url":
		return "Invalid url"
	case "oneof":
		return "Invalid enum value. Expected " + strings.Join(strings.Fields(fe.Param()), " | ")
	case "min", "gte":
		switch fe.Kind() {
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("Must contain at least %s item(s)", fe.Param())
		case reflect.String:
			return fmt.Sprintf("Must contain at least %s character(s)", fe.Param())
		}
		return "Must be greater than or equal to " + fe.Param()
	case "max", "lte":
		switch fe.Kind() {
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("Must contain at most %s item(s)", fe.Param())
		case reflect.String:
			return fmt.Sprintf("Must contain at most %s character(s)", fe.Param())
		}
		return "Must be less than or equal to " + fe.Param()
	}
	return fmt.Sprintf("Failed %q validation", fe.Tag())
}

// mergeErrors appends schema errors, skipping any at or below a path the
// decoder already reported, so a type mismatch is reported once.
func mergeErrors(decodeErrs, schemaErrs []FieldError) []FieldError {
	if len(decodeErrs) == 0 {
		return schemaErrs
	}
	out := decodeErrs
	for _, e := range schemaErrs {
		if !coveredBy(e.Path, decodeErrs) {
			out = append(out, e)
		}
	}
	return out
}

func coveredBy(path string, reported []FieldError) bool {
	for _, r := range reported {
		if r.Path == "" || path == r.Path {
			return true
		}
		if strings.HasPrefix(path, r.Path) && (path[len(r.Path)] == '.' || path[len(r.Path)] == '[') {
			return true
		}
	}
	return false
}
