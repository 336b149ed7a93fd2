// Package plugin defines the block plugin contract shared by the validator,
// the renderers and the editor, and the registry that maps block types to
// plugins.
package plugin

import (
	"encoding/json"
	"html/template"
	"net/url"
)

// Plugin is the interface every block type implements.
// It is type-erased so that a Registry can hold heterogeneous block types;
// Definition provides a typed implementation.
type Plugin interface {
	// Type is the unique discriminator stored in BlockNode.type.
	Type() string

	// Label is the human readable name shown in the editor palette.
	Label() string

	// Version is the current schema generation. It only ever increases.
	Version() int

	// DefaultData returns a fresh copy of the default value. The default
	// always satisfies the plugin's own schema.
	DefaultData() any

	// Decode parses raw block data, applies defaults and validates it.
	// A nil error slice means the returned value is valid.
	Decode(raw json.RawMessage) (any, []FieldError)

	// Migrate upgrades data persisted under an older version. ok is false
	// when the plugin has no migrator.
	Migrate(raw json.RawMessage) (migrated json.RawMessage, ok bool, err error)

	// Render produces the presentation markup for a decoded value.
	Render(data any) (template.HTML, error)

	// Inspector produces the editing form for a decoded value. ok is false
	// when the plugin has no editing surface.
	Inspector(data any) (form template.HTML, ok bool)

	// ParseForm turns a submitted Inspector form into the next value.
	ParseForm(form url.Values) (any, []FieldError)

	// Encode serializes a decoded value back to block data.
	Encode(data any) (json.RawMessage, error)
}

// FieldError is a single schema violation inside block data.
// Path uses JSON field names, e.g. "items[0].title"; an empty path refers
// to the data value itself.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}
