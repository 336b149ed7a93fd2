package plugin

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
)

// Definition describes a block type whose data is the struct T.
// Validation rules are expressed as `validate` struct tags on T.
type Definition[T any] struct {
	Type    string
	Label   string
	Version int
	Default T

	// Render is the presentation component.
	Render func(T) (template.HTML, error)

	// Inspector overrides the generated editing form.
	Inspector func(T) template.HTML

	// Migrate upgrades data stored under an older Version.
	Migrate func(old json.RawMessage) (T, error)

	// Defaults fills zero-valued optional fields after decoding.
	Defaults func(*T)
}

// New builds a Plugin from a typed definition.
func New[T any](d Definition[T]) Plugin {
	return &typed[T]{def: d}
}

type typed[T any] struct {
	def Definition[T]
}

func (p *typed[T]) Type() string  { return p.def.Type }
func (p *typed[T]) Label() string { return p.def.Label }
func (p *typed[T]) Version() int  { return p.def.Version }

func (p *typed[T]) DefaultData() any {
	// Round-trip through JSON so callers never share slices with the definition.
	raw, err := json.Marshal(p.def.Default)
	if err != nil {
		return p.def.Default
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return p.def.Default
	}
	p.applyDefaults(&v)
	return v
}

func (p *typed[T]) Decode(raw json.RawMessage) (any, []FieldError) {
	var v T
	decodeErrs := decodeData(raw, &v)
	p.applyDefaults(&v)
	return v, mergeErrors(decodeErrs, validateValue(v))
}

func (p *typed[T]) Migrate(raw json.RawMessage) (json.RawMessage, bool, error) {
	if p.def.Migrate == nil {
		return nil, false, nil
	}
	v, err := p.def.Migrate(raw)
	if err != nil {
		return nil, true, fmt.Errorf("migrate %s to v%d: %w", p.def.Type, p.def.Version, err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, true, fmt.Errorf("encode migrated %s: %w", p.def.Type, err)
	}
	return out, true, nil
}

func (p *typed[T]) Render(data any) (template.HTML, error) {
	v, err := p.cast(data)
	if err != nil {
		return "", err
	}
	if p.def.Render == nil {
		return "", nil
	}
	return p.def.Render(v)
}

func (p *typed[T]) Inspector(data any) (template.HTML, bool) {
	v, err := p.cast(data)
	if err != nil {
		return "", false
	}
	if p.def.Inspector != nil {
		return p.def.Inspector(v), true
	}
	return FormFor(v), true
}

func (p *typed[T]) ParseForm(form url.Values) (any, []FieldError) {
	var v T
	parseErrs := ParseFormInto(form, &v)
	p.applyDefaults(&v)
	return v, mergeErrors(parseErrs, validateValue(v))
}

func (p *typed[T]) Encode(data any) (json.RawMessage, error) {
	v, err := p.cast(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (p *typed[T]) applyDefaults(v *T) {
	if p.def.Defaults != nil {
		p.def.Defaults(v)
	}
}

func (p *typed[T]) cast(data any) (T, error) {
	switch v := data.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("plugin %q: unexpected data type %T", p.def.Type, data)
}
