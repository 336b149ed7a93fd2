package plugin

import (
	"fmt"
	"html/template"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// FormFor renders a generic editing form for a block data struct.
//
// Field names are dotted JSON paths ("image.url", "items.0.title") so that
// ParseFormInto can rebuild the value. Enum fields (validate "oneof") become
// selects, []string fields become one-item-per-line textareas, and slices of
// structs get one extra empty row for appending. Clearing every field of a
// row removes it.
func FormFor(v any) template.HTML {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return ""
	}
	var b strings.Builder
	writeFields(&b, rv, "")
	return template.HTML(b.String())
}

func writeFields(b *strings.Builder, v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if name == "" {
			continue
		}
		key := joinKey(prefix, name)
		label := fieldLabel(f, name)
		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.String:
			writeStringField(b, f, key, label, fv.String())
		case reflect.Int, reflect.Int64:
			writeInput(b, "number", key, label, strconv.FormatInt(fv.Int(), 10))
		case reflect.Float64, reflect.Float32:
			writeInput(b, "number", key, label, strconv.FormatFloat(fv.Float(), 'f', -1, 64))
		case reflect.Bool:
			checked := ""
			if fv.Bool() {
				checked = " checked"
			}
			fmt.Fprintf(b, `<label class="lk-field lk-check"><input type="checkbox" name="%s"%s> %s</label>`,
				esc(key), checked, esc(label))
		case reflect.Struct:
			fmt.Fprintf(b, `<fieldset class="lk-fieldset"><legend>%s</legend>`, esc(label))
			writeFields(b, fv, key)
			b.WriteString(`</fieldset>`)
		case reflect.Slice:
			writeSliceField(b, fv, key, label)
		}
	}
}

func writeStringField(b *strings.Builder, f reflect.StructField, key, label, value string) {
	if opts := enumOptions(f); len(opts) > 0 {
		fmt.Fprintf(b, `<label class="lk-field"><span>%s</span><select name="%s">`, esc(label), esc(key))
		for _, o := range opts {
			sel := ""
			if o == value {
				sel = " selected"
			}
			fmt.Fprintf(b, `<option value="%s"%s>%s</option>`, esc(o), sel, esc(o))
		}
		b.WriteString(`</select></label>`)
		return
	}
	if f.Tag.Get("form") == "textarea" {
		fmt.Fprintf(b, `<label class="lk-field"><span>%s</span><textarea name="%s" rows="6">%s</textarea></label>`,
			esc(label), esc(key), esc(value))
		return
	}
	writeInput(b, "text", key, label, value)
}

func writeInput(b *strings.Builder, typ, key, label, value string) {
	step := ""
	if typ == "number" {
		step = ` step="any"`
	}
	fmt.Fprintf(b, `<label class="lk-field"><span>%s</span><input type="%s" name="%s" value="%s"%s></label>`,
		esc(label), typ, esc(key), esc(value), step)
}

func writeSliceField(b *strings.Builder, fv reflect.Value, key, label string) {
	elem := fv.Type().Elem()
	switch elem.Kind() {
	case reflect.String:
		lines := make([]string, fv.Len())
		for j := range lines {
			lines[j] = fv.Index(j).String()
		}
		fmt.Fprintf(b, `<label class="lk-field"><span>%s <small>(one per line)</small></span><textarea name="%s" rows="4">%s</textarea></label>`,
			esc(label), esc(key), esc(strings.Join(lines, "\n")))
	case reflect.Struct:
		fmt.Fprintf(b, `<fieldset class="lk-fieldset lk-list"><legend>%s</legend>`, esc(label))
		for j := 0; j < fv.Len(); j++ {
			fmt.Fprintf(b, `<fieldset class="lk-item"><legend>#%d</legend>`, j+1)
			writeFields(b, fv.Index(j), joinKey(key, strconv.Itoa(j)))
			b.WriteString(`</fieldset>`)
		}
		b.WriteString(`<fieldset class="lk-item lk-new"><legend>+</legend>`)
		writeFields(b, reflect.New(elem).Elem(), joinKey(key, strconv.Itoa(fv.Len())))
		b.WriteString(`</fieldset></fieldset>`)
	}
}

// ParseFormInto fills dst (a pointer to struct) from a form produced by FormFor.
func ParseFormInto(form url.Values, dst any) []FieldError {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return []FieldError{{Message: fmt.Sprintf("cannot parse form into %T", dst)}}
	}
	var errs []FieldError
	parseFields(form, rv.Elem(), "", &errs)
	return errs
}

func parseFields(form url.Values, v reflect.Value, prefix string, errs *[]FieldError) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if name == "" {
			continue
		}
		key := joinKey(prefix, name)
		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.String:
			fv.SetString(normalizeNewlines(form.Get(key)))
		case reflect.Int, reflect.Int64:
			if s := strings.TrimSpace(form.Get(key)); s != "" {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					*errs = append(*errs, FieldError{Path: key, Message: "Expected number"})
					continue
				}
				fv.SetInt(n)
			}
		case reflect.Float64, reflect.Float32:
			if s := strings.TrimSpace(form.Get(key)); s != "" {
				n, err := strconv.ParseFloat(s, 64)
				if err != nil {
					*errs = append(*errs, FieldError{Path: key, Message: "Expected number"})
					continue
				}
				fv.SetFloat(n)
			}
		case reflect.Bool:
			fv.SetBool(form.Has(key))
		case reflect.Struct:
			parseFields(form, fv, key, errs)
		case reflect.Slice:
			parseSlice(form, fv, key, errs)
		}
	}
}

func parseSlice(form url.Values, fv reflect.Value, key string, errs *[]FieldError) {
	elem := fv.Type().Elem()
	switch elem.Kind() {
	case reflect.String:
		out := reflect.MakeSlice(fv.Type(), 0, 4)
		for _, line := range strings.Split(normalizeNewlines(form.Get(key)), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = reflect.Append(out, reflect.ValueOf(line).Convert(elem))
			}
		}
		fv.Set(out)
	case reflect.Struct:
		out := reflect.MakeSlice(fv.Type(), 0, 4)
		for j := 0; ; j++ {
			itemKey := joinKey(key, strconv.Itoa(j))
			if !hasPrefix(form, itemKey+".") {
				break
			}
			if blankPrefix(form, itemKey+".") {
				continue
			}
			item := reflect.New(elem).Elem()
			parseFields(form, item, itemKey, errs)
			out = reflect.Append(out, item)
		}
		fv.Set(out)
	}
}

func hasPrefix(form url.Values, prefix string) bool {
	for k := range form {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func blankPrefix(form url.Values, prefix string) bool {
	for k, vals := range form {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		for _, v := range vals {
			if strings.TrimSpace(v) != "" {
				return false
			}
		}
	}
	return true
}

// enumOptions extracts the allowed values of a "oneof" validate tag.
func enumOptions(f reflect.StructField) []string {
	for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
		if opts, ok := strings.CutPrefix(rule, "oneof="); ok {
			return strings.Fields(opts)
		}
	}
	return nil
}

func fieldLabel(f reflect.StructField, name string) string {
	if l := f.Tag.Get("label"); l != "" {
		return l
	}
	// camelCase -> "Camel case"
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}
