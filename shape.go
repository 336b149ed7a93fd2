package lessonkit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// shapeChecker walks a generic JSON value and records one issue per field
// that does not match the document shape. Block data is not inspected.
type shapeChecker struct {
	issues []Issue
}

func (c *shapeChecker) fail(path, format string, args ...any) {
	c.issues = append(c.issues, Issue{Level: LevelError, Message: fmt.Sprintf(format, args...), Path: path})
}

func (c *shapeChecker) document(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		c.fail("root", "Expected object, received %s", typeName(v))
		return
	}
	c.requiredString(m, "id", "id")
	c.requiredString(m, "title", "title")

	sections, present := m["sections"]
	if !present {
		c.fail("sections", "Required")
		return
	}
	c.sections(sections, "sections")
}

func (c *shapeChecker) sections(v any, path string) {
	list, ok := v.([]any)
	if !ok {
		c.fail(path, "Expected array, received %s", typeName(v))
		return
	}
	for i, item := range list {
		c.section(item, fmt.Sprintf("%s[%d]", path, i))
	}
}

func (c *shapeChecker) section(v any, path string) {
	m, ok := v.(map[string]any)
	if !ok {
		c.fail(path, "Expected object, received %s", typeName(v))
		return
	}
	c.requiredString(m, "id", path+".id")
	c.optionalString(m, "title", path+".title")

	if raw, present := m["layout"]; present {
		s, ok := raw.(string)
		if !ok {
			c.fail(path+".layout", "Expected string, received %s", typeName(raw))
		} else if !Layout(s).Valid() || s == "" {
			c.fail(path+".layout", "Invalid enum value. Expected %s, received '%s'", layoutChoices(), s)
		}
	}
	c.visibility(m, path+".visibility")

	blocks, present := m["blocks"]
	if !present {
		c.fail(path+".blocks", "Required")
		return
	}
	list, ok := blocks.([]any)
	if !ok {
		c.fail(path+".blocks", "Expected array, received %s", typeName(blocks))
		return
	}
	for i, item := range list {
		c.block(item, fmt.Sprintf("%s.blocks[%d]", path, i))
	}
}

func (c *shapeChecker) block(v any, path string) {
	m, ok := v.(map[string]any)
	if !ok {
		c.fail(path, "Expected object, received %s", typeName(v))
		return
	}
	c.requiredString(m, "id", path+".id")
	c.requiredString(m, "type", path+".type")

	if raw, present := m["version"]; present && raw != nil {
		switch n := raw.(type) {
		case float64:
		case json.Number:
			if _, err := n.Float64(); err != nil {
				c.fail(path+".version", "Expected number, received %s", n.String())
			}
		default:
			c.fail(path+".version", "Expected number, received %s", typeName(raw))
		}
	}
	c.visibility(m, path+".visibility")
}

func (c *shapeChecker) visibility(m map[string]any, path string) {
	raw, present := m["visibility"]
	if !present || raw == nil {
		return
	}
	vis, ok := raw.(map[string]any)
	if !ok {
		c.fail(path, "Expected object, received %s", typeName(raw))
		return
	}
	for _, key := range []string{"roles", "locale"} {
		val, present := vis[key]
		if !present {
			continue
		}
		list, ok := val.([]any)
		if !ok {
			c.fail(path+"."+key, "Expected array, received %s", typeName(val))
			continue
		}
		for i, item := range list {
			if _, ok := item.(string); !ok {
				c.fail(fmt.Sprintf("%s.%s[%d]", path, key, i), "Expected string, received %s", typeName(item))
			}
		}
	}
}

func (c *shapeChecker) requiredString(m map[string]any, key, path string) {
	raw, present := m[key]
	if !present {
		c.fail(path, "Required")
		return
	}
	if _, ok := raw.(string); !ok {
		c.fail(path, "Expected string, received %s", typeName(raw))
	}
}

func (c *shapeChecker) optionalString(m map[string]any, key, path string) {
	raw, present := m[key]
	if !present || raw == nil {
		return
	}
	if _, ok := raw.(string); !ok {
		c.fail(path, "Expected string, received %s", typeName(raw))
	}
}

func typeName(v any) string {
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

func layoutChoices() string {
	quoted := make([]string, len(Layouts))
	for i, l := range Layouts {
		quoted[i] = "'" + string(l) + "'"
	}
	return strings.Join(quoted, " | ")
}
