package lessonkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/livetemplate/lessonkit/plugin"
)

// Level is the severity of a validation issue.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
)

// Issue is one validation finding, attributed to a path inside the
// document such as "sections[0].blocks[2].data.title".
type Issue struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return fmt.Sprintf("%s: %s", strings.ToUpper(string(i.Level)), i.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", strings.ToUpper(string(i.Level)), i.Message, i.Path)
}

// ValidationResult is the outcome of validating a lesson document.
// Document is nil only when the document shape itself is invalid; block
// level problems still return the decoded document.
type ValidationResult struct {
	Success  bool            `json:"success"`
	Document *LessonDocument `json:"data,omitempty"`
	Issues   []Issue         `json:"issues"`
}

// SectionsResult is the outcome of ValidateSections.
type SectionsResult struct {
	Success  bool      `json:"success"`
	Sections []Section `json:"sections,omitempty"`
	Issues   []Issue   `json:"issues"`
}

// Errors returns only the error level issues.
func (r ValidationResult) Errors() []Issue {
	return filterLevel(r.Issues, LevelError)
}

// Warnings returns only the warning level issues.
func (r ValidationResult) Warnings() []Issue {
	return filterLevel(r.Issues, LevelWarn)
}

func filterLevel(issues []Issue, level Level) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Level == level {
			out = append(out, i)
		}
	}
	return out
}

// ParseLessonDocument decodes JSON and validates it. The error is non-nil
// only when data is not JSON at all.
func ParseLessonDocument(reg *plugin.Registry, data []byte) (ValidationResult, error) {
	if _, err := decodeGeneric(data); err != nil {
		return ValidationResult{}, fmt.Errorf("failed to parse lesson JSON: %w", err)
	}
	return ValidateLessonDocument(reg, data), nil
}

// ValidateLessonDocument validates input against the document shape and
// every block against its plugin. Input may be raw JSON ([]byte or
// json.RawMessage), a LessonDocument, or a generic decoded JSON value.
//
// Shape violations stop validation. Otherwise every block is checked: an
// unknown type or a schema violation is reported with its path and
// validation continues with the next block.
func ValidateLessonDocument(reg *plugin.Registry, input any) ValidationResult {
	raw, generic, err := normalize(input)
	if err != nil {
		return ValidationResult{Issues: []Issue{{Level: LevelError, Message: err.Error(), Path: "root"}}}
	}

	c := &shapeChecker{}
	c.document(generic)
	if len(c.issues) > 0 {
		return ValidationResult{Issues: c.issues}
	}

	var doc LessonDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ValidationResult{Issues: []Issue{{Level: LevelError, Message: err.Error(), Path: "root"}}}
	}

	issues := validateBlocks(reg, doc.Sections)
	return ValidationResult{
		Success:  !hasErrors(issues),
		Document: &doc,
		Issues:   issues,
	}
}

// ValidateSections validates a bare sections array by wrapping it in a
// temporary document. Issue paths are the same as for a full document.
func ValidateSections(reg *plugin.Registry, input any) SectionsResult {
	_, generic, err := normalize(input)
	if err != nil {
		return SectionsResult{Issues: []Issue{{Level: LevelError, Message: err.Error(), Path: "sections"}}}
	}

	c := &shapeChecker{}
	c.sections(generic, "sections")
	if len(c.issues) > 0 {
		return SectionsResult{Issues: c.issues}
	}

	res := ValidateLessonDocument(reg, map[string]any{
		"id":       "temp",
		"title":    "temp",
		"sections": generic,
	})
	out := SectionsResult{Success: res.Success, Issues: res.Issues}
	if res.Document != nil {
		out.Sections = res.Document.Sections
	}
	return out
}

func validateBlocks(reg *plugin.Registry, sections []Section) []Issue {
	var issues []Issue
	sectionIDs := make(map[string]int)
	blockIDs := make(map[string]string)

	for si, section := range sections {
		if prev, dup := sectionIDs[section.ID]; dup {
			issues = append(issues, Issue{
				Level:   LevelWarn,
				Message: fmt.Sprintf("Duplicate section id %q (first used by sections[%d])", section.ID, prev),
				Path:    fmt.Sprintf("sections[%d].id", si),
			})
		} else {
			sectionIDs[section.ID] = si
		}

		for bi, node := range section.Blocks {
			prefix := fmt.Sprintf("sections[%d].blocks[%d]", si, bi)

			if prev, dup := blockIDs[node.ID]; dup {
				issues = append(issues, Issue{
					Level:   LevelWarn,
					Message: fmt.Sprintf("Duplicate block id %q (first used by %s)", node.ID, prev),
					Path:    prefix + ".id",
				})
			} else {
				blockIDs[node.ID] = prefix
			}

			p, ok := reg.Lookup(node.Type)
			if !ok {
				issues = append(issues, Issue{
					Level:   LevelError,
					Message: "Unknown block type: " + node.Type,
					Path:    prefix + ".type",
				})
				continue
			}

			if node.NewerThan(p.Version()) {
				issues = append(issues, Issue{
					Level:   LevelWarn,
					Message: fmt.Sprintf("Block version %g is newer than %s plugin version %d", node.Version, p.Type(), p.Version()),
					Path:    prefix + ".version",
				})
			}

			res := plugin.Effective(p, node.Version, node.Data)
			if res.MigrateErr != nil {
				issues = append(issues, Issue{Level: LevelError, Message: res.MigrateErr.Error(), Path: prefix + ".data"})
				continue
			}
			for _, fe := range res.Errors {
				path := prefix + ".data"
				if fe.Path != "" {
					path += "." + fe.Path
				}
				issues = append(issues, Issue{Level: LevelError, Message: fe.Message, Path: path})
			}
		}
	}
	return issues
}

func hasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

// normalize returns the JSON encoding of input together with its generic
// decoded form, so shape checks and typed decoding see the same data.
func normalize(input any) ([]byte, any, error) {
	var raw []byte
	switch v := input.(type) {
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(input)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot encode input: %w", err)
		}
		raw = b
	}
	generic, err := decodeGeneric(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw, generic, nil
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}
