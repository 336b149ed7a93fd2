package lessonkit

import (
	"fmt"
	"strings"
)

// DocumentError reports the validation issues found in one lesson file.
type DocumentError struct {
	File    string  // Source file path or URL
	Issues  []Issue // Issues found, errors and warnings
	Hint    string  // Helpful suggestion
	Related string  // Related information (e.g., "Registered types: banner, rich-text")
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return e.Format()
}

// Format returns the issues grouped under a file header.
func (e *DocumentError) Format() string {
	var b strings.Builder

	errs := filterLevel(e.Issues, LevelError)
	warns := filterLevel(e.Issues, LevelWarn)

	if len(errs) > 0 {
		b.WriteString(fmt.Sprintf("❌ %d error(s) in %s\n\n", len(errs), e.File))
	} else {
		b.WriteString(fmt.Sprintf("⚠️  %d warning(s) in %s\n\n", len(warns), e.File))
	}

	for _, i := range errs {
		b.WriteString(fmt.Sprintf("  %s: %s\n", pathOrRoot(i.Path), i.Message))
	}
	for _, i := range warns {
		b.WriteString(fmt.Sprintf("  %s: %s (warning)\n", pathOrRoot(i.Path), i.Message))
	}

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}
	if e.Related != "" {
		b.WriteString(fmt.Sprintf("\n🔗 %s\n", e.Related))
	}
	return b.String()
}

// HasErrors reports whether any issue is an error.
func (e *DocumentError) HasErrors() bool {
	return hasErrors(e.Issues)
}

// NewDocumentError creates a DocumentError for file.
func NewDocumentError(file string, issues []Issue) *DocumentError {
	return &DocumentError{File: file, Issues: issues}
}

// WithHint adds a helpful hint to the error.
func (e *DocumentError) WithHint(hint string) *DocumentError {
	e.Hint = hint
	return e
}

// WithRelated adds related information to the error.
func (e *DocumentError) WithRelated(related string) *DocumentError {
	e.Related = related
	return e
}

func pathOrRoot(p string) string {
	if p == "" {
		return "root"
	}
	return p
}
