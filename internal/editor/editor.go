// Package editor implements structural editing of a lesson document:
// inserting, moving and deleting sections and blocks, updating block data
// and section metadata, and JSON import/export.
//
// Every mutation is copy-on-write. Sections that a mutation does not touch
// keep sharing their backing arrays with earlier snapshots, so a Snapshot
// stays valid after later edits.
package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/plugin"
)

var (
	// ErrUnknownType is returned when inserting a block type with no plugin.
	ErrUnknownType = errors.New("unknown block type")

	// ErrNoSelection is returned by operations that need a selected block.
	ErrNoSelection = errors.New("no block selected")

	// ErrOutOfRange is returned for section or block indexes that do not exist.
	ErrOutOfRange = errors.New("index out of range")

	// ErrInvalidDocument is returned when a loaded or imported document
	// fails the shape checks and cannot be recovered.
	ErrInvalidDocument = errors.New("invalid lesson document")
)

// Ref points at a block by position.
type Ref struct {
	Section int `json:"section"`
	Block   int `json:"block"`
}

// IDFunc generates a new id with the given prefix and random suffix length.
type IDFunc func(prefix string, n int) string

// DefaultIDFunc returns ids like "banner-3f9a1c".
func DefaultIDFunc(prefix string, n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return prefix + "-" + s[:n]
}

// Fetcher retrieves the raw JSON of a lesson.
type Fetcher interface {
	Fetch(ctx context.Context, lessonID string) (source string, body []byte, err error)
}

// State is an immutable view of the editor.
type State struct {
	LessonID   string              `json:"lessonId"`
	DocumentID string              `json:"documentId"`
	Title      string              `json:"title"`
	Source     string              `json:"source,omitempty"`
	Sections   []lessonkit.Section `json:"sections"`
	Selected   *Ref                `json:"selected,omitempty"`
	SelectedID string              `json:"selectedId,omitempty"`
	Focused    *int                `json:"focused,omitempty"`
	Loaded     bool                `json:"loaded"`
	Revision   int                 `json:"revision"`
}

// Editor holds one lesson document being edited. It is safe for
// concurrent use.
type Editor struct {
	registry   *plugin.Registry
	logger     *zap.Logger
	newID      IDFunc
	onChange   func(lessonID string)
	lessonID   string
	fallbackID string

	mu       sync.Mutex
	docID    string
	title    string
	source   string
	loaded   bool
	sections []lessonkit.Section
	selected *Ref
	focused  *int
	revision int
}

// Option configures an Editor.
type Option func(*Editor)

// WithIDFunc replaces the id generator.
func WithIDFunc(f IDFunc) Option {
	return func(e *Editor) { e.newID = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithFallbackID sets the id used by Export when neither the document nor
// the lesson has one.
func WithFallbackID(id string) Option {
	return func(e *Editor) { e.fallbackID = id }
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(f func(lessonID string)) Option {
	return func(e *Editor) { e.onChange = f }
}

// New creates an empty editor for lessonID.
func New(reg *plugin.Registry, lessonID string, opts ...Option) *Editor {
	e := &Editor{
		registry: reg,
		logger:   zap.NewNop(),
		newID:    DefaultIDFunc,
		lessonID: lessonID,
		sections: []lessonkit.Section{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("lesson", lessonID))
	return e
}

// LessonID returns the lesson this editor was created for.
func (e *Editor) LessonID() string {
	return e.lessonID
}

// Snapshot returns the current state.
func (e *Editor) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Editor) snapshotLocked() State {
	st := State{
		LessonID:   e.lessonID,
		DocumentID: e.docID,
		Title:      e.title,
		Source:     e.source,
		Sections:   append([]lessonkit.Section(nil), e.sections...),
		Loaded:     e.loaded,
		Revision:   e.revision,
	}
	if e.selected != nil {
		ref := *e.selected
		st.Selected = &ref
		st.SelectedID = e.sections[ref.Section].Blocks[ref.Block].ID
	}
	if e.focused != nil {
		f := *e.focused
		st.Focused = &f
	}
	return st
}

// Document returns the current document.
func (e *Editor) Document() lessonkit.LessonDocument {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lessonkit.LessonDocument{
		ID:       e.docID,
		Title:    e.title,
		Sections: append([]lessonkit.Section(nil), e.sections...),
	}
}

// Inspect validates the current sections. Mutations never validate, so
// this is the only place in-editor problems are reported.
func (e *Editor) Inspect() []lessonkit.Issue {
	doc := e.Document()
	if doc.Sections == nil {
		doc.Sections = []lessonkit.Section{}
	}
	return lessonkit.ValidateSections(e.registry, doc.Sections).Issues
}

// changed notifies the change callback. It must be called with the lock
// released.
func (e *Editor) changed() {
	if e.onChange != nil {
		e.onChange(e.lessonID)
	}
}

// mutate runs f under the lock and, when f reports a change, bumps the
// revision and fires the change callback.
func (e *Editor) mutate(f func() bool) bool {
	e.mu.Lock()
	ok := f()
	if ok {
		e.revision++
	}
	e.mu.Unlock()
	if ok {
		e.changed()
	}
	return ok
}

// Load fetches the lesson and replaces the document. Validation issues are
// logged; a document with block level errors is still accepted, as is a
// document whose shell is invalid but whose sections array is usable.
func (e *Editor) Load(ctx context.Context, f Fetcher) (lessonkit.ValidationResult, error) {
	source, body, err := f.Fetch(ctx, e.lessonID)
	if err != nil {
		return lessonkit.ValidationResult{}, err
	}
	res, err := e.replace(body, source, true)
	if err != nil {
		return res, fmt.Errorf("load %s: %w", source, err)
	}
	return res, nil
}

// Import replaces the document with JSON read from r. Unlike Load, a
// document with an invalid shape is rejected. On any failure the current
// document is left unchanged.
func (e *Editor) Import(r io.Reader) (lessonkit.ValidationResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return lessonkit.ValidationResult{}, fmt.Errorf("read import: %w", err)
	}
	return e.replace(body, "import", false)
}

func (e *Editor) replace(body []byte, source string, lenient bool) (lessonkit.ValidationResult, error) {
	res, err := lessonkit.ParseLessonDocument(e.registry, body)
	if err != nil {
		e.logger.Error("lesson JSON could not be parsed", zap.String("source", source), zap.Error(err))
		return res, err
	}
	for _, issue := range res.Issues {
		e.logger.Warn("lesson validation issue",
			zap.String("source", source),
			zap.String("level", string(issue.Level)),
			zap.String("path", issue.Path),
			zap.String("message", issue.Message))
	}

	doc := res.Document
	if doc == nil && lenient {
		doc = recoverSections(body)
		if doc != nil {
			e.logger.Warn("accepted lesson with invalid shell", zap.String("source", source))
		}
	}
	if doc == nil {
		return res, ErrInvalidDocument
	}
	if doc.Sections == nil {
		doc.Sections = []lessonkit.Section{}
	}

	e.mutate(func() bool {
		e.docID = doc.ID
		e.title = doc.Title
		e.sections = doc.Sections
		e.source = source
		e.loaded = true
		e.selected = nil
		e.focused = nil
		return true
	})
	return res, nil
}

// recoverSections accepts a document whose id or title is unusable as long
// as its sections array decodes.
func recoverSections(body []byte) *lessonkit.LessonDocument {
	var maybe struct {
		ID       any             `json:"id"`
		Title    any             `json:"title"`
		Sections json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(body, &maybe); err != nil {
		return nil
	}
	trimmed := bytes.TrimSpace(maybe.Sections)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var sections []lessonkit.Section
	if err := json.Unmarshal(trimmed, &sections); err != nil {
		return nil
	}
	doc := &lessonkit.LessonDocument{ID: "unknown", Sections: sections}
	if id, ok := maybe.ID.(string); ok && id != "" {
		doc.ID = id
	}
	if title, ok := maybe.Title.(string); ok {
		doc.Title = title
	}
	return doc
}

// Export returns the download file name and pretty-printed JSON.
// The file is named after the lesson id; the document id falls back to the
// lesson id, then the fallback id, then "lesson".
func (e *Editor) Export() (filename string, data []byte, err error) {
	e.mu.Lock()
	doc := lessonkit.LessonDocument{
		ID:       firstNonEmpty(e.docID, e.lessonID, e.fallbackID, "lesson"),
		Title:    e.title,
		Sections: append([]lessonkit.Section{}, e.sections...),
	}
	name := firstNonEmpty(e.lessonID, e.docID, e.fallbackID, "lesson")
	e.mu.Unlock()

	data, err = json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode lesson: %w", err)
	}
	return name + ".json", data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
