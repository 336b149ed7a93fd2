package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/internal/editor"
	"github.com/livetemplate/lessonkit/internal/render"
	"github.com/livetemplate/lessonkit/plugin"
)

// Editor actions, used as the last path segment of /editor/{id}/{action}
// and /api/editor/{id}/{action}.
const (
	actionSelect        = "select"
	actionFocusSection  = "focus-section"
	actionInsertBlock   = "insert-block"
	actionMoveBlock     = "move-block"
	actionDeleteBlock   = "delete-block"
	actionInsertSection = "insert-section"
	actionMoveSection   = "move-section"
	actionDeleteSection = "delete-section"
	actionUpdateBlock   = "update-block"
	actionUpdateSection = "update-section"
	actionImport        = "import"
	actionReload        = "reload"
	actionExport        = "export"
)

var editorActions = map[string]bool{
	actionSelect:        true,
	actionFocusSection:  true,
	actionInsertBlock:   true,
	actionMoveBlock:     true,
	actionDeleteBlock:   true,
	actionInsertSection: true,
	actionMoveSection:   true,
	actionDeleteSection: true,
	actionUpdateBlock:   true,
	actionUpdateSection: true,
	actionImport:        true,
	actionReload:        true,
	actionExport:        true,
}

// errBadCommand marks client mistakes in an editor command.
var errBadCommand = errors.New("bad editor command")

// splitAction separates "{id}/{action}" where the id may itself contain
// slashes. A trailing segment that is not a known action is part of the id.
func splitAction(path string) (lessonID, action string) {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i > 0 {
		if a := path[i+1:]; editorActions[a] {
			return path[:i], a
		}
	}
	return path, ""
}

// editorCommand carries the arguments of every editor action. The HTML
// forms and the JSON API both decode into it.
type editorCommand struct {
	// select
	Section *int   `json:"section,omitempty"`
	Block   *int   `json:"block,omitempty"`
	ID      string `json:"id,omitempty"`
	Clear   bool   `json:"clear,omitempty"`

	// insert-block
	Type string `json:"type,omitempty"`

	// move-block, move-section
	Direction string `json:"direction,omitempty"`

	// focus-section, move-section, delete-section, update-section
	Index *int `json:"index,omitempty"`

	// update-section
	Title      *string               `json:"title,omitempty"`
	Layout     *lessonkit.Layout     `json:"layout,omitempty"`
	Visibility *lessonkit.Visibility `json:"visibility,omitempty"`

	// update-block: Data replaces the block data as is. Version, when set,
	// stamps the block with a new schema version.
	Data    json.RawMessage `json:"data,omitempty"`
	Version int             `json:"version,omitempty"`

	// import
	Document json.RawMessage `json:"document,omitempty"`
}

func badCommand(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadCommand, fmt.Sprintf(format, args...))
}

func requireIndex(cmd editorCommand) (int, error) {
	if cmd.Index == nil {
		return 0, badCommand("index is required")
	}
	return *cmd.Index, nil
}

// apply runs one editor action.
func (s *Server) apply(ctx context.Context, ed *editor.Editor, action string, cmd editorCommand) error {
	switch action {
	case actionSelect:
		switch {
		case cmd.Clear:
			ed.ClearSelection()
		case cmd.ID != "":
			if _, _, ok := lessonkit.FindBlock(ed.Snapshot().Sections, cmd.ID); !ok {
				return fmt.Errorf("%w: block %q", editor.ErrOutOfRange, cmd.ID)
			}
			ed.SelectByID(cmd.ID)
		case cmd.Section != nil && cmd.Block != nil:
			return ed.Select(editor.Ref{Section: *cmd.Section, Block: *cmd.Block})
		default:
			return badCommand("select needs id, section and block, or clear")
		}
		return nil

	case actionFocusSection:
		i, err := requireIndex(cmd)
		if err != nil {
			return err
		}
		return ed.FocusSection(i)

	case actionInsertBlock:
		if cmd.Type == "" {
			return badCommand("type is required")
		}
		_, ok, err := ed.InsertBlock(cmd.Type)
		if err != nil {
			return err
		}
		if !ok {
			return badCommand("add a section before adding blocks")
		}
		return nil

	case actionMoveBlock:
		dir, err := editor.ParseDirection(cmd.Direction)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadCommand, err)
		}
		if _, ok := ed.SelectedBlock(); !ok {
			return editor.ErrNoSelection
		}
		ed.MoveBlock(dir)
		return nil

	case actionDeleteBlock:
		if !ed.DeleteBlock() {
			return editor.ErrNoSelection
		}
		return nil

	case actionInsertSection:
		ed.InsertSection()
		return nil

	case actionMoveSection:
		i, err := requireIndex(cmd)
		if err != nil {
			return err
		}
		dir, err := editor.ParseDirection(cmd.Direction)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadCommand, err)
		}
		if i < 0 || i >= len(ed.Snapshot().Sections) {
			return fmt.Errorf("%w: section %d", editor.ErrOutOfRange, i)
		}
		ed.MoveSection(i, dir)
		return nil

	case actionDeleteSection:
		i, err := requireIndex(cmd)
		if err != nil {
			return err
		}
		if !ed.DeleteSection(i) {
			return fmt.Errorf("%w: section %d", editor.ErrOutOfRange, i)
		}
		return nil

	case actionUpdateBlock:
		if len(cmd.Data) == 0 {
			return badCommand("data is required")
		}
		if cmd.Section != nil && cmd.Block != nil {
			ref := editor.Ref{Section: *cmd.Section, Block: *cmd.Block}
			if cmd.Version > 0 {
				return ed.UpgradeBlockData(ref, cmd.Version, cmd.Data)
			}
			return ed.UpdateBlockDataAt(ref, cmd.Data)
		}
		if cmd.Version > 0 {
			ref := ed.Snapshot().Selected
			if ref == nil {
				return editor.ErrNoSelection
			}
			return ed.UpgradeBlockData(*ref, cmd.Version, cmd.Data)
		}
		return ed.UpdateBlockData(cmd.Data)

	case actionUpdateSection:
		i, err := requireIndex(cmd)
		if err != nil {
			return err
		}
		_, err = ed.UpdateSectionMeta(i, editor.SectionPatch{
			Title:      cmd.Title,
			Layout:     cmd.Layout,
			Visibility: cmd.Visibility,
		})
		if err != nil && !errors.Is(err, editor.ErrOutOfRange) {
			return fmt.Errorf("%w: %v", errBadCommand, err)
		}
		return err

	case actionImport:
		if len(cmd.Document) == 0 {
			return badCommand("document is required")
		}
		res, err := ed.Import(bytes.NewReader(cmd.Document))
		if err != nil {
			return &importError{err: err, issues: res.Issues}
		}
		return nil

	case actionReload:
		return s.loadSession(ctx, ed)
	}
	return badCommand("unknown action %q", action)
}

// importError keeps the validation issues of a rejected import.
type importError struct {
	err    error
	issues []lessonkit.Issue
}

func (e *importError) Error() string {
	if len(e.issues) == 0 {
		return "import failed: " + e.err.Error()
	}
	msgs := make([]string, 0, len(e.issues))
	for _, i := range e.issues {
		msgs = append(msgs, i.String())
	}
	return "import failed: " + strings.Join(msgs, "; ")
}

func (e *importError) Unwrap() error { return e.err }

// commandStatus maps an apply error to an HTTP status.
func commandStatus(err error) int {
	var imp *importError
	switch {
	case errors.As(err, &imp):
		if errors.Is(err, editor.ErrInvalidDocument) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case errors.Is(err, errBadCommand),
		errors.Is(err, editor.ErrUnknownType),
		errors.Is(err, editor.ErrOutOfRange),
		errors.Is(err, editor.ErrNoSelection):
		return http.StatusBadRequest
	}
	return loadStatus(err)
}

// formCommand reads an editor command from a submitted HTML form.
func (s *Server) formCommand(ed *editor.Editor, action string, r *http.Request) (editorCommand, error) {
	var cmd editorCommand
	form := r.Form

	intField := func(name string) (*int, error) {
		v := strings.TrimSpace(form.Get(name))
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, badCommand("%s must be a number", name)
		}
		return &n, nil
	}

	var err error
	switch action {
	case actionSelect:
		cmd.ID = form.Get("id")
		cmd.Clear = form.Get("clear") == "true"
		if cmd.Section, err = intField("section"); err != nil {
			return cmd, err
		}
		if cmd.Block, err = intField("block"); err != nil {
			return cmd, err
		}
	case actionInsertBlock:
		cmd.Type = form.Get("type")
	case actionMoveBlock:
		cmd.Direction = form.Get("direction")
	case actionFocusSection, actionMoveSection, actionDeleteSection:
		cmd.Direction = form.Get("direction")
		if cmd.Index, err = intField("index"); err != nil {
			return cmd, err
		}
	case actionUpdateSection:
		if cmd.Index, err = intField("index"); err != nil {
			return cmd, err
		}
		if form.Has("title") {
			title := strings.TrimSpace(form.Get("title"))
			cmd.Title = &title
		}
		if form.Has("layout") {
			layout := lessonkit.Layout(form.Get("layout"))
			cmd.Layout = &layout
		}
		if form.Has("roles") || form.Has("locale") {
			cmd.Visibility = &lessonkit.Visibility{
				Roles:  splitList(form.Get("roles")),
				Locale: splitList(form.Get("locale")),
			}
		}
	case actionUpdateBlock:
		return s.inspectorCommand(ed, form)
	case actionImport:
		cmd.Document, err = uploadedDocument(r)
		if err != nil {
			return cmd, err
		}
	}
	return cmd, nil
}

// inspectorCommand turns a submitted Inspector form into new block data for
// the selected block. Field errors do not block the update; the stored data
// is reported by Inspect like any other invalid data.
func (s *Server) inspectorCommand(ed *editor.Editor, form url.Values) (editorCommand, error) {
	var cmd editorCommand
	node, ok := ed.SelectedBlock()
	if !ok {
		return cmd, editor.ErrNoSelection
	}
	p, ok := s.registry.Lookup(node.Type)
	if !ok {
		return cmd, fmt.Errorf("%w: %s", editor.ErrUnknownType, node.Type)
	}
	v, errs := p.ParseForm(form)
	for _, fe := range errs {
		s.logger.Debug("inspector field error",
			zap.String("block", node.ID), zap.String("path", fe.Path), zap.String("message", fe.Message))
	}
	data, err := p.Encode(v)
	if err != nil {
		return cmd, fmt.Errorf("encode %s: %w", node.Type, err)
	}
	cmd.Data = data
	if node.OlderThan(p.Version()) {
		cmd.Version = p.Version()
	}
	return cmd, nil
}

func uploadedDocument(r *http.Request) (json.RawMessage, error) {
	if doc := r.FormValue("document"); strings.TrimSpace(doc) != "" {
		return json.RawMessage(doc), nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, badCommand("choose a JSON file to import")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxRequestBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// inspectorData decodes a block for editing. Older data is migrated first
// so the form shows the current schema; invalid values are kept rather
// than replaced by defaults.
func inspectorData(p plugin.Plugin, node lessonkit.BlockNode) any {
	data := node.Data
	if node.OlderThan(p.Version()) {
		if migrated, ok, err := p.Migrate(data); err == nil && ok {
			data = migrated
		}
	}
	v, _ := p.Decode(data)
	if v == nil {
		return p.DefaultData()
	}
	return v
}

type outlineSection struct {
	Index   int
	ID      string
	Title   string
	Layout  lessonkit.Layout
	Roles   string
	Locale  string
	Focused bool
	Blocks  []outlineBlock
}

type outlineBlock struct {
	ID       string
	Type     string
	Label    string
	Selected bool
}

type paletteItem struct {
	Type  string
	Label string
}

type editorPage struct {
	pageBase
	Base          string
	State         editor.State
	Outline       []outlineSection
	Palette       []paletteItem
	Layouts       []lessonkit.Layout
	Preview       template.HTML
	SelectedID    string
	SelectedLabel string
	Inspector     template.HTML
	Issues        []lessonkit.Issue
	Error         string
}

func editorURL(id string) string {
	return "/editor/" + id
}

func (s *Server) editorPage(ed *editor.Editor, loadErr error, flash string) editorPage {
	id := ed.LessonID()
	st := ed.Snapshot()
	page := editorPage{
		pageBase: s.base("editor", "Edit "+id, id),
		Base:     editorURL(id),
		State:    st,
		Layouts:  lessonkit.Layouts,
		Issues:   ed.Inspect(),
		Error:    flash,
	}
	if page.Error == "" && loadErr != nil {
		page.Error = loadErr.Error()
	}

	for _, p := range s.registry.Plugins() {
		page.Palette = append(page.Palette, paletteItem{Type: p.Type(), Label: p.Label()})
	}

	for si, sec := range st.Sections {
		item := outlineSection{
			Index:   si,
			ID:      sec.ID,
			Title:   sec.Title,
			Layout:  sec.Layout,
			Focused: st.Focused != nil && *st.Focused == si,
		}
		if sec.Visibility != nil {
			item.Roles = strings.Join(sec.Visibility.Roles, ", ")
			item.Locale = strings.Join(sec.Visibility.Locale, ", ")
		}
		for _, b := range sec.Blocks {
			label := b.Type
			if p, ok := s.registry.Lookup(b.Type); ok {
				label = p.Label()
			}
			item.Blocks = append(item.Blocks, outlineBlock{
				ID:       b.ID,
				Type:     b.Type,
				Label:    label,
				Selected: b.ID == st.SelectedID,
			})
		}
		page.Outline = append(page.Outline, item)
	}

	page.Preview = s.lessons.Render(st.Sections, render.Options{
		SelectedID: st.SelectedID,
		SelectURL: func(blockID string) string {
			return page.Base + "?select=" + url.QueryEscape(blockID)
		},
	})

	if node, ok := ed.SelectedBlock(); ok {
		page.SelectedID = node.ID
		page.SelectedLabel = node.Type
		if p, found := s.registry.Lookup(node.Type); found {
			page.SelectedLabel = p.Label()
			if form, ok := p.Inspector(inspectorData(p, node)); ok {
				page.Inspector = form
			}
		}
	}
	return page
}

// handleEditorPage renders the editor, or downloads the document for
// /editor/{id}/export. The select and focus query parameters let links in
// the preview and outline change the selection.
func (s *Server) handleEditorPage(w http.ResponseWriter, r *http.Request) {
	id, action := splitAction(r.PathValue("path"))
	if !validLessonID(id) {
		http.NotFound(w, r)
		return
	}
	if action != "" && action != actionExport {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ed, loadErr, err := s.session(r.Context(), id)
	if err != nil {
		http.Error(w, "Lesson is still opening", http.StatusGatewayTimeout)
		return
	}
	if action == actionExport {
		s.exportDocument(w, ed)
		return
	}

	var flash string
	if blockID := r.URL.Query().Get("select"); blockID != "" {
		if err := s.apply(r.Context(), ed, actionSelect, editorCommand{ID: blockID}); err != nil {
			flash = err.Error()
		}
	}
	if focus := r.URL.Query().Get("focus"); focus != "" {
		i, err := strconv.Atoi(focus)
		if err == nil {
			err = ed.FocusSection(i)
		}
		if err != nil {
			flash = err.Error()
		}
	}

	s.renderPage(w, http.StatusOK, "editor.html", s.editorPage(ed, loadErr, flash))
}

// handleEditorAction applies a form action and redirects back to the
// editor. Failed actions re-render the editor with the error.
func (s *Server) handleEditorAction(w http.ResponseWriter, r *http.Request) {
	id, action := splitAction(r.PathValue("path"))
	if !validLessonID(id) || action == "" || action == actionExport {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := r.ParseMultipartForm(maxRequestBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	ed, loadErr, err := s.session(r.Context(), id)
	if err != nil {
		http.Error(w, "Lesson is still opening", http.StatusGatewayTimeout)
		return
	}
	cmd, err := s.formCommand(ed, action, r)
	if err == nil {
		err = s.apply(r.Context(), ed, action, cmd)
	}
	if err != nil {
		s.logger.Info("editor action failed",
			zap.String("lesson", id), zap.String("action", action), zap.Error(err))
		if action == actionReload {
			loadErr = err
		}
		s.renderPage(w, commandStatus(err), "editor.html", s.editorPage(ed, loadErr, err.Error()))
		return
	}
	http.Redirect(w, r, editorURL(id), http.StatusSeeOther)
}

func (s *Server) exportDocument(w http.ResponseWriter, ed *editor.Editor) {
	name, data, err := ed.Export()
	if err != nil {
		s.logger.Error("export failed", zap.String("lesson", ed.LessonID()), zap.Error(err))
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}
	// Nested ids export under their last segment.
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}
