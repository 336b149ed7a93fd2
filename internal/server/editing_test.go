package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/livetemplate/lessonkit/internal/editor"
)

func TestSplitAction(t *testing.T) {
	tests := []struct {
		path       string
		wantID     string
		wantAction string
	}{
		{"lesson-001", "lesson-001", ""},
		{"lesson-001/", "lesson-001", ""},
		{"lesson-001/insert-block", "lesson-001", "insert-block"},
		{"unit-1/lesson-002", "unit-1/lesson-002", ""},
		{"unit-1/lesson-002/export", "unit-1/lesson-002", "export"},
		{"lesson-001/frobnicate", "lesson-001/frobnicate", ""},
		{"select", "select", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			id, action := splitAction(tt.path)
			if id != tt.wantID || action != tt.wantAction {
				t.Errorf("splitAction(%q) = (%q, %q), want (%q, %q)", tt.path, id, action, tt.wantID, tt.wantAction)
			}
		})
	}
}

// editorAPI posts JSON commands to one lesson's editor endpoint.
type editorAPI struct {
	t    *testing.T
	base string
}

func (a editorAPI) do(action, body string) (int, editorResponse) {
	a.t.Helper()
	resp, raw := postJSON(a.t, a.base+"/"+action, body)
	var out editorResponse
	decodeJSON(a.t, raw, &out)
	return resp.StatusCode, out
}

func (a editorAPI) ok(action, body string) editor.State {
	a.t.Helper()
	status, out := a.do(action, body)
	if status != http.StatusOK {
		a.t.Fatalf("%s: status = %d, error = %q", action, status, out.Error)
	}
	return out.State
}

func TestEditorAPI(t *testing.T) {
	_, ts := newTestServer(t)
	api := editorAPI{t: t, base: ts.URL + "/api/editor/lesson-001"}

	resp, body := get(t, api.base)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
	var initial editorResponse
	decodeJSON(t, body, &initial)
	if !initial.State.Loaded || initial.State.Source != "/content/lesson-001.json" {
		t.Fatalf("initial state = %+v", initial.State)
	}
	if len(initial.State.Sections) != 1 || len(initial.State.Sections[0].Blocks) != 2 {
		t.Fatalf("initial sections = %+v", initial.State.Sections)
	}
	if initial.Error != "" || len(initial.Issues) != 0 {
		t.Errorf("initial error = %q, issues = %v", initial.Error, initial.Issues)
	}

	st := api.ok("select", `{"id":"banner-1"}`)
	if st.SelectedID != "banner-1" {
		t.Errorf("selectedId = %q, want banner-1", st.SelectedID)
	}

	status, out := api.do("insert-block", `{"type":"hologram"}`)
	if status != http.StatusBadRequest || !strings.Contains(out.Error, "unknown block type") {
		t.Errorf("unknown type: status = %d, error = %q", status, out.Error)
	}

	st = api.ok("insert-block", `{"type":"rich-text"}`)
	blocks := st.Sections[0].Blocks
	if len(blocks) != 3 || blocks[1].Type != "rich-text" || !strings.HasPrefix(st.SelectedID, "rich-text-") {
		t.Fatalf("after insert: blocks = %+v, selected = %q", blocks, st.SelectedID)
	}
	inserted := st.SelectedID

	st = api.ok("move-block", `{"direction":"down"}`)
	if st.Selected == nil || st.Selected.Block != 2 || st.Sections[0].Blocks[2].ID != inserted {
		t.Errorf("after move: selected = %+v", st.Selected)
	}

	st = api.ok("update-block", `{"data":{"content":"Edited","align":"center","maxWidth":"md"}}`)
	var data map[string]string
	if err := json.Unmarshal(st.Sections[0].Blocks[2].Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["content"] != "Edited" {
		t.Errorf("block data = %v", data)
	}

	st = api.ok("delete-block", "")
	if len(st.Sections[0].Blocks) != 2 || st.Selected != nil {
		t.Errorf("after delete: %d blocks, selected = %+v", len(st.Sections[0].Blocks), st.Selected)
	}
	if status, _ := api.do("delete-block", ""); status != http.StatusBadRequest {
		t.Errorf("delete without selection: status = %d, want 400", status)
	}

	st = api.ok("insert-section", "")
	if len(st.Sections) != 2 || st.Focused == nil || *st.Focused != 1 {
		t.Fatalf("after insert-section: %d sections, focused = %v", len(st.Sections), st.Focused)
	}
	st = api.ok("update-section", `{"index":1,"title":"Wrap up","layout":"two-col"}`)
	if st.Sections[1].Title != "Wrap up" || st.Sections[1].Layout != "two-col" {
		t.Errorf("updated section = %+v", st.Sections[1])
	}
	if status, _ := api.do("update-section", `{"index":1,"layout":"diagonal"}`); status != http.StatusBadRequest {
		t.Errorf("bad layout: status = %d, want 400", status)
	}
	if status, _ := api.do("update-section", `{"index":7,"title":"x"}`); status != http.StatusBadRequest {
		t.Errorf("bad index: status = %d, want 400", status)
	}

	st = api.ok("move-section", `{"index":1,"direction":"up"}`)
	if st.Sections[0].Title != "Wrap up" {
		t.Errorf("after move-section: first section = %+v", st.Sections[0])
	}
	st = api.ok("delete-section", `{"index":0}`)
	if len(st.Sections) != 1 || st.Sections[0].ID != "intro" {
		t.Errorf("after delete-section: %+v", st.Sections)
	}

	status, out = api.do("import", `{"id":"x","title":3,"sections":[]}`)
	if status != http.StatusUnprocessableEntity || len(out.Issues) == 0 {
		t.Errorf("invalid import: status = %d, issues = %v", status, out.Issues)
	}
	if len(out.State.Sections) != 1 {
		t.Errorf("state changed by a rejected import: %+v", out.State.Sections)
	}
	if status, _ := api.do("import", "{nope"); status != http.StatusBadRequest {
		t.Errorf("non-JSON import: status = %d, want 400", status)
	}

	st = api.ok("import", lessonTwo)
	if st.Title != "Second Steps" || st.Source != "import" || st.LessonID != "lesson-001" {
		t.Errorf("after import: %+v", st)
	}

	resp, body = get(t, api.base+"/export")
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="lesson-001.json"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	assertContains(t, body, `"id": "lesson-002"`, `"Second lesson body"`)

	st = api.ok("reload", "")
	if st.Title != "Getting Started" || len(st.Sections[0].Blocks) != 2 {
		t.Errorf("after reload: %+v", st)
	}

	resp, _ = postJSON(t, api.base+"/frobnicate", "{}")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", resp.StatusCode)
	}
	resp, _ = postJSON(t, api.base+"/select", "[1,2")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body status = %d, want 400", resp.StatusCode)
	}
	resp, _ = get(t, api.base+"/select")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET action status = %d, want 405", resp.StatusCode)
	}
}

func TestEditorAPILoadFailure(t *testing.T) {
	_, ts := newTestServer(t, noFallback)
	api := editorAPI{t: t, base: ts.URL + "/api/editor/lesson-404"}

	_, body := get(t, api.base)
	var out editorResponse
	decodeJSON(t, body, &out)
	if out.State.Loaded || !strings.Contains(out.Error, "could not be loaded") {
		t.Errorf("state = %+v, error = %q", out.State, out.Error)
	}

	// An editor without a document still accepts sections.
	st := api.ok("insert-section", "")
	if len(st.Sections) != 1 {
		t.Errorf("sections = %+v", st.Sections)
	}
	if status, _ := api.do("reload", ""); status != http.StatusBadGateway {
		t.Errorf("reload status = %d, want 502", status)
	}
}

func TestEditorForms(t *testing.T) {
	srv, ts := newTestServer(t)
	client := noRedirect()
	base := ts.URL + "/editor/lesson-001"

	resp, body := get(t, base)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	assertContains(t, body,
		`data-page="editor"`,
		`data-select-url="/editor/lesson-001?select=text-1"`,
		`action="/editor/lesson-001/insert-section"`,
	)

	resp, _ = postForm(t, client, base+"/insert-block", url.Values{"type": {"rich-text"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("insert-block status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/editor/lesson-001" {
		t.Errorf("Location = %q", loc)
	}
	ed, err := srv.Sessions().Get("lesson-001")
	if err != nil {
		t.Fatal(err)
	}
	st := ed.Snapshot()
	if len(st.Sections[0].Blocks) != 3 || !strings.HasPrefix(st.SelectedID, "rich-text-") {
		t.Fatalf("after insert: %+v", st)
	}

	_, body = get(t, base+"?select=banner-1")
	assertContains(t, body, `class="lk-block lk-selected" data-block-id="banner-1"`, `class="lk-inspector-form"`, `name="bgImage"`)

	form := url.Values{
		"title":   {"New title"},
		"bgImage": {"https://example.com/new.jpg"},
	}
	resp, _ = postForm(t, client, base+"/update-block", form)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("update-block status = %d, want 303", resp.StatusCode)
	}
	node, ok := ed.SelectedBlock()
	if !ok || node.ID != "banner-1" {
		t.Fatalf("selected = %+v", node)
	}
	var banner map[string]string
	if err := json.Unmarshal(node.Data, &banner); err != nil {
		t.Fatal(err)
	}
	if banner["title"] != "New title" || banner["bgImage"] != "https://example.com/new.jpg" {
		t.Errorf("banner data = %v", banner)
	}

	resp, body = postForm(t, client, base+"/move-block", url.Values{"direction": {"sideways"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", resp.StatusCode)
	}
	assertContains(t, body, "sideways")

	resp, _ = postForm(t, client, base+"/select", url.Values{"clear": {"true"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("clear status = %d, want 303", resp.StatusCode)
	}
	if _, ok := ed.SelectedBlock(); ok {
		t.Error("selection not cleared")
	}

	resp, _ = postForm(t, client, base+"/update-section", url.Values{
		"index":  {"0"},
		"title":  {" Opening "},
		"layout": {"two-col"},
		"roles":  {"learner, admin"},
		"locale": {""},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("update-section status = %d, want 303", resp.StatusCode)
	}
	sec := ed.Snapshot().Sections[0]
	if sec.Title != "Opening" || sec.Layout != "two-col" || sec.Visibility == nil || len(sec.Visibility.Roles) != 2 {
		t.Errorf("section = %+v", sec)
	}

	resp, body = get(t, base+"/export")
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("export Content-Type = %q", ct)
	}
	assertContains(t, body, `"New title"`, `"Opening"`)

	resp, _ = postForm(t, client, base+"/export", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("POST export status = %d, want 404", resp.StatusCode)
	}
}

func multipartImport(t *testing.T, rawURL, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "lesson.json")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	resp, err := noRedirect().Post(rawURL, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	return resp
}

func TestEditorImportUpload(t *testing.T) {
	srv, ts := newTestServer(t)
	rawURL := ts.URL + "/editor/lesson-001/import"

	if resp := multipartImport(t, rawURL, lessonTwo); resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("import status = %d, want 303", resp.StatusCode)
	}
	ed, err := srv.Sessions().Get("lesson-001")
	if err != nil {
		t.Fatal(err)
	}
	if got := ed.Snapshot().Title; got != "Second Steps" {
		t.Errorf("title = %q after import", got)
	}

	if resp := multipartImport(t, rawURL, `{"sections":"nope"}`); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid import status = %d, want 422", resp.StatusCode)
	}
	if got := ed.Snapshot().Title; got != "Second Steps" {
		t.Errorf("rejected import changed the title to %q", got)
	}

	resp, _ := postForm(t, noRedirect(), rawURL, url.Values{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("import without a file status = %d, want 400", resp.StatusCode)
	}
}

func TestEditorPageLoadFailure(t *testing.T) {
	_, ts := newTestServer(t, noFallback)

	resp, body := get(t, ts.URL+"/editor/lesson-404")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	assertContains(t, body, "could not be loaded", `action="/editor/lesson-404/reload"`)
}
