package assets

import (
	"bytes"
	"html/template"
	"io/fs"
	"strings"
	"testing"
)

func TestGetClientJS(t *testing.T) {
	data, err := GetClientJS()
	if err != nil {
		t.Fatalf("GetClientJS failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("GetClientJS returned empty data")
	}
	if !bytes.Contains(data, []byte("WebSocket")) {
		t.Error("client JS should open the live reload socket")
	}
}

func TestGetClientCSS(t *testing.T) {
	data, err := GetClientCSS()
	if err != nil {
		t.Fatalf("GetClientCSS failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("GetClientCSS returned empty data")
	}
}

func TestClientFS(t *testing.T) {
	entries, err := fs.ReadDir(ClientFS(), ".")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	got := strings.Join(names, ",")
	if got != "lessonkit.css,lessonkit.js" {
		t.Errorf("client files = %q", got)
	}
}

func TestTemplates(t *testing.T) {
	funcs := template.FuncMap{
		"add":  func(a, b int) int { return a + b },
		"join": strings.Join,
	}
	tmpl, err := Templates(funcs)
	if err != nil {
		t.Fatalf("Templates failed: %v", err)
	}
	for _, name := range []string{"index.html", "lesson.html", "editor.html", "head", "foot"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}
