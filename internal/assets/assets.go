// Package assets embeds the browser client and the HTML page templates.
package assets

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser JavaScript
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/lessonkit.js")
}

// GetClientCSS returns the browser stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/lessonkit.css")
}

// Templates parses the page templates. Pages are looked up by file name,
// e.g. "lesson.html"; shared fragments are defined in base.html.
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
