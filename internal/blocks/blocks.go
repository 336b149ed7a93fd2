// Package blocks contains the built-in lesson block plugins.
package blocks

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/livetemplate/lessonkit/plugin"
)

// All returns the built-in plugins in palette order.
func All() []plugin.Plugin {
	return []plugin.Plugin{
		Banner,
		RichText,
		AccordionTips,
		DragMatch,
		FlipCards,
		ImageWithList,
		ImageWithText,
		MediaAudio,
		MediaVideo,
		SectionCard,
	}
}

// Registry builds a registry holding every built-in plugin.
func Registry() *plugin.Registry {
	return plugin.MustRegistry(All()...)
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

func execute(t *template.Template, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// ImageRef is an image with optional alt text.
type ImageRef struct {
	URL string `json:"url" validate:"required,url"`
	Alt string `json:"alt,omitempty"`
}

func orDefault(s *string, def string) {
	if *s == "" {
		*s = def
	}
}
