package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// AccordionTipsData is a list of expandable tips.
type AccordionTipsData struct {
	Eyebrow     string     `json:"eyebrow,omitempty"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	Items       []TipEntry `json:"items" validate:"min=1,dive"`
}

// TipEntry is one expandable tip.
type TipEntry struct {
	ID      string `json:"id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required" form:"textarea"`
}

var accordionTmpl = mustTemplate("accordion-tips", `<div class="lk-accordion">
  {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
  <h2>{{.Title}}</h2>
  {{- if .Description}}<p class="lk-description">{{.Description}}</p>{{end}}
  {{- range .Items}}
  <details class="lk-accordion-item" id="{{.ID}}">
    <summary>{{.Title}}</summary>
    <div>{{.Content}}</div>
  </details>
  {{- end}}
</div>`)

// AccordionTips shows tips that expand one at a time.
var AccordionTips = plugin.New(plugin.Definition[AccordionTipsData]{
	Type:    "accordion-tips",
	Label:   "Accordion tips",
	Version: 1,
	Default: AccordionTipsData{
		Eyebrow:     "Think deeper",
		Title:       "Open the tips and keep challenging yourself",
		Description: "Read at your own pace and write down one concrete action per tip.",
		Items: []TipEntry{
			{ID: "tip-1", Title: "Tip 1", Content: "Content 1"},
			{ID: "tip-2", Title: "Tip 2", Content: "Content 2"},
		},
	},
	Render: func(d AccordionTipsData) (template.HTML, error) {
		return execute(accordionTmpl, d)
	},
})
