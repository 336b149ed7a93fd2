package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// SectionCardData is a call-to-action card.
type SectionCardData struct {
	Variant     string         `json:"variant" validate:"oneof=brand-gradient white-cta plain"`
	Eyebrow     string         `json:"eyebrow,omitempty"`
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description,omitempty"`
	Align       string         `json:"align" validate:"oneof=center left"`
	CTAs        []CallToAction `json:"ctas" validate:"dive" label:"Buttons"`
}

// CallToAction is a button, optionally linking somewhere.
type CallToAction struct {
	Label string `json:"label" validate:"required"`
	Href  string `json:"href,omitempty"`
}

var sectionCardTmpl = mustTemplate("section-card", `<div class="lk-card lk-card-{{.Variant}} lk-align-{{.Align}}">
  {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
  <h2>{{.Title}}</h2>
  {{- if .Description}}<p class="lk-description">{{.Description}}</p>{{end}}
  {{- if .CTAs}}
  <div class="lk-card-actions">
    {{- range .CTAs}}
    {{- if .Href}}<a class="lk-button" href="{{.Href}}">{{.Label}}</a>{{else}}<button type="button" class="lk-button">{{.Label}}</button>{{end}}
    {{- end}}
  </div>
  {{- end}}
</div>`)

// SectionCard is a highlighted card with optional buttons.
var SectionCard = plugin.New(plugin.Definition[SectionCardData]{
	Type:    "section-card",
	Label:   "Section card",
	Version: 1,
	Default: SectionCardData{
		Variant: "plain",
		Title:   "Title",
		Align:   "center",
		CTAs:    []CallToAction{},
	},
	Render: func(d SectionCardData) (template.HTML, error) {
		return execute(sectionCardTmpl, d)
	},
	Defaults: func(d *SectionCardData) {
		orDefault(&d.Variant, "plain")
		orDefault(&d.Align, "center")
		if d.CTAs == nil {
			d.CTAs = []CallToAction{}
		}
	},
})
