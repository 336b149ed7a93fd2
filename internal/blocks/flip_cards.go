package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// FlipCardsData is a set of prompt/insight cards.
type FlipCardsData struct {
	Eyebrow     string     `json:"eyebrow,omitempty"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description,omitempty"`
	Cards       []FlipCard `json:"cards" validate:"min=1,dive"`
}

// FlipCard shows Prompt on the front and Insight on the back.
type FlipCard struct {
	Prompt  string `json:"prompt" validate:"required"`
	Insight string `json:"insight" validate:"required"`
}

var flipCardsTmpl = mustTemplate("flip-cards", `<div class="lk-flip-cards">
  {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
  <h2>{{.Title}}</h2>
  {{- if .Description}}<p class="lk-description">{{.Description}}</p>{{end}}
  <div class="lk-card-grid">
    {{- range $i, $c := .Cards}}
    <label class="lk-flip-card">
      <input type="checkbox" hidden>
      <span class="lk-card-front"><small>{{add $i 1}}</small>{{$c.Prompt}}</span>
      <span class="lk-card-back">{{$c.Insight}}</span>
    </label>
    {{- end}}
  </div>
</div>`)

// FlipCards shows cards that flip on click.
var FlipCards = plugin.New(plugin.Definition[FlipCardsData]{
	Type:    "flip-cards",
	Label:   "Flip cards",
	Version: 1,
	Default: FlipCardsData{
		Eyebrow:     "Interactive cards",
		Title:       "Flip card title",
		Description: "Prepare a prompt for each card.",
		Cards:       []FlipCard{{Prompt: "Question A", Insight: "Insight A"}},
	},
	Render: func(d FlipCardsData) (template.HTML, error) {
		return execute(flipCardsTmpl, d)
	},
})
