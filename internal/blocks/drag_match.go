package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

const (
	defaultMatchSuccess = "Great! You matched everything correctly."
	defaultMatchFailure = "Try again and think about which stage this action fits."
)

// DragMatchData is a matching exercise: each option belongs to one target.
type DragMatchData struct {
	Eyebrow        string        `json:"eyebrow,omitempty"`
	Title          string        `json:"title" validate:"required"`
	Description    string        `json:"description,omitempty"`
	Options        []MatchOption `json:"options" validate:"min=1,dive"`
	Targets        []MatchTarget `json:"targets" validate:"min=1,dive"`
	SuccessMessage string        `json:"successMessage" label:"Success message"`
	FailureMessage string        `json:"failureMessage" label:"Failure message"`
	FooterNote     string        `json:"footerNote,omitempty" label:"Footer note"`
}

// MatchOption is a draggable card and the target it belongs to.
type MatchOption struct {
	ID       string `json:"id" validate:"required"`
	Label    string `json:"label" validate:"required"`
	TargetID string `json:"targetId" validate:"required" label:"Target id"`
}

// MatchTarget is a drop zone.
type MatchTarget struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

var dragMatchTmpl = mustTemplate("drag-match", `<div class="lk-drag-match" data-success="{{.SuccessMessage}}" data-failure="{{.FailureMessage}}">
  {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
  <h2>{{.Title}}</h2>
  {{- if .Description}}<p class="lk-description">{{.Description}}</p>{{end}}
  <div class="lk-match-targets">
    {{- range .Targets}}
    <div class="lk-match-target" data-target-id="{{.ID}}"><h3>{{.Title}}</h3><p>{{.Description}}</p></div>
    {{- end}}
  </div>
  <ul class="lk-match-options">
    {{- $targets := .Targets}}
    {{- range .Options}}
    <li class="lk-match-option" data-answer="{{.TargetID}}">
      <span>{{.Label}}</span>
      <select aria-label="{{.Label}}">
        <option value="">…</option>
        {{- range $targets}}<option value="{{.ID}}">{{.Title}}</option>{{end}}
      </select>
    </li>
    {{- end}}
  </ul>
  <button type="button" class="lk-match-check">Check</button>
  <p class="lk-match-result" role="status"></p>
  {{- if .FooterNote}}<p class="lk-footnote">{{.FooterNote}}</p>{{end}}
</div>`)

// DragMatch is a match-the-option-to-the-target exercise.
var DragMatch = plugin.New(plugin.Definition[DragMatchData]{
	Type:    "drag-match",
	Label:   "Drag and match",
	Version: 1,
	Default: DragMatchData{
		Eyebrow:     "Matching exercise",
		Title:       "Matching exercise title",
		Description: "Description",
		Options: []MatchOption{
			{ID: "option-1", Label: "Option 1", TargetID: "target-1"},
			{ID: "option-2", Label: "Option 2", TargetID: "target-2"},
		},
		Targets: []MatchTarget{
			{ID: "target-1", Title: "Target 1", Description: "Target description"},
			{ID: "target-2", Title: "Target 2", Description: "Target description"},
		},
		SuccessMessage: defaultMatchSuccess,
		FailureMessage: defaultMatchFailure,
		FooterNote:     "Note down what you learned once you finish.",
	},
	Render: func(d DragMatchData) (template.HTML, error) {
		return execute(dragMatchTmpl, d)
	},
	Defaults: func(d *DragMatchData) {
		orDefault(&d.SuccessMessage, defaultMatchSuccess)
		orDefault(&d.FailureMessage, defaultMatchFailure)
	},
})
