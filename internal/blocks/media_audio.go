package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// MediaAudioData describes an audio lesson card.
type MediaAudioData struct {
	Eyebrow            string  `json:"eyebrow,omitempty"`
	Title              string  `json:"title" validate:"required"`
	Description        string  `json:"description,omitempty"`
	ProgressPercent    float64 `json:"progressPercent" validate:"gte=0,lte=100" label:"Progress (%)"`
	DurationLabel      string  `json:"durationLabel,omitempty"`
	SpeedLabel         string  `json:"speedLabel,omitempty"`
	ListLabel          string  `json:"listLabel,omitempty"`
	PrimaryActionLabel string  `json:"primaryActionLabel,omitempty"`
}

var mediaAudioTmpl = mustTemplate("media-audio", `<div class="lk-audio">
  {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
  <h2>{{.Title}}</h2>
  {{- if .Description}}<p class="lk-description">{{.Description}}</p>{{end}}
  <div class="lk-audio-player">
    <button type="button" class="lk-audio-play">{{if .PrimaryActionLabel}}{{.PrimaryActionLabel}}{{else}}Play{{end}}</button>
    <progress max="100" value="{{.ProgressPercent}}"></progress>
    {{- if .DurationLabel}}<span class="lk-audio-duration">{{.DurationLabel}}</span>{{end}}
    {{- if .SpeedLabel}}<span class="lk-audio-speed">{{.SpeedLabel}}</span>{{end}}
    {{- if .ListLabel}}<span class="lk-audio-list">{{.ListLabel}}</span>{{end}}
  </div>
</div>`)

// MediaAudio is an audio player card.
var MediaAudio = plugin.New(plugin.Definition[MediaAudioData]{
	Type:    "media-audio",
	Label:   "Audio",
	Version: 1,
	Default: MediaAudioData{
		Eyebrow:            "Audio lesson",
		Title:              "Audio block title",
		Description:        "Description",
		DurationLabel:      "0:00",
		SpeedLabel:         "1x",
		ListLabel:          "Playlist",
		PrimaryActionLabel: "Play",
	},
	Render: func(d MediaAudioData) (template.HTML, error) {
		return execute(mediaAudioTmpl, d)
	},
})
