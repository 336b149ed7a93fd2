package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/livetemplate/lessonkit/plugin"
)

// MediaVideoData describes a video lesson.
//
// Version 2 stores the description as paragraphs and nests the source under
// video. Version 1 data kept a single description string and flat
// videoUrl/videoType/poster fields; both shapes are accepted by the migrator.
type MediaVideoData struct {
	Eyebrow     string      `json:"eyebrow,omitempty"`
	Title       string      `json:"title" validate:"required"`
	Description []string    `json:"description"`
	Tags        []string    `json:"tags"`
	Meta        string      `json:"meta,omitempty"`
	Video       VideoSource `json:"video"`
}

// VideoSource is the playable file.
type VideoSource struct {
	Src    string `json:"src" validate:"required,url"`
	Type   string `json:"type"`
	Poster string `json:"poster,omitempty" validate:"omitempty,url"`
}

var mediaVideoTmpl = mustTemplate("media-video", `<div class="lk-video">
  <video controls preload="metadata"{{if .Video.Poster}} poster="{{.Video.Poster}}"{{end}}>
    <source src="{{.Video.Src}}" type="{{.Video.Type}}">
  </video>
  <div class="lk-video-text">
    {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
    <h2>{{.Title}}</h2>
    {{- if .Meta}}<p class="lk-meta">{{.Meta}}</p>{{end}}
    {{- range .Description}}<p>{{.}}</p>{{end}}
    {{- if .Tags}}<ul class="lk-tags">{{range .Tags}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
</div>`)

// MediaVideo is a video player with a description.
var MediaVideo = plugin.New(plugin.Definition[MediaVideoData]{
	Type:    "media-video",
	Label:   "Video",
	Version: 2,
	Default: MediaVideoData{
		Eyebrow:     "Video lesson",
		Title:       "Video title",
		Description: []string{"Video introduction"},
		Tags:        []string{"Tag"},
		Meta:        "Duration 0:00",
		Video: VideoSource{
			Src:    "https://cdn.coverr.co/videos/coverr-young-innovators-discussing-ideas-4087/1080p.mp4",
			Type:   "video/mp4",
			Poster: "https://images.unsplash.com/photo-1529333166437-7750a6dd5a70?auto=format&fit=crop&w=1600&q=80",
		},
	},
	Render: func(d MediaVideoData) (template.HTML, error) {
		return execute(mediaVideoTmpl, d)
	},
	Migrate:  migrateMediaVideo,
	Defaults: defaultMediaVideo,
})

func defaultMediaVideo(d *MediaVideoData) {
	orDefault(&d.Video.Type, "video/mp4")
	if d.Description == nil {
		d.Description = []string{}
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
}

func migrateMediaVideo(old json.RawMessage) (MediaVideoData, error) {
	var legacy struct {
		Eyebrow     string          `json:"eyebrow"`
		Title       string          `json:"title"`
		Description json.RawMessage `json:"description"`
		Tags        []string        `json:"tags"`
		Meta        string          `json:"meta"`
		Video       *VideoSource    `json:"video"`
		VideoURL    string          `json:"videoUrl"`
		VideoType   string          `json:"videoType"`
		Poster      string          `json:"poster"`
	}
	if len(bytes.TrimSpace(old)) > 0 {
		if err := json.Unmarshal(old, &legacy); err != nil {
			return MediaVideoData{}, err
		}
	}

	d := MediaVideoData{
		Eyebrow: legacy.Eyebrow,
		Title:   legacy.Title,
		Tags:    legacy.Tags,
		Meta:    legacy.Meta,
	}
	if legacy.Video != nil {
		d.Video = *legacy.Video
	}
	orDefault(&d.Video.Src, legacy.VideoURL)
	orDefault(&d.Video.Type, legacy.VideoType)
	orDefault(&d.Video.Poster, legacy.Poster)

	desc, err := paragraphs(legacy.Description)
	if err != nil {
		return MediaVideoData{}, fmt.Errorf("description: %w", err)
	}
	d.Description = desc
	defaultMediaVideo(&d)
	return d, nil
}

// paragraphs accepts either a string (paragraphs separated by blank lines)
// or an array of strings.
func paragraphs(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []string
		err := json.Unmarshal(raw, &list)
		return list, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
