package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// ImageWithListData is an image next to a bullet list.
type ImageWithListData struct {
	Eyebrow     string   `json:"eyebrow,omitempty"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description,omitempty"`
	Items       []string `json:"items" validate:"min=1"`
	Image       ImageRef `json:"image"`
	Caption     string   `json:"caption,omitempty"`
}

var imageWithListTmpl = mustTemplate("image-with-list", `<div class="lk-image-list">
  <div class="lk-image-list-text">
    {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
    <h2>{{.Title}}</h2>
    {{- if .Description}}<p class="lk-description">{{.Description}}</p>{{end}}
    <ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>
  </div>
  <figure>
    <img src="{{.Image.URL}}" alt="{{.Image.Alt}}" loading="lazy">
    {{- if .Caption}}<figcaption>{{.Caption}}</figcaption>{{end}}
  </figure>
</div>`)

// ImageWithList shows a list of points beside an image.
var ImageWithList = plugin.New(plugin.Definition[ImageWithListData]{
	Type:    "image-with-list",
	Label:   "Image with list",
	Version: 1,
	Default: ImageWithListData{
		Eyebrow: "Module overview",
		Title:   "Title",
		Items:   []string{"Point A", "Point B", "Point C"},
		Image: ImageRef{
			URL: "https://images.unsplash.com/photo-1552581234-26160f608093?auto=format&fit=crop&w=900&q=80",
		},
	},
	Render: func(d ImageWithListData) (template.HTML, error) {
		return execute(imageWithListTmpl, d)
	},
})
