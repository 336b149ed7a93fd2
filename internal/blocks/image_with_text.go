package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// ImageWithTextData is an image beside paragraphs of text.
type ImageWithTextData struct {
	Layout  string   `json:"layout" validate:"oneof=image-left image-right"`
	Image   ImageRef `json:"image"`
	Caption string   `json:"caption,omitempty"`
	Body    []string `json:"body" validate:"min=1"`
}

var imageWithTextTmpl = mustTemplate("image-with-text", `<div class="lk-image-text lk-{{.Layout}}">
  <figure>
    <img src="{{.Image.URL}}" alt="{{.Image.Alt}}" loading="lazy">
    {{- if .Caption}}<figcaption>{{.Caption}}</figcaption>{{end}}
  </figure>
  <div class="lk-image-text-body">{{range .Body}}<p>{{.}}</p>{{end}}</div>
</div>`)

// ImageWithText shows paragraphs beside an image.
var ImageWithText = plugin.New(plugin.Definition[ImageWithTextData]{
	Type:    "image-with-text",
	Label:   "Image with text",
	Version: 1,
	Default: ImageWithTextData{
		Layout: "image-left",
		Image: ImageRef{
			URL: "https://images.unsplash.com/photo-1524504388940-b1c1722653e1?auto=format&fit=crop&w=900&q=80",
		},
		Body: []string{"Body text"},
	},
	Render: func(d ImageWithTextData) (template.HTML, error) {
		return execute(imageWithTextTmpl, d)
	},
	Defaults: func(d *ImageWithTextData) {
		orDefault(&d.Layout, "image-left")
	},
})
