package blocks

import (
	"html/template"

	"github.com/livetemplate/lessonkit/plugin"
)

// BannerData is the data of a lesson header banner.
type BannerData struct {
	Eyebrow       string `json:"eyebrow,omitempty"`
	Title         string `json:"title" validate:"required"`
	Subtitle      string `json:"subtitle,omitempty"`
	BgImage       string `json:"bgImage" validate:"required,url" label:"Background image"`
	TopRightLabel string `json:"topRightLabel,omitempty" label:"Top right label"`
}

var bannerTmpl = mustTemplate("banner", `<header class="lk-banner" style="background-image:url('{{.BgImage}}')">
  <div class="lk-banner-inner">
    {{- if .TopRightLabel}}<span class="lk-banner-corner">{{.TopRightLabel}}</span>{{end}}
    {{- if .Eyebrow}}<p class="lk-eyebrow">{{.Eyebrow}}</p>{{end}}
    <h1>{{.Title}}</h1>
    {{- if .Subtitle}}<p class="lk-subtitle">{{.Subtitle}}</p>{{end}}
  </div>
</header>`)

// Banner is the full-width lesson header.
var Banner = plugin.New(plugin.Definition[BannerData]{
	Type:    "banner",
	Label:   "Banner",
	Version: 1,
	Default: BannerData{
		Eyebrow:       "Lesson 1 of 4",
		Title:         "Title",
		BgImage:       "https://images.unsplash.com/photo-1521737604893-d14cc237f11d?auto=format&fit=crop&w=2000&q=80",
		TopRightLabel: "Back to module",
	},
	Render: func(d BannerData) (template.HTML, error) {
		return execute(bannerTmpl, d)
	},
})
