package blocks

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/livetemplate/lessonkit/plugin"
)

// RichTextData is a markdown body.
type RichTextData struct {
	Content  string `json:"content" validate:"required" form:"textarea"`
	Align    string `json:"align" validate:"oneof=left center"`
	MaxWidth string `json:"maxWidth" validate:"oneof=sm md lg xl" label:"Max width"`
}

// md renders block markdown. Raw HTML in content is dropped.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

var richTextTmpl = mustTemplate("rich-text", `<div class="lk-rich-text lk-align-{{.Align}} lk-width-{{.MaxWidth}}">{{.Body}}</div>`)

// RichText is a markdown text block.
var RichText = plugin.New(plugin.Definition[RichTextData]{
	Type:    "rich-text",
	Label:   "Rich text",
	Version: 1,
	Default: RichTextData{
		Content:  "# Section heading\n\nThis is a paragraph. Use **bold**, *italic* or `code` to highlight.",
		Align:    "left",
		MaxWidth: "lg",
	},
	Render: renderRichText,
	Defaults: func(d *RichTextData) {
		orDefault(&d.Align, "left")
		orDefault(&d.MaxWidth, "lg")
	},
})

func renderRichText(d RichTextData) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(d.Content), &buf); err != nil {
		return "", err
	}
	return execute(richTextTmpl, struct {
		RichTextData
		Body template.HTML
	}{d, template.HTML(buf.String())})
}
