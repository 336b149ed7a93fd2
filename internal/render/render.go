// Package render turns lesson sections into HTML through the block plugins.
package render

import (
	"bytes"
	"html/template"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit"
	"github.com/livetemplate/lessonkit/plugin"
)

// BlockRenderer renders single blocks. It is safe to call on raw nodes that
// were never validated: data is migrated and validated here, and replaced
// by the plugin's default data when it does not pass.
type BlockRenderer struct {
	registry *plugin.Registry
	logger   *zap.Logger
}

// NewBlockRenderer creates a BlockRenderer. A nil logger discards output.
func NewBlockRenderer(reg *plugin.Registry, logger *zap.Logger) *BlockRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockRenderer{registry: reg, logger: logger}
}

// Resolve finds the plugin for node and computes its effective data.
func (r *BlockRenderer) Resolve(node lessonkit.BlockNode) (plugin.Plugin, plugin.Resolution, bool) {
	p, ok := r.registry.Lookup(node.Type)
	if !ok {
		return nil, plugin.Resolution{}, false
	}
	return p, plugin.Effective(p, node.Version, node.Data), true
}

// Render returns the markup for node, or nothing for an unknown type.
func (r *BlockRenderer) Render(node lessonkit.BlockNode) template.HTML {
	p, res, ok := r.Resolve(node)
	if !ok {
		r.logger.Debug("skipping unknown block type",
			zap.String("block", node.ID), zap.String("type", node.Type))
		return ""
	}
	if !res.Valid {
		r.logger.Debug("rendering block with default data",
			zap.String("block", node.ID),
			zap.String("type", node.Type),
			zap.Int("errors", len(res.Errors)),
			zap.Error(res.MigrateErr))
	}

	out, err := p.Render(res.Data)
	if err != nil {
		r.logger.Error("block render failed",
			zap.String("block", node.ID), zap.String("type", node.Type), zap.Error(err))
		return ""
	}
	return out
}

// Options control how a lesson is rendered.
type Options struct {
	// SelectedID highlights the block with this id.
	SelectedID string

	// SelectURL, when set, makes every block selectable. It returns the
	// URL that reports the clicked block id back to the caller.
	SelectURL func(blockID string) string
}

// LessonRenderer renders sections in order, delegating blocks to a
// BlockRenderer.
type LessonRenderer struct {
	blocks *BlockRenderer
}

// NewLessonRenderer creates a LessonRenderer.
func NewLessonRenderer(blocks *BlockRenderer) *LessonRenderer {
	return &LessonRenderer{blocks: blocks}
}

var lessonTmpl = template.Must(template.New("lesson").Parse(`
{{- range .}}
<section class="lk-section{{if .Layout}} lk-layout-{{.Layout}}{{end}}" id="{{.ID}}">
  {{- if .Title}}<h2 class="lk-section-title">{{.Title}}</h2>{{end}}
  <div class="lk-section-blocks">
  {{- range .Blocks}}
    <div class="lk-block{{if .Selected}} lk-selected{{end}}" data-block-id="{{.ID}}" data-block-type="{{.Type}}"
      {{- if .SelectURL}} data-select-url="{{.SelectURL}}"{{end}}>
      {{- if .SelectURL}}<a class="lk-select-handle" href="{{.SelectURL}}">Select</a>{{end}}
      {{.HTML}}
    </div>
  {{- end}}
  </div>
</section>
{{- end}}`))

type sectionView struct {
	ID     string
	Title  string
	Layout lessonkit.Layout
	Blocks []blockView
}

type blockView struct {
	ID        string
	Type      string
	Selected  bool
	SelectURL string
	HTML      template.HTML
}

// Render returns the markup for every section and block.
func (r *LessonRenderer) Render(sections []lessonkit.Section, opts Options) template.HTML {
	views := make([]sectionView, 0, len(sections))
	for _, s := range sections {
		sv := sectionView{ID: s.ID, Title: s.Title, Layout: s.Layout}
		for _, b := range s.Blocks {
			bv := blockView{
				ID:       b.ID,
				Type:     b.Type,
				Selected: opts.SelectedID != "" && b.ID == opts.SelectedID,
				HTML:     r.blocks.Render(b),
			}
			if opts.SelectURL != nil {
				bv.SelectURL = opts.SelectURL(b.ID)
			}
			sv.Blocks = append(sv.Blocks, bv)
		}
		views = append(views, sv)
	}

	var buf bytes.Buffer
	if err := lessonTmpl.Execute(&buf, views); err != nil {
		r.blocks.logger.Error("lesson render failed", zap.Error(err))
		return ""
	}
	return template.HTML(buf.String())
}
