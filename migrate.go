package lessonkit

import (
	"fmt"

	"github.com/livetemplate/lessonkit/plugin"
)

// Migration records one block rewritten to a newer schema version.
type Migration struct {
	Path string  `json:"path"`
	Type string  `json:"type"`
	From float64 `json:"from"`
	To   int     `json:"to"`
}

// MigrateSections rewrites blocks stored under an older version to the
// current version of their plugin, using the plugin's migrator. Blocks of
// unknown types, blocks without a migrator and blocks already at the
// current version are left alone. A failed migration keeps the block as it
// was and is reported as an error issue.
//
// The input is not modified.
func MigrateSections(reg *plugin.Registry, sections []Section) ([]Section, []Migration, []Issue) {
	out := make([]Section, len(sections))
	var (
		migrations []Migration
		issues     []Issue
	)
	for si, section := range sections {
		out[si] = section
		out[si].Blocks = append([]BlockNode(nil), section.Blocks...)

		for bi, node := range section.Blocks {
			p, ok := reg.Lookup(node.Type)
			if !ok || !node.OlderThan(p.Version()) {
				continue
			}
			path := fmt.Sprintf("sections[%d].blocks[%d]", si, bi)
			data, ok, err := p.Migrate(node.Data)
			if err != nil {
				issues = append(issues, Issue{Level: LevelError, Message: err.Error(), Path: path + ".data"})
				continue
			}
			if !ok {
				continue
			}
			out[si].Blocks[bi].Data = data
			out[si].Blocks[bi].Version = float64(p.Version())
			migrations = append(migrations, Migration{
				Path: path,
				Type: node.Type,
				From: node.EffectiveVersion(),
				To:   p.Version(),
			})
		}
	}
	return out, migrations, issues
}
