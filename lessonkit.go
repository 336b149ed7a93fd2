// Package lessonkit provides the lesson document model and its validation
// pipeline. A lesson is an ordered list of sections, each holding an ordered
// list of typed blocks whose data is validated through the block plugins in
// a plugin.Registry.
package lessonkit

import (
	"encoding/json"
)

// LessonDocument is the root of a lesson file.
type LessonDocument struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is an ordered group of blocks.
type Section struct {
	ID         string      `json:"id"`
	Title      string      `json:"title,omitempty"`
	Layout     Layout      `json:"layout,omitempty"`
	Visibility *Visibility `json:"visibility,omitempty"`
	Blocks     []BlockNode `json:"blocks"`
}

// BlockNode is one content unit. Data is opaque until it is run through the
// plugin registered for Type.
type BlockNode struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Version    float64         `json:"version,omitempty"` // 0 = absent, treated as 1
	Visibility *Visibility     `json:"visibility,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Visibility is an audience filter. It is stored and editable but not
// consulted when rendering.
type Visibility struct {
	Roles  []string `json:"roles,omitempty"`
	Locale []string `json:"locale,omitempty"`
}

// Layout controls how a section arranges its blocks.
type Layout string

const (
	LayoutSingle Layout = "single"
	LayoutTwoCol Layout = "two-col"
	LayoutFull   Layout = "full"
)

// Layouts lists the accepted layout values.
var Layouts = []Layout{LayoutSingle, LayoutTwoCol, LayoutFull}

// Valid reports whether l is empty or one of the known layouts.
func (l Layout) Valid() bool {
	if l == "" {
		return true
	}
	for _, known := range Layouts {
		if l == known {
			return true
		}
	}
	return false
}

// EffectiveVersion returns the stored version, or 1 when absent. Versions
// are plain JSON numbers, so 1.5 is a valid value between 1 and 2.
func (n BlockNode) EffectiveVersion() float64 {
	if n.Version <= 0 {
		return 1
	}
	return n.Version
}

// OlderThan reports whether the block was stored under a schema version
// before current.
func (n BlockNode) OlderThan(current int) bool {
	return n.EffectiveVersion() < float64(current)
}

// NewerThan reports whether the block claims a schema version after current.
func (n BlockNode) NewerThan(current int) bool {
	return n.EffectiveVersion() > float64(current)
}

// FindBlock returns the position of the block with the given id.
func (d *LessonDocument) FindBlock(id string) (section, block int, ok bool) {
	return FindBlock(d.Sections, id)
}

// FindBlock returns the position of the block with the given id.
func FindBlock(sections []Section, id string) (section, block int, ok bool) {
	for si, s := range sections {
		for bi, b := range s.Blocks {
			if b.ID == id {
				return si, bi, true
			}
		}
	}
	return -1, -1, false
}

// BlockCount returns the number of blocks across all sections.
func (d *LessonDocument) BlockCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Blocks)
	}
	return n
}
