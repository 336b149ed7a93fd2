package editor

import (
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/livetemplate/lessonkit"
)

// Direction of a move.
type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("invalid direction %q", s)
}

// SectionPatch lists the section fields to change. Nil fields are kept.
type SectionPatch struct {
	Title      *string               `json:"title,omitempty"`
	Layout     *lessonkit.Layout     `json:"layout,omitempty"`
	Visibility *lessonkit.Visibility `json:"visibility,omitempty"`
}

// InsertBlock adds a block of the given type with the plugin's default
// data. It goes right after the selected block or, with nothing selected,
// at the head of the first section. The new block becomes selected.
// Without any section nothing happens and ok is false.
func (e *Editor) InsertBlock(blockType string) (node lessonkit.BlockNode, ok bool, err error) {
	p, found := e.registry.Lookup(blockType)
	if !found {
		return node, false, fmt.Errorf("%w: %s", ErrUnknownType, blockType)
	}
	data, err := p.Encode(p.DefaultData())
	if err != nil {
		return node, false, fmt.Errorf("encode default %s: %w", blockType, err)
	}
	node = lessonkit.BlockNode{
		ID:      e.newID(blockType, 6),
		Type:    blockType,
		Version: float64(p.Version()),
		Data:    data,
	}

	ok = e.mutate(func() bool {
		if len(e.sections) == 0 {
			return false
		}
		at := Ref{Section: 0, Block: 0}
		if e.selected != nil {
			at = Ref{Section: e.selected.Section, Block: e.selected.Block + 1}
		}
		e.sections = e.withBlocks(at.Section, slices.Insert(cloneBlocks(e.sections[at.Section].Blocks), at.Block, node))
		e.selected = &at
		return true
	})
	if ok {
		e.logger.Debug("block inserted", zap.String("block", node.ID), zap.String("type", blockType))
	}
	return node, ok, nil
}

// Select marks the block at ref as selected.
func (e *Editor) Select(ref Ref) error {
	e.mu.Lock()
	if !e.validRef(ref) {
		e.mu.Unlock()
		return fmt.Errorf("%w: section %d block %d", ErrOutOfRange, ref.Section, ref.Block)
	}
	same := e.selected != nil && *e.selected == ref
	e.mu.Unlock()
	if same {
		return nil
	}
	e.mutate(func() bool {
		if !e.validRef(ref) {
			return false
		}
		e.selected = &ref
		return true
	})
	return nil
}

// SelectByID selects the first block with the given id.
func (e *Editor) SelectByID(id string) bool {
	return e.mutate(func() bool {
		for si, s := range e.sections {
			for bi, b := range s.Blocks {
				if b.ID == id {
					if e.selected != nil && e.selected.Section == si && e.selected.Block == bi {
						return false
					}
					e.selected = &Ref{Section: si, Block: bi}
					return true
				}
			}
		}
		return false
	})
}

// ClearSelection deselects the current block.
func (e *Editor) ClearSelection() {
	e.mutate(func() bool {
		if e.selected == nil {
			return false
		}
		e.selected = nil
		return true
	})
}

// SelectedBlock returns the selected block.
func (e *Editor) SelectedBlock() (lessonkit.BlockNode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return lessonkit.BlockNode{}, false
	}
	return e.sections[e.selected.Section].Blocks[e.selected.Block], true
}

// FocusSection sets the focused section.
func (e *Editor) FocusSection(i int) error {
	e.mu.Lock()
	valid := i >= 0 && i < len(e.sections)
	e.mu.Unlock()
	if !valid {
		return fmt.Errorf("%w: section %d", ErrOutOfRange, i)
	}
	e.mutate(func() bool {
		if e.focused != nil && *e.focused == i {
			return false
		}
		e.focused = &i
		return true
	})
	return nil
}

// MoveBlock swaps the selected block with its neighbour in the same
// section. Moves past either end are ignored.
func (e *Editor) MoveBlock(dir Direction) bool {
	return e.mutate(func() bool {
		if e.selected == nil {
			return false
		}
		ref := *e.selected
		blocks := e.sections[ref.Section].Blocks
		to := ref.Block + int(dir)
		if to < 0 || to >= len(blocks) {
			return false
		}
		moved := cloneBlocks(blocks)
		moved[ref.Block], moved[to] = moved[to], moved[ref.Block]
		e.sections = e.withBlocks(ref.Section, moved)
		e.selected = &Ref{Section: ref.Section, Block: to}
		return true
	})
}

// DeleteBlock removes the selected block and clears the selection.
func (e *Editor) DeleteBlock() bool {
	return e.mutate(func() bool {
		if e.selected == nil {
			return false
		}
		ref := *e.selected
		e.sections = e.withBlocks(ref.Section, slices.Delete(cloneBlocks(e.sections[ref.Section].Blocks), ref.Block, ref.Block+1))
		e.selected = nil
		return true
	})
}

// InsertSection appends an empty full-width section and focuses it.
func (e *Editor) InsertSection() lessonkit.Section {
	sec := lessonkit.Section{
		ID:     e.newID("sec", 4),
		Layout: lessonkit.LayoutFull,
		Blocks: []lessonkit.BlockNode{},
	}
	e.mutate(func() bool {
		e.sections = append(slices.Clip(e.sections), sec)
		last := len(e.sections) - 1
		e.focused = &last
		return true
	})
	return sec
}

// MoveSection swaps section i with its neighbour. Selection and focus
// follow the sections they point into.
func (e *Editor) MoveSection(i int, dir Direction) bool {
	return e.mutate(func() bool {
		to := i + int(dir)
		if i < 0 || i >= len(e.sections) || to < 0 || to >= len(e.sections) {
			return false
		}
		next := slices.Clone(e.sections)
		next[i], next[to] = next[to], next[i]
		e.sections = next

		swap := func(n int) int {
			switch n {
			case i:
				return to
			case to:
				return i
			}
			return n
		}
		if e.selected != nil {
			e.selected = &Ref{Section: swap(e.selected.Section), Block: e.selected.Block}
		}
		if e.focused != nil {
			f := swap(*e.focused)
			e.focused = &f
		}
		return true
	})
}

// DeleteSection removes section i. A selection inside it is cleared, as is
// focus on it; references to later sections shift down.
func (e *Editor) DeleteSection(i int) bool {
	return e.mutate(func() bool {
		if i < 0 || i >= len(e.sections) {
			return false
		}
		e.sections = slices.Delete(slices.Clone(e.sections), i, i+1)

		if e.selected != nil {
			switch {
			case e.selected.Section == i:
				e.selected = nil
			case e.selected.Section > i:
				e.selected = &Ref{Section: e.selected.Section - 1, Block: e.selected.Block}
			}
		}
		if e.focused != nil {
			switch {
			case *e.focused == i:
				e.focused = nil
			case *e.focused > i:
				f := *e.focused - 1
				e.focused = &f
			}
		}
		return true
	})
}

// UpdateBlockData replaces the data of the selected block.
func (e *Editor) UpdateBlockData(data json.RawMessage) error {
	e.mu.Lock()
	sel := e.selected
	e.mu.Unlock()
	if sel == nil {
		return ErrNoSelection
	}
	return e.UpdateBlockDataAt(*sel, data)
}

// UpdateBlockDataAt replaces the data of the block at ref. Every other
// block keeps its identity. The data is not validated.
func (e *Editor) UpdateBlockDataAt(ref Ref, data json.RawMessage) error {
	return e.setBlockData(ref, 0, data)
}

// UpgradeBlockData replaces the data of the block at ref and stamps it
// with version. It is used when data decoded through a migrator is saved
// back in the plugin's current schema.
func (e *Editor) UpgradeBlockData(ref Ref, version int, data json.RawMessage) error {
	if version < 1 {
		return fmt.Errorf("invalid block version %d", version)
	}
	return e.setBlockData(ref, version, data)
}

func (e *Editor) setBlockData(ref Ref, version int, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("block data is not valid JSON")
	}
	var err error
	e.mutate(func() bool {
		if !e.validRef(ref) {
			err = fmt.Errorf("%w: section %d block %d", ErrOutOfRange, ref.Section, ref.Block)
			return false
		}
		blocks := cloneBlocks(e.sections[ref.Section].Blocks)
		blocks[ref.Block].Data = slices.Clone(data)
		if version > 0 {
			blocks[ref.Block].Version = float64(version)
		}
		e.sections = e.withBlocks(ref.Section, blocks)
		return true
	})
	return err
}

// UpdateSectionMeta applies patch to section i. Only fields that differ
// are replaced; when none do, the section is left as is and changed is
// false.
func (e *Editor) UpdateSectionMeta(i int, patch SectionPatch) (changed bool, err error) {
	if patch.Layout != nil && !patch.Layout.Valid() {
		return false, fmt.Errorf("invalid layout %q", *patch.Layout)
	}
	changed = e.mutate(func() bool {
		if i < 0 || i >= len(e.sections) {
			err = fmt.Errorf("%w: section %d", ErrOutOfRange, i)
			return false
		}
		cur := e.sections[i]
		next := cur
		diff := false
		if patch.Title != nil && *patch.Title != cur.Title {
			next.Title = *patch.Title
			diff = true
		}
		if patch.Layout != nil && *patch.Layout != cur.Layout {
			next.Layout = *patch.Layout
			diff = true
		}
		if patch.Visibility != nil && !sameVisibility(cur.Visibility, patch.Visibility) {
			v := *patch.Visibility
			v.Roles = slices.Clone(v.Roles)
			v.Locale = slices.Clone(v.Locale)
			next.Visibility = &v
			diff = true
		}
		if !diff {
			return false
		}
		sections := slices.Clone(e.sections)
		sections[i] = next
		e.sections = sections
		return true
	})
	return changed, err
}

func sameVisibility(a, b *lessonkit.Visibility) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.Locale, b.Locale) && slices.Equal(a.Roles, b.Roles)
}

func (e *Editor) validRef(ref Ref) bool {
	return ref.Section >= 0 && ref.Section < len(e.sections) &&
		ref.Block >= 0 && ref.Block < len(e.sections[ref.Section].Blocks)
}

// withBlocks returns a new sections slice where section i has blocks and
// every other section is shared.
func (e *Editor) withBlocks(i int, blocks []lessonkit.BlockNode) []lessonkit.Section {
	sections := slices.Clone(e.sections)
	sections[i].Blocks = blocks
	return sections
}

func cloneBlocks(b []lessonkit.BlockNode) []lessonkit.BlockNode {
	if b == nil {
		return []lessonkit.BlockNode{}
	}
	return slices.Clone(b)
}
