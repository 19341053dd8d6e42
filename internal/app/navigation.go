package app

import (
	"duview/internal/tree"
	"duview/internal/view"
)

type historyItem struct {
	viewRoot tree.Index
	selected tree.Index
}

// Navigation is the cursor over one view of the tree.
type Navigation struct {
	ViewRoot tree.Index
	Selected tree.Index // tree.Invalid when the view is empty
	history  []historyItem
}

// NewNavigation starts at root with the first of entries selected.
func NewNavigation(root tree.Index, entries []view.EntryDataBundle) Navigation {
	return Navigation{ViewRoot: root, Selected: first(entries)}
}

func first(entries []view.EntryDataBundle) tree.Index {
	if len(entries) == 0 {
		return tree.Invalid
	}
	return entries[0].Index
}

func position(entries []view.EntryDataBundle, idx tree.Index) int {
	for i, e := range entries {
		if e.Index == idx {
			return i
		}
	}
	return -1
}

// Depth is the number of views that Leave can return to.
func (n *Navigation) Depth() int { return len(n.history) }

// Enter makes index the view root; entries are its children.
func (n *Navigation) Enter(index tree.Index, entries []view.EntryDataBundle) {
	n.history = append(n.history, historyItem{viewRoot: n.ViewRoot, selected: n.Selected})
	n.ViewRoot = index
	n.Selected = first(entries)
}

// JumpTo behaves like Enter but selects a specific entry of the new view.
func (n *Navigation) JumpTo(viewRoot, selected tree.Index) {
	n.history = append(n.history, historyItem{viewRoot: n.ViewRoot, selected: n.Selected})
	n.ViewRoot = viewRoot
	n.Selected = selected
}

// Leave returns to the previous view. It reports false at the top.
func (n *Navigation) Leave() bool {
	if len(n.history) == 0 {
		return false
	}
	last := n.history[len(n.history)-1]
	n.history = n.history[:len(n.history)-1]
	n.ViewRoot, n.Selected = last.viewRoot, last.selected
	return true
}

// MoveSelection shifts the selection by delta rows, clamped to entries.
func (n *Navigation) MoveSelection(delta int, entries []view.EntryDataBundle) {
	if len(entries) == 0 {
		n.Selected = tree.Invalid
		return
	}
	pos := position(entries, n.Selected)
	if pos < 0 {
		n.Selected = entries[0].Index
		return
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(entries) {
		pos = len(entries) - 1
	}
	n.Selected = entries[pos].Index
}

// RestoreSelection selects the entry at path, then the entry at index, then
// the first entry.
func (n *Navigation) RestoreSelection(path string, index tree.Index, entries []view.EntryDataBundle) {
	for _, e := range entries {
		if e.Path == path {
			n.Selected = e.Index
			return
		}
	}
	if position(entries, index) >= 0 {
		n.Selected = index
		return
	}
	n.Selected = first(entries)
}

// EnsureValid falls back to the first entry when the selection is not part of
// entries.
func (n *Navigation) EnsureValid(entries []view.EntryDataBundle) {
	if position(entries, n.Selected) < 0 {
		n.Selected = first(entries)
	}
}

// SelectedIn returns the selected row of entries.
func (n *Navigation) SelectedIn(entries []view.EntryDataBundle) (view.EntryDataBundle, bool) {
	if pos := position(entries, n.Selected); pos >= 0 {
		return entries[pos], true
	}
	return view.EntryDataBundle{}, false
}

// Cursor is the row of the selection in entries, or -1.
func (n *Navigation) Cursor(entries []view.EntryDataBundle) int {
	return position(entries, n.Selected)
}

// prune drops history items whose view roots no longer exist.
func (n *Navigation) prune(t *tree.Tree) {
	kept := n.history[:0]
	for _, h := range n.history {
		if t.Contains(h.viewRoot) {
			kept = append(kept, h)
		}
	}
	n.history = kept
}
