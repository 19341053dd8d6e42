package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"duview/internal/tree"
	"duview/internal/view"
)

func bundles(idx ...tree.Index) []view.EntryDataBundle {
	out := make([]view.EntryDataBundle, len(idx))
	for i, x := range idx {
		out[i] = view.EntryDataBundle{Index: x, Path: "/p/" + string(rune('a'+i))}
	}
	return out
}

func TestNavigation_EmptyViewHasNoSelection(t *testing.T) {
	n := NewNavigation(0, nil)
	assert.Equal(t, tree.Invalid, n.Selected)
	n.MoveSelection(1, nil)
	assert.Equal(t, tree.Invalid, n.Selected)
	assert.Equal(t, -1, n.Cursor(nil))
}

func TestNavigation_MoveSelectionClamps(t *testing.T) {
	entries := bundles(4, 7, 9)
	n := NewNavigation(0, entries)
	assert.Equal(t, tree.Index(4), n.Selected)

	n.MoveSelection(-1, entries)
	assert.Equal(t, tree.Index(4), n.Selected)
	n.MoveSelection(10, entries)
	assert.Equal(t, tree.Index(9), n.Selected)
	n.MoveSelection(-1, entries)
	assert.Equal(t, tree.Index(7), n.Selected)
	assert.Equal(t, 1, n.Cursor(entries))
}

func TestNavigation_EnterLeave(t *testing.T) {
	n := NewNavigation(0, bundles(1, 2))
	n.Selected = 2
	n.Enter(2, bundles(5, 6))
	assert.Equal(t, tree.Index(2), n.ViewRoot)
	assert.Equal(t, tree.Index(5), n.Selected)

	assert.True(t, n.Leave())
	assert.Equal(t, tree.Index(0), n.ViewRoot)
	assert.Equal(t, tree.Index(2), n.Selected)
	assert.False(t, n.Leave())
	assert.Equal(t, tree.Index(0), n.ViewRoot)
}

func TestNavigation_EnterEmptyDirectory(t *testing.T) {
	n := NewNavigation(0, bundles(1))
	n.Enter(1, nil)
	assert.Equal(t, tree.Invalid, n.Selected)
	assert.True(t, n.Leave())
	assert.Equal(t, tree.Index(1), n.Selected)
}

func TestNavigation_RestoreSelection(t *testing.T) {
	entries := []view.EntryDataBundle{
		{Index: 10, Path: "/r/a"},
		{Index: 11, Path: "/r/b"},
		{Index: 12, Path: "/r/c"},
	}
	tests := []struct {
		name  string
		path  string
		index tree.Index
		want  tree.Index
	}{
		{"by path", "/r/c", 99, 12},
		{"by index", "/r/gone", 11, 11},
		{"first", "/r/gone", 99, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNavigation(0, nil)
			n.RestoreSelection(tt.path, tt.index, entries)
			assert.Equal(t, tt.want, n.Selected)
		})
	}

	n := NewNavigation(0, nil)
	n.RestoreSelection("/r/a", 10, nil)
	assert.Equal(t, tree.Invalid, n.Selected)
}

func TestNavigation_PruneDropsRemovedViews(t *testing.T) {
	tr := tree.New("r")
	a, _ := tr.AddNode(tree.EntryData{Name: "a", Kind: tree.KindDir}, tr.Root())
	b, _ := tr.AddNode(tree.EntryData{Name: "b", Kind: tree.KindDir}, a)

	n := NewNavigation(tr.Root(), nil)
	n.JumpTo(a, b)
	n.JumpTo(b, tree.Invalid)
	assert.Equal(t, 2, n.Depth())

	assert.NoError(t, tr.RemoveSubtree(a))
	n.prune(tr)
	assert.Equal(t, 1, n.Depth())
	assert.True(t, n.Leave())
	assert.Equal(t, tr.Root(), n.ViewRoot)
}
