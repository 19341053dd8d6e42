// Package view turns the children of a tree node into an ordered list of
// display rows.
package view

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"duview/internal/tree"
	"duview/pkg/utils"
)

// SortMode orders the entries of a view.
type SortMode int

const (
	SizeDescending SortMode = iota
	SizeAscending
	NameAscending
	NameDescending
	CountDescending
	CountAscending
	MTimeDescending
	MTimeAscending
)

func (m SortMode) String() string {
	switch m {
	case SizeAscending:
		return "size ↑"
	case NameAscending:
		return "name ↑"
	case NameDescending:
		return "name ↓"
	case CountDescending:
		return "count ↓"
	case CountAscending:
		return "count ↑"
	case MTimeDescending:
		return "mtime ↓"
	case MTimeAscending:
		return "mtime ↑"
	default:
		return "size ↓"
	}
}

// Each toggle switches to its field, or flips the direction when the field is
// already active.

func (m SortMode) ToggleSize() SortMode {
	if m == SizeDescending {
		return SizeAscending
	}
	return SizeDescending
}

func (m SortMode) ToggleName() SortMode {
	if m == NameAscending {
		return NameDescending
	}
	return NameAscending
}

func (m SortMode) ToggleCount() SortMode {
	if m == CountDescending {
		return CountAscending
	}
	return CountDescending
}

func (m SortMode) ToggleMTime() SortMode {
	if m == MTimeDescending {
		return MTimeAscending
	}
	return MTimeDescending
}

// EntryDataBundle is a display-time snapshot of one entry.
type EntryDataBundle struct {
	Index      tree.Index
	Name       string
	Path       string
	Kind       tree.Kind
	Size       int64 // aggregated
	Count      int64
	ModTime    time.Time
	Percentage float64 // of the view root's aggregate, 0..100
	IOError    bool
}

// IsDir reports whether the row can be entered.
func (b EntryDataBundle) IsDir() bool { return b.Kind == tree.KindDir }

// Filter restricts a view to entries matching a glob pattern. It remembers
// which children it kept for the last view root and tree generation, so a
// Filter reused across refreshes only walks the tree after a change.
type Filter struct {
	Pattern string

	key  filterKey
	keep map[tree.Index]bool
}

type filterKey struct {
	tree    *tree.Tree
	root    tree.Index
	gen     uint64
	pattern string
}

// Matches reports whether the entry at path matches the pattern by full path
// or base name.
func (f *Filter) Matches(path string) bool {
	return utils.MatchGlob(f.Pattern, path)
}

// SortedEntries returns the direct children of viewRoot ordered by mode. With
// a filter only children that match, or directories holding a match, are
// kept. An unknown viewRoot yields no entries.
func SortedEntries(t *tree.Tree, viewRoot tree.Index, mode SortMode, filter *Filter) []EntryDataBundle {
	root, children, ok := t.Children(viewRoot)
	if !ok {
		return nil
	}
	base := t.Path(viewRoot)
	var keep map[tree.Index]bool
	if filter != nil {
		keep = filter.kept(t, viewRoot)
	}

	out := make([]EntryDataBundle, 0, len(children))
	for _, c := range children {
		if filter != nil && !keep[c.Index] {
			continue
		}
		p := filepath.Join(base, c.Name)
		var pct float64
		if root.Aggregate > 0 {
			pct = float64(c.Aggregate) / float64(root.Aggregate) * 100
		}
		out = append(out, EntryDataBundle{
			Index:      c.Index,
			Name:       c.Name,
			Path:       p,
			Kind:       c.Kind,
			Size:       c.Aggregate,
			Count:      c.Count,
			ModTime:    c.ModTime,
			Percentage: pct,
			IOError:    c.IOError,
		})
	}
	sortBundles(out, mode)
	return out
}

// kept collects the children of viewRoot that match or hold a match, in a
// single walk below viewRoot.
func (f *Filter) kept(t *tree.Tree, viewRoot tree.Index) map[tree.Index]bool {
	key := filterKey{tree: t, root: viewRoot, gen: t.Generation(), pattern: f.Pattern}
	if f.keep != nil && f.key == key {
		return f.keep
	}
	keep := make(map[tree.Index]bool)
	top := tree.Invalid
	t.Walk(viewRoot, func(e tree.Entry, p string) bool {
		switch {
		case e.Index == viewRoot:
			return true
		case e.Parent == viewRoot:
			top = e.Index
		case keep[top]:
			return false
		}
		if f.Matches(p) {
			keep[top] = true
			return false
		}
		return true
	})
	f.key, f.keep = key, keep
	return keep
}

func sortBundles(out []EntryDataBundle, mode SortMode) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch mode {
		case SizeDescending:
			if a.Size != b.Size {
				return a.Size > b.Size
			}
		case SizeAscending:
			if a.Size != b.Size {
				return a.Size < b.Size
			}
		case NameDescending:
			if c := strings.Compare(a.Name, b.Name); c != 0 {
				return c > 0
			}
		case CountDescending:
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		case CountAscending:
			if a.Count != b.Count {
				return a.Count < b.Count
			}
		case MTimeDescending:
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.After(b.ModTime)
			}
		case MTimeAscending:
			if !a.ModTime.Equal(b.ModTime) {
				return a.ModTime.Before(b.ModTime)
			}
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Index < b.Index
	})
}
