// Package tree holds the arena of discovered filesystem entries and their
// aggregated sizes. All methods are safe for concurrent use.
package tree

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Index addresses an entry in the arena. Indices are never reused.
type Index int

// Invalid is the index of no entry.
const Invalid Index = -1

var (
	ErrNoSuchNode  = errors.New("tree: no such node")
	ErrRootRemoval = errors.New("tree: cannot remove root")
)

// Kind classifies an entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindError:
		return "error"
	default:
		return "file"
	}
}

// EntryData is what the walker knows about an entry when inserting it.
type EntryData struct {
	Name    string
	Kind    Kind
	Size    int64
	ModTime time.Time
	IOError bool
}

// Entry is a read-only copy of a node.
type Entry struct {
	EntryData
	Index     Index
	Parent    Index
	Aggregate int64 // own size plus the aggregate of every child
	Count     int64 // entries in the subtree, itself included
}

// IsDir reports whether the entry can have children.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

type node struct {
	data      EntryData
	own       time.Time // ModTime as inserted, before children raised it
	parent    Index
	aggregate int64
	count     int64
	children  []Index
}

// Tree is the arena. The zero value is not usable; call New.
type Tree struct {
	mu    sync.RWMutex
	nodes []*node
	live  int
	gen   atomic.Uint64
}

// New returns a tree holding a single directory root.
func New(rootName string) *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, &node{
		data:   EntryData{Name: rootName, Kind: KindDir},
		parent: Invalid,
		count:  1,
	})
	t.live = 1
	return t
}

// Root is always index 0.
func (t *Tree) Root() Index { return 0 }

// Generation changes whenever the tree is mutated.
func (t *Tree) Generation() uint64 { return t.gen.Load() }

// Len returns the number of live entries, the root included.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

func (t *Tree) get(i Index) *node {
	if i < 0 || int(i) >= len(t.nodes) {
		return nil
	}
	return t.nodes[i]
}

func (t *Tree) snapshot(i Index, n *node) Entry {
	return Entry{
		EntryData: n.data,
		Index:     i,
		Parent:    n.parent,
		Aggregate: n.aggregate,
		Count:     n.count,
	}
}

// AddNode inserts data below parent and propagates its size up the parent
// chain. Directories contribute no own size.
func (t *Tree) AddNode(data EntryData, parent Index) (Index, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.get(parent)
	if p == nil {
		return Invalid, ErrNoSuchNode
	}
	if data.Kind != KindFile {
		data.Size = 0
	}
	idx := Index(len(t.nodes))
	t.nodes = append(t.nodes, &node{
		data:      data,
		own:       data.ModTime,
		parent:    parent,
		aggregate: data.Size,
		count:     1,
	})
	p.children = append(p.children, idx)
	t.live++

	for a := parent; a != Invalid; {
		n := t.nodes[a]
		n.aggregate += data.Size
		n.count++
		if data.ModTime.After(n.data.ModTime) {
			n.data.ModTime = data.ModTime
		}
		a = n.parent
	}
	t.gen.Add(1)
	return idx, nil
}

// Contains reports whether i refers to a live entry.
func (t *Tree) Contains(i Index) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.get(i) != nil
}

// Entry returns a copy of entry i.
func (t *Tree) Entry(i Index) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.get(i)
	if n == nil {
		return Entry{}, false
	}
	return t.snapshot(i, n), true
}

// ChildrenOf returns a copy of i's child list in discovery order.
func (t *Tree) ChildrenOf(i Index) []Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.get(i)
	if n == nil {
		return nil
	}
	out := make([]Index, len(n.children))
	copy(out, n.children)
	return out
}

// Children returns entry i and copies of its children, taken under a single
// read lock so the aggregates agree with each other.
func (t *Tree) Children(i Index) (Entry, []Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.get(i)
	if n == nil {
		return Entry{}, nil, false
	}
	out := make([]Entry, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, t.snapshot(c, t.nodes[c]))
	}
	return t.snapshot(i, n), out, true
}

// Walk visits i and its descendants depth-first with their full paths.
// Returning false from fn skips the entry's children.
func (t *Tree) Walk(i Index, fn func(e Entry, path string) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.get(i) == nil {
		return
	}
	t.walk(i, t.path(i), fn)
}

func (t *Tree) walk(i Index, p string, fn func(Entry, string) bool) {
	n := t.nodes[i]
	if !fn(t.snapshot(i, n), p) {
		return
	}
	for _, c := range n.children {
		t.walk(c, filepath.Join(p, t.nodes[c].data.Name), fn)
	}
}

// Path joins the names from the root down to i. The root's name is usually
// the scanned directory; a nameless root yields paths rooted at its
// children's names.
func (t *Tree) Path(i Index) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.path(i)
}

func (t *Tree) path(i Index) string {
	var names []string
	for n := t.get(i); n != nil; n = t.get(n.parent) {
		names = append(names, n.data.Name)
	}
	for l, r := 0, len(names)-1; l < r; l, r = l+1, r-1 {
		names[l], names[r] = names[r], names[l]
	}
	return filepath.Join(names...)
}

// SetName renames entry i.
func (t *Tree) SetName(i Index, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.get(i)
	if n == nil {
		return ErrNoSuchNode
	}
	n.data.Name = name
	t.gen.Add(1)
	return nil
}

// SetIOError flags entry i as not fully readable.
func (t *Tree) SetIOError(i Index) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.get(i)
	if n == nil {
		return ErrNoSuchNode
	}
	n.data.IOError = true
	t.gen.Add(1)
	return nil
}

// RemoveSubtree detaches i from its parent, retires i and every descendant,
// and subtracts i's aggregate from all ancestors.
func (t *Tree) RemoveSubtree(i Index) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.get(i)
	if n == nil {
		return ErrNoSuchNode
	}
	if n.parent == Invalid {
		return ErrRootRemoval
	}
	p := t.nodes[n.parent]
	for k, c := range p.children {
		if c == i {
			p.children = append(p.children[:k], p.children[k+1:]...)
			break
		}
	}
	for a := n.parent; a != Invalid; a = t.nodes[a].parent {
		t.nodes[a].aggregate -= n.aggregate
		t.nodes[a].count -= n.count
	}
	t.retire(i)
	t.settleModTimes(n.parent)
	t.gen.Add(1)
	return nil
}

// RemoveChildren removes every child of i, leaving i itself in place.
func (t *Tree) RemoveChildren(i Index) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.get(i)
	if n == nil {
		return ErrNoSuchNode
	}
	for _, c := range n.children {
		t.retire(c)
	}
	n.children = nil
	removedSize, removedCount := n.aggregate-n.data.Size, n.count-1
	for a := i; a != Invalid; a = t.nodes[a].parent {
		t.nodes[a].aggregate -= removedSize
		t.nodes[a].count -= removedCount
	}
	n.data.IOError = false
	t.settleModTimes(i)
	t.gen.Add(1)
	return nil
}

// settleModTimes recomputes ModTime from i upwards as the newest of the
// entry's own time and its remaining children, stopping at the first
// ancestor that does not change.
func (t *Tree) settleModTimes(i Index) {
	for a := i; a != Invalid; a = t.nodes[a].parent {
		n := t.nodes[a]
		newest := n.own
		for _, c := range n.children {
			if m := t.nodes[c].data.ModTime; m.After(newest) {
				newest = m
			}
		}
		if newest.Equal(n.data.ModTime) {
			return
		}
		n.data.ModTime = newest
	}
}

func (t *Tree) retire(i Index) {
	stack := []Index{i}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[cur]
		stack = append(stack, n.children...)
		t.nodes[cur] = nil
		t.live--
	}
}
