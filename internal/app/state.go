// Package app holds the interactive state machine: navigation over the tree,
// marks, sort mode, the focused pane and the lifecycle of background scans.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"duview/internal/deleter"
	"duview/internal/scanner"
	"duview/internal/tree"
	"duview/internal/view"
	"duview/pkg/utils"
)

// FocusedPane decides which keymap handles input.
type FocusedPane int

const (
	PaneMain FocusedPane = iota
	PaneHelp
	PaneMark
	PaneGlob
)

func (p FocusedPane) String() string {
	switch p {
	case PaneHelp:
		return "help"
	case PaneMark:
		return "mark"
	case PaneGlob:
		return "glob"
	default:
		return "main"
	}
}

// Column is an optional column of the entry list.
type Column int

const (
	ColumnCount Column = iota
	ColumnMTime
)

// globRefreshInterval bounds how often a filtered view is recomputed while a
// scan keeps changing the tree.
const globRefreshInterval = time.Second

// TickMsg drives periodic scan polling and redraws.
type TickMsg time.Time

// DeleteProgressMsg reports one finished deletion target.
type DeleteProgressMsg struct {
	Progress deleter.Progress
}

// DeleteDoneMsg carries the outcome of a deletion run.
type DeleteDoneMsg struct {
	Summary deleter.Summary
}

// Outcome tells the event loop what to do after an event.
type Outcome struct {
	Exit   bool
	Result scanner.WalkResult
	Delete []deleter.Target
	Cmd    tea.Cmd
}

// MarkedEntry is an entry pending deletion.
type MarkedEntry struct {
	Index tree.Index
	Path  string
	Size  int64
	IsDir bool
}

type selectionAnchor struct {
	path     string
	index    tree.Index
	viewRoot tree.Index
}

// FilesystemScan exists while a traversal is in flight.
type FilesystemScan struct {
	Traversal *scanner.Traversal
	previous  *selectionAnchor
	baseline  scanner.Stats
}

// AppState is the whole interactive state. It is owned by the event loop and
// never touched from other goroutines.
type AppState struct {
	Navigation     Navigation
	GlobNavigation *Navigation
	Entries        []view.EntryDataBundle
	Sorting        view.SortMode
	ShowColumns    map[Column]bool
	Message        string
	Focused        FocusedPane
	Scan           *FilesystemScan
	Stats          scanner.Stats
	Marked         map[tree.Index]MarkedEntry
	MarkCursor     int
	Deleting       bool
	GlobInput      textinput.Model
	Keys           KeyMap
	Format         utils.ByteFormat
	Width, Height  int

	ctx        context.Context
	tree       *tree.Tree
	walker     *scanner.Walker
	log        *zap.Logger
	generation uint64

	glob          view.Filter
	globRefreshed time.Time
}

// New builds the state for an already constructed tree and walker.
func New(ctx context.Context, t *tree.Tree, w *scanner.Walker, log *zap.Logger) *AppState {
	if log == nil {
		log = zap.NewNop()
	}
	in := textinput.New()
	in.Prompt = "glob: "
	in.Placeholder = "*.log"

	s := &AppState{
		ShowColumns: map[Column]bool{},
		Marked:      map[tree.Index]MarkedEntry{},
		GlobInput:   in,
		Keys:        DefaultKeyMap(),
		ctx:         ctx,
		tree:        t,
		walker:      w,
		log:         log,
	}
	s.Navigation = NewNavigation(t.Root(), nil)
	s.refreshEntries()
	return s
}

// Tree is the tree the state navigates.
func (s *AppState) Tree() *tree.Tree { return s.tree }

// ActiveNavigation is the glob navigation while glob mode is open, otherwise
// the main one.
func (s *AppState) ActiveNavigation() *Navigation {
	if s.GlobNavigation != nil {
		return s.GlobNavigation
	}
	return &s.Navigation
}

// Cursor is the row index of the active selection, or -1.
func (s *AppState) Cursor() int {
	return s.ActiveNavigation().Cursor(s.Entries)
}

// IsScanning reports whether a traversal is in flight.
func (s *AppState) IsScanning() bool { return s.Scan != nil }

// MarkedList returns the marked entries ordered by path.
func (s *AppState) MarkedList() []MarkedEntry {
	out := make([]MarkedEntry, 0, len(s.Marked))
	for _, m := range s.Marked {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ProcessEvent applies one input event.
func (s *AppState) ProcessEvent(msg tea.Msg) Outcome {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s.Message = ""
		if key.Matches(msg, s.Keys.ForceQuit) {
			return s.exit()
		}
		switch s.Focused {
		case PaneHelp:
			return s.handleHelp(msg)
		case PaneMark:
			return s.handleMark(msg)
		case PaneGlob:
			return s.handleGlob(msg)
		default:
			return s.handleMain(msg)
		}
	case tea.WindowSizeMsg:
		s.Width, s.Height = msg.Width, msg.Height
	case TickMsg:
		s.Tick()
	case DeleteProgressMsg:
		s.Message = fmt.Sprintf("Deleting %d/%d…", msg.Progress.Completed, msg.Progress.Total)
	case DeleteDoneMsg:
		s.ApplyDeletion(msg.Summary)
	default:
		if s.Focused == PaneGlob {
			var cmd tea.Cmd
			s.GlobInput, cmd = s.GlobInput.Update(msg)
			return Outcome{Cmd: cmd}
		}
	}
	return Outcome{}
}

// Traverse starts a scan that refills target. The current entries stay on
// screen until the next tick.
func (s *AppState) Traverse(target tree.Index) error {
	if s.Scan != nil {
		return scanner.ErrAlreadyRunning
	}
	roots := s.walker.Options().Roots
	if target != s.tree.Root() {
		roots = []string{s.tree.Path(target)}
	}

	var anchor *selectionAnchor
	if s.GlobNavigation == nil {
		if sel, ok := s.Navigation.SelectedIn(s.Entries); ok {
			anchor = &selectionAnchor{path: sel.Path, index: sel.Index, viewRoot: s.Navigation.ViewRoot}
		}
	}

	// errors found inside target are about to be found again
	baseline := s.Stats
	baseline.IOErrors -= s.errorsBelow(target)
	if baseline.IOErrors < 0 {
		baseline.IOErrors = 0
	}

	t, err := s.walker.Start(s.ctx, target, roots)
	if err != nil {
		return err
	}
	s.Scan = &FilesystemScan{Traversal: t, previous: anchor, baseline: baseline}
	return nil
}

// errorsBelow counts the entries flagged with an io error in target's subtree,
// target included.
func (s *AppState) errorsBelow(target tree.Index) int64 {
	var n int64
	s.tree.Walk(target, func(e tree.Entry, _ string) bool {
		if e.IOError {
			n++
		}
		return true
	})
	return n
}

// Tick merges scan progress, refreshes entries after tree changes and
// finishes a completed scan.
func (s *AppState) Tick() {
	scan := s.Scan
	if scan == nil {
		if s.tree.Generation() != s.generation {
			s.refreshEntries()
		}
		return
	}
	select {
	case <-scan.Traversal.Done():
		s.finishScan()
		return
	default:
	}
	s.mergeStats(scan.Traversal.Poll())
	if s.tree.Generation() != s.generation && !s.globRefreshDeferred() {
		s.refreshEntries()
	}
}

// globRefreshDeferred reports whether a filtered view may keep its current
// rows for now. The rows are recomputed at least every globRefreshInterval,
// and at once when the selection or the view root disappeared.
func (s *AppState) globRefreshDeferred() bool {
	g := s.GlobNavigation
	if g == nil || time.Since(s.globRefreshed) >= globRefreshInterval {
		return false
	}
	if !s.tree.Contains(g.ViewRoot) {
		return false
	}
	return g.Selected == tree.Invalid || s.tree.Contains(g.Selected)
}

func (s *AppState) finishScan() {
	scan := s.Scan
	scan.Traversal.Join()
	s.mergeStats(scan.Traversal.Poll())
	s.Scan = nil
	s.refreshEntries()
	if a := scan.previous; a != nil && s.GlobNavigation == nil && s.Navigation.ViewRoot == a.viewRoot {
		s.Navigation.RestoreSelection(a.path, a.index, s.Entries)
	}
	s.log.Info("scan complete",
		zap.Int64("entries", s.Stats.EntriesTraversed),
		zap.Int64("io_errors", s.Stats.IOErrors),
	)
}

func (s *AppState) mergeStats(snap scanner.Stats) {
	base := s.Scan.baseline
	s.Stats = scanner.Stats{
		EntriesTraversed: snap.EntriesTraversed,
		TotalBytes:       snap.TotalBytes,
		Elapsed:          snap.Elapsed,
		IOErrors:         base.IOErrors + snap.IOErrors,
	}
}

// Quit cancels and joins an active scan and returns the final error count.
func (s *AppState) Quit() scanner.WalkResult {
	if scan := s.Scan; scan != nil {
		scan.Traversal.Cancel()
		scan.Traversal.Join()
		s.mergeStats(scan.Traversal.Poll())
		s.Scan = nil
	}
	return scanner.WalkResult{NumErrors: s.Stats.IOErrors}
}

func (s *AppState) exit() Outcome {
	return Outcome{Exit: true, Result: s.Quit()}
}

// ApplyDeletion removes every successfully deleted entry from the tree and
// counts every failure; failed entries stay in place.
func (s *AppState) ApplyDeletion(sum deleter.Summary) {
	s.Deleting = false
	for _, t := range sum.Successes {
		if err := s.tree.RemoveSubtree(t.Index); err != nil && !errors.Is(err, tree.ErrNoSuchNode) {
			s.log.Warn("remove deleted entry", zap.String("path", t.Path), zap.Error(err))
		}
	}
	for _, f := range sum.Failures {
		s.Stats.IOErrors++
		if s.Scan != nil {
			s.Scan.baseline.IOErrors++
		}
		s.log.Warn("delete failed", zap.String("path", f.Target.Path), zap.Error(f.Err))
	}
	total := len(sum.Successes) + len(sum.Failures)
	if len(sum.Failures) > 0 {
		s.Message = fmt.Sprintf("%d of %d deletions failed (first: %s: %v)",
			len(sum.Failures), total, sum.Failures[0].Target.Path, sum.Failures[0].Err)
	} else {
		s.Message = fmt.Sprintf("Deleted %d entries, freed %s", total, s.Format.Format(sum.Freed))
	}
	s.refreshEntries()
}

// refreshEntries recomputes the displayed list for the active navigation.
func (s *AppState) refreshEntries() {
	s.generation = s.tree.Generation()
	s.recover(&s.Navigation)
	if g := s.GlobNavigation; g != nil {
		s.recover(g)
		s.Entries = view.SortedEntries(s.tree, g.ViewRoot, s.Sorting, s.globFilter())
		g.EnsureValid(s.Entries)
		s.globRefreshed = time.Now()
	} else {
		s.Entries = view.SortedEntries(s.tree, s.Navigation.ViewRoot, s.Sorting, nil)
		s.Navigation.EnsureValid(s.Entries)
	}
	for idx := range s.Marked {
		if !s.tree.Contains(idx) {
			delete(s.Marked, idx)
		}
	}
	s.clampMarkCursor()
}

// recover walks n back up to a view root that still exists.
func (s *AppState) recover(n *Navigation) {
	if s.tree.Contains(n.ViewRoot) {
		return
	}
	n.prune(s.tree)
	if !n.Leave() {
		n.ViewRoot = s.tree.Root()
	}
}

func (s *AppState) globFilter() *view.Filter {
	if s.GlobInput.Value() == "" {
		return nil
	}
	s.glob.Pattern = s.GlobInput.Value()
	return &s.glob
}

func (s *AppState) clampMarkCursor() {
	if s.MarkCursor >= len(s.Marked) {
		s.MarkCursor = len(s.Marked) - 1
	}
	if s.MarkCursor < 0 {
		s.MarkCursor = 0
	}
}

func (s *AppState) pageSize() int {
	if s.Height <= 0 {
		return 10
	}
	if n := s.Height - 6; n > 1 {
		return n
	}
	return 1
}
