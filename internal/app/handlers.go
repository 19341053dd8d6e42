package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"duview/internal/deleter"
	"duview/internal/scanner"
	"duview/internal/tree"
	"duview/internal/view"
)

func (s *AppState) handleMain(msg tea.KeyMsg) Outcome {
	k := s.Keys.Main
	nav := &s.Navigation
	switch {
	case key.Matches(msg, k.Quit):
		return s.exit()
	case key.Matches(msg, k.Help):
		s.Focused = PaneHelp
	case key.Matches(msg, k.Up):
		nav.MoveSelection(-1, s.Entries)
	case key.Matches(msg, k.Down):
		nav.MoveSelection(1, s.Entries)
	case key.Matches(msg, k.PageUp):
		nav.MoveSelection(-s.pageSize(), s.Entries)
	case key.Matches(msg, k.PageDown):
		nav.MoveSelection(s.pageSize(), s.Entries)
	case key.Matches(msg, k.Home):
		nav.MoveSelection(-len(s.Entries), s.Entries)
	case key.Matches(msg, k.End):
		nav.MoveSelection(len(s.Entries), s.Entries)
	case key.Matches(msg, k.Enter):
		s.enterSelected(nav, nil)
	case key.Matches(msg, k.Leave):
		if nav.Depth() == 0 {
			s.Message = "Already at the top"
			break
		}
		nav.Leave()
		s.refreshEntries()
	case key.Matches(msg, k.SortSize):
		s.resort(s.Sorting.ToggleSize())
	case key.Matches(msg, k.SortName):
		s.resort(s.Sorting.ToggleName())
	case key.Matches(msg, k.SortCount):
		s.resort(s.Sorting.ToggleCount())
	case key.Matches(msg, k.SortMTime):
		s.resort(s.Sorting.ToggleMTime())
	case key.Matches(msg, k.ToggleCount):
		s.ShowColumns[ColumnCount] = !s.ShowColumns[ColumnCount]
	case key.Matches(msg, k.ToggleMTime):
		s.ShowColumns[ColumnMTime] = !s.ShowColumns[ColumnMTime]
	case key.Matches(msg, k.Mark):
		if sel, ok := nav.SelectedIn(s.Entries); ok {
			s.toggleMark(sel)
			nav.MoveSelection(1, s.Entries)
		}
	case key.Matches(msg, k.FocusMarks):
		if len(s.Marked) > 0 {
			s.Focused = PaneMark
			s.clampMarkCursor()
		}
	case key.Matches(msg, k.Glob):
		return s.openGlob()
	case key.Matches(msg, k.Refresh):
		sel, ok := nav.SelectedIn(s.Entries)
		if !ok || !sel.IsDir() {
			s.Message = "Select a directory to rescan"
			break
		}
		s.rescan(sel.Index)
	case key.Matches(msg, k.RefreshView):
		s.rescan(nav.ViewRoot)
	}
	return Outcome{}
}

func (s *AppState) handleHelp(msg tea.KeyMsg) Outcome {
	if key.Matches(msg, s.Keys.Help.Close) {
		s.Focused = PaneMain
	}
	return Outcome{}
}

func (s *AppState) handleMark(msg tea.KeyMsg) Outcome {
	k := s.Keys.Mark
	switch {
	case key.Matches(msg, k.Up):
		s.MarkCursor--
		s.clampMarkCursor()
	case key.Matches(msg, k.Down):
		s.MarkCursor++
		s.clampMarkCursor()
	case key.Matches(msg, k.Toggle):
		list := s.MarkedList()
		if s.MarkCursor < len(list) {
			delete(s.Marked, list[s.MarkCursor].Index)
		}
		s.clampMarkCursor()
		if len(s.Marked) == 0 {
			s.Focused = PaneMain
		}
	case key.Matches(msg, k.Confirm):
		return s.confirmDeletion()
	case key.Matches(msg, k.Back):
		s.Focused = PaneMain
	case key.Matches(msg, k.Cancel):
		s.Marked = map[tree.Index]MarkedEntry{}
		s.MarkCursor = 0
		s.Focused = PaneMain
	}
	return Outcome{}
}

func (s *AppState) handleGlob(msg tea.KeyMsg) Outcome {
	k := s.Keys.Glob
	g := s.GlobNavigation
	if g == nil {
		s.Focused = PaneMain
		return Outcome{}
	}
	switch {
	case key.Matches(msg, k.Cancel):
		s.closeGlob()
	case key.Matches(msg, k.Up):
		g.MoveSelection(-1, s.Entries)
	case key.Matches(msg, k.Down):
		g.MoveSelection(1, s.Entries)
	case key.Matches(msg, k.Back):
		if g.Leave() {
			s.refreshEntries()
		}
	case key.Matches(msg, k.Confirm):
		sel, ok := g.SelectedIn(s.Entries)
		if !ok {
			break
		}
		filter := s.globFilter()
		if sel.IsDir() && (filter == nil || !filter.Matches(sel.Path)) {
			s.enterSelected(g, filter)
			break
		}
		if g.ViewRoot == s.Navigation.ViewRoot {
			s.Navigation.Selected = sel.Index
		} else {
			s.Navigation.JumpTo(g.ViewRoot, sel.Index)
		}
		s.closeGlob()
	default:
		var cmd tea.Cmd
		before := s.GlobInput.Value()
		s.GlobInput, cmd = s.GlobInput.Update(msg)
		if s.GlobInput.Value() != before {
			s.refreshEntries()
		}
		return Outcome{Cmd: cmd}
	}
	return Outcome{}
}

func (s *AppState) enterSelected(nav *Navigation, filter *view.Filter) {
	sel, ok := nav.SelectedIn(s.Entries)
	if !ok || !sel.IsDir() {
		return
	}
	entries := view.SortedEntries(s.tree, sel.Index, s.Sorting, filter)
	nav.Enter(sel.Index, entries)
	s.refreshEntries()
}

func (s *AppState) resort(mode view.SortMode) {
	s.Sorting = mode
	s.refreshEntries()
}

func (s *AppState) toggleMark(sel view.EntryDataBundle) {
	if _, ok := s.Marked[sel.Index]; ok {
		delete(s.Marked, sel.Index)
		s.clampMarkCursor()
		return
	}
	s.Marked[sel.Index] = MarkedEntry{Index: sel.Index, Path: sel.Path, Size: sel.Size, IsDir: sel.IsDir()}
}

func (s *AppState) openGlob() Outcome {
	s.GlobInput.Reset()
	cmd := s.GlobInput.Focus()
	s.GlobNavigation = &Navigation{ViewRoot: s.Navigation.ViewRoot, Selected: tree.Invalid}
	s.Focused = PaneGlob
	s.refreshEntries()
	return Outcome{Cmd: tea.Batch(cmd, textinput.Blink)}
}

func (s *AppState) closeGlob() {
	s.GlobInput.Blur()
	s.GlobNavigation = nil
	s.Focused = PaneMain
	s.refreshEntries()
}

func (s *AppState) rescan(target tree.Index) {
	if err := s.Traverse(target); err != nil {
		if errors.Is(err, scanner.ErrAlreadyRunning) {
			s.Message = "A scan is already running"
			return
		}
		s.Message = fmt.Sprintf("Rescan failed: %v", err)
	}
}

func (s *AppState) confirmDeletion() Outcome {
	if s.Deleting {
		s.Message = "A deletion is already running"
		return Outcome{}
	}
	list := s.MarkedList()
	if len(list) == 0 {
		s.Focused = PaneMain
		return Outcome{}
	}
	targets := make([]deleter.Target, 0, len(list))
	for _, m := range list {
		targets = append(targets, deleter.Target{Index: m.Index, Path: m.Path, Size: m.Size})
	}
	s.Marked = map[tree.Index]MarkedEntry{}
	s.MarkCursor = 0
	s.Deleting = true
	s.Focused = PaneMain
	s.Message = fmt.Sprintf("Deleting 0/%d…", len(targets))
	return Outcome{Delete: targets}
}
