package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duview/internal/deleter"
	"duview/internal/scanner"
	"duview/internal/tree"
	"duview/internal/view"
)

func writeFile(t *testing.T, path string, size int64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// fixture lays out root/{dirA/inner (500), fileB (200)}.
func fixture(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dirA", "inner"), 500)
	writeFile(t, filepath.Join(root, "fileB"), 200)
	return root
}

func newState(t *testing.T, opts scanner.Options) *AppState {
	t.Helper()
	tr := tree.New("")
	w := scanner.NewWalker(tr, opts, nil)
	s := New(context.Background(), tr, w, nil)
	t.Cleanup(func() { s.Quit() })
	return s
}

func runUntilTraversed(t *testing.T, s *AppState) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.ProcessEvent(TickMsg(time.Now()))
		return !s.IsScanning()
	}, 5*time.Second, 5*time.Millisecond)
}

func scanned(t *testing.T, root string) *AppState {
	t.Helper()
	s := newState(t, scanner.Options{Roots: []string{root}, Concurrency: 2})
	require.NoError(t, s.Traverse(s.Tree().Root()))
	runUntilTraversed(t, s)
	return s
}

func entryNames(s *AppState) []string {
	out := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Name
	}
	return out
}

func selectedName(t *testing.T, s *AppState) string {
	t.Helper()
	sel, ok := s.ActiveNavigation().SelectedIn(s.Entries)
	require.True(t, ok, "nothing selected")
	return sel.Name
}

func TestTraverse_PopulatesEntriesAndSelectsFirst(t *testing.T) {
	root := fixture(t)
	s := scanned(t, root)

	assert.Equal(t, []string{"dirA", "fileB"}, entryNames(s))
	assert.Equal(t, "dirA", selectedName(t, s))
	assert.Equal(t, int64(700), s.Stats.TotalBytes)
	assert.Zero(t, s.Stats.IOErrors)
}

func TestTraverse_AlreadyRunning(t *testing.T) {
	s := newState(t, scanner.Options{Roots: []string{fixture(t)}})
	require.NoError(t, s.Traverse(s.Tree().Root()))
	if s.IsScanning() {
		assert.True(t, errors.Is(s.Traverse(s.Tree().Root()), scanner.ErrAlreadyRunning))
	}
	runUntilTraversed(t, s)
}

func TestQuit_DuringScanReportsErrors(t *testing.T) {
	root := fixture(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dirA", fmt.Sprintf("broken%02d", i))))
	}
	s := newState(t, scanner.Options{Roots: []string{root}, FollowSymlink: true})
	require.NoError(t, s.Traverse(s.Tree().Root()))

	out := s.ProcessEvent(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, out.Exit)
	assert.False(t, s.IsScanning())
	assert.Equal(t, s.Stats.IOErrors, out.Result.NumErrors)
	assert.LessOrEqual(t, out.Result.NumErrors, int64(50))
}

func TestQuit_AfterScanCountsBrokenSymlinks(t *testing.T) {
	root := fixture(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")))
	s := newState(t, scanner.Options{Roots: []string{root}, FollowSymlink: true})
	require.NoError(t, s.Traverse(s.Tree().Root()))
	runUntilTraversed(t, s)

	out := s.ProcessEvent(runes("q"))
	assert.True(t, out.Exit)
	assert.Equal(t, int64(1), out.Result.NumErrors)
}

func TestMoveSelection_ClampsAtEnds(t *testing.T) {
	s := scanned(t, fixture(t))

	s.ProcessEvent(runes("j"))
	assert.Equal(t, "fileB", selectedName(t, s))
	s.ProcessEvent(runes("j"))
	assert.Equal(t, "fileB", selectedName(t, s), "no wraparound at the end")
	s.ProcessEvent(runes("k"))
	s.ProcessEvent(runes("k"))
	assert.Equal(t, "dirA", selectedName(t, s))
	s.ProcessEvent(runes("G"))
	assert.Equal(t, "fileB", selectedName(t, s))
	s.ProcessEvent(runes("g"))
	assert.Equal(t, "dirA", selectedName(t, s))
}

func TestEnterLeave_RoundTrip(t *testing.T) {
	s := scanned(t, fixture(t))
	rootView := s.Navigation.ViewRoot

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"inner"}, entryNames(s))
	assert.Equal(t, 1, s.Navigation.Depth())

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, rootView, s.Navigation.ViewRoot)
	assert.Equal(t, "dirA", selectedName(t, s))
	assert.Equal(t, []string{"dirA", "fileB"}, entryNames(s))
	assert.Empty(t, s.Message)

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, rootView, s.Navigation.ViewRoot)
	assert.Equal(t, "Already at the top", s.Message)

	s.ProcessEvent(runes("j"))
	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, rootView, s.Navigation.ViewRoot, "files cannot be entered")
}

func TestMarkAndDelete_RemovesOnlyTheFile(t *testing.T) {
	root := fixture(t)
	s := scanned(t, root)

	s.ProcessEvent(runes("j"))
	s.ProcessEvent(runes("d"))
	require.Len(t, s.Marked, 1)

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, PaneMark, s.Focused)

	out := s.ProcessEvent(runes("x"))
	require.Len(t, out.Delete, 1)
	assert.Equal(t, filepath.Join(root, "fileB"), out.Delete[0].Path)
	assert.True(t, s.Deleting)
	assert.Empty(t, s.Marked)
	assert.Equal(t, PaneMain, s.Focused)

	sum := deleter.DeleteTargets(context.Background(), out.Delete, deleter.Options{}, nil)
	s.ProcessEvent(DeleteDoneMsg{Summary: sum})

	assert.False(t, s.Deleting)
	assert.Equal(t, []string{"dirA"}, entryNames(s))
	assert.Equal(t, int64(500), s.Entries[0].Size)
	assert.Equal(t, "dirA", selectedName(t, s))
	_, err := os.Stat(filepath.Join(root, "fileB"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "dirA", "inner"))
	assert.NoError(t, err)
}

func TestDeleteFailure_KeepsNodeAndCountsError(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("j"))
	s.ProcessEvent(runes("d"))
	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyTab})
	out := s.ProcessEvent(runes("x"))
	require.Len(t, out.Delete, 1)

	sum := deleter.DeleteTargets(context.Background(), out.Delete, deleter.Options{
		Remove: func(string) error { return errors.New("permission denied") },
	}, nil)
	s.ProcessEvent(DeleteDoneMsg{Summary: sum})

	assert.Equal(t, []string{"dirA", "fileB"}, entryNames(s))
	assert.Equal(t, int64(1), s.Stats.IOErrors)
	assert.Contains(t, s.Message, "permission denied")
	assert.Equal(t, int64(1), s.Quit().NumErrors)
}

func TestMarkPane_ToggleAndCancel(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("d"))
	s.ProcessEvent(runes("d"))
	require.Len(t, s.Marked, 2)
	list := s.MarkedList()
	assert.Equal(t, "dirA", filepath.Base(list[0].Path))

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyTab})
	s.ProcessEvent(runes("d"))
	assert.Len(t, s.Marked, 1)
	assert.Equal(t, PaneMark, s.Focused)

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, s.Marked)
	assert.Equal(t, PaneMain, s.Focused)

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, PaneMain, s.Focused, "mark pane needs marks")
}

func TestHelpPane_PreservesNavigation(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("j"))

	s.ProcessEvent(runes("?"))
	require.Equal(t, PaneHelp, s.Focused)
	out := s.ProcessEvent(runes("j"))
	assert.False(t, out.Exit)
	out = s.ProcessEvent(runes("q"))
	assert.False(t, out.Exit, "q closes help first")
	assert.Equal(t, PaneMain, s.Focused)
	assert.Equal(t, "fileB", selectedName(t, s))
}

func TestRescan_RestoresSelectionByPath(t *testing.T) {
	root := fixture(t)
	s := scanned(t, root)
	s.ProcessEvent(runes("j"))
	before, _ := s.Navigation.SelectedIn(s.Entries)

	s.ProcessEvent(runes("R"))
	require.True(t, s.IsScanning())
	runUntilTraversed(t, s)

	after, ok := s.Navigation.SelectedIn(s.Entries)
	require.True(t, ok)
	assert.Equal(t, before.Path, after.Path)
	assert.NotEqual(t, before.Index, after.Index, "rescan allocates fresh indices")
}

func TestRescan_SelectedDirectory(t *testing.T) {
	root := fixture(t)
	s := scanned(t, root)
	writeFile(t, filepath.Join(root, "dirA", "more"), 300)

	s.ProcessEvent(runes("r"))
	runUntilTraversed(t, s)

	assert.Equal(t, "dirA", selectedName(t, s))
	assert.Equal(t, int64(800), s.Entries[0].Size)

	s.ProcessEvent(runes("j"))
	s.ProcessEvent(runes("r"))
	assert.False(t, s.IsScanning())
	assert.NotEmpty(t, s.Message)
}

func TestSelection_FallsBackWhenEntryVanishes(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("j"))
	sel, _ := s.Navigation.SelectedIn(s.Entries)

	require.NoError(t, s.Tree().RemoveSubtree(sel.Index))
	s.ProcessEvent(TickMsg(time.Now()))

	assert.Equal(t, []string{"dirA"}, entryNames(s))
	assert.Equal(t, "dirA", selectedName(t, s))
}

func TestViewRootRecoversWhenRemoved(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEnter})
	dirA := s.Navigation.ViewRoot

	require.NoError(t, s.Tree().RemoveSubtree(dirA))
	s.ProcessEvent(TickMsg(time.Now()))

	assert.Equal(t, s.Tree().Root(), s.Navigation.ViewRoot)
	assert.Equal(t, []string{"fileB"}, entryNames(s))
}

func TestSortToggles(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("s"))
	assert.Equal(t, []string{"fileB", "dirA"}, entryNames(s))
	assert.Equal(t, "dirA", selectedName(t, s), "selection follows the entry")
	s.ProcessEvent(runes("n"))
	assert.Equal(t, []string{"dirA", "fileB"}, entryNames(s))
	s.ProcessEvent(runes("n"))
	assert.Equal(t, []string{"fileB", "dirA"}, entryNames(s))

	s.ProcessEvent(runes("C"))
	assert.True(t, s.ShowColumns[ColumnCount])
}

func TestGlob_FilterAndJump(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "logs", "app.log"), 10)
	writeFile(t, filepath.Join(root, "src", "main.go"), 1000)
	writeFile(t, filepath.Join(root, "top.log"), 1)
	s := scanned(t, root)
	mainRoot := s.Navigation.ViewRoot

	s.ProcessEvent(runes("/"))
	require.Equal(t, PaneGlob, s.Focused)
	require.NotNil(t, s.GlobNavigation)

	s.ProcessEvent(runes("*.log"))
	assert.Equal(t, "*.log", s.GlobInput.Value())
	assert.Equal(t, []string{"logs", "top.log"}, entryNames(s))

	// logs does not match itself, so enter descends within the glob view
	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PaneGlob, s.Focused)
	assert.Equal(t, []string{"app.log"}, entryNames(s))

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, PaneMain, s.Focused)
	assert.Nil(t, s.GlobNavigation)
	assert.Equal(t, "app.log", selectedName(t, s))
	assert.Equal(t, 1, s.Navigation.Depth())

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, mainRoot, s.Navigation.ViewRoot)
}

func TestGlob_EscapeDiscardsGlobNavigation(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("j"))
	s.ProcessEvent(runes("/"))
	s.ProcessEvent(runes("inner"))
	assert.Equal(t, []string{"dirA"}, entryNames(s))

	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, PaneMain, s.Focused)
	assert.Equal(t, []string{"dirA", "fileB"}, entryNames(s))
	assert.Equal(t, "fileB", selectedName(t, s))
}

func TestMessage_ClearedOnNextKey(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("j"))
	s.ProcessEvent(runes("r"))
	require.NotEmpty(t, s.Message)
	s.ProcessEvent(runes("k"))
	assert.Empty(t, s.Message)
}

func TestRescan_VanishedDirectoryIsFlagged(t *testing.T) {
	root := fixture(t)
	s := scanned(t, root)
	require.Equal(t, "dirA", selectedName(t, s))
	dirA := s.Navigation.Selected
	require.NoError(t, os.RemoveAll(filepath.Join(root, "dirA")))

	s.ProcessEvent(runes("r"))
	runUntilTraversed(t, s)

	e, ok := s.Tree().Entry(dirA)
	require.True(t, ok)
	assert.True(t, e.IOError)
	assert.Zero(t, e.Aggregate)
	assert.Empty(t, s.Tree().ChildrenOf(dirA))
	assert.Equal(t, []string{"fileB", "dirA"}, entryNames(s))
	assert.Equal(t, int64(1), s.Stats.IOErrors)
}

func TestRescan_DoesNotRecountReplacedErrors(t *testing.T) {
	root := fixture(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")))
	s := newState(t, scanner.Options{Roots: []string{root}, FollowSymlink: true})
	require.NoError(t, s.Traverse(s.Tree().Root()))
	runUntilTraversed(t, s)
	require.Equal(t, int64(1), s.Stats.IOErrors)

	for i := 0; i < 2; i++ {
		s.ProcessEvent(runes("R"))
		runUntilTraversed(t, s)
		assert.Equal(t, int64(1), s.Stats.IOErrors, "after rescan %d", i+1)
	}

	// errors outside the rescanned directory are kept
	s.ProcessEvent(runes("g"))
	require.Equal(t, "dirA", selectedName(t, s))
	s.ProcessEvent(runes("r"))
	runUntilTraversed(t, s)
	assert.Equal(t, int64(1), s.Quit().NumErrors)
}

func TestRescan_KeepsDeletionFailures(t *testing.T) {
	s := scanned(t, fixture(t))
	s.ProcessEvent(runes("j"))
	s.ProcessEvent(runes("d"))
	s.ProcessEvent(tea.KeyMsg{Type: tea.KeyTab})
	out := s.ProcessEvent(runes("x"))
	sum := deleter.DeleteTargets(context.Background(), out.Delete, deleter.Options{
		Remove: func(string) error { return errors.New("permission denied") },
	}, nil)
	s.ProcessEvent(DeleteDoneMsg{Summary: sum})
	require.Equal(t, int64(1), s.Stats.IOErrors)

	s.ProcessEvent(runes("R"))
	runUntilTraversed(t, s)
	assert.Equal(t, int64(1), s.Stats.IOErrors)
}

func TestTraverse_StaleEntriesStayUntilTick(t *testing.T) {
	s := scanned(t, fixture(t))
	before := append([]view.EntryDataBundle(nil), s.Entries...)

	s.ProcessEvent(runes("R"))
	require.True(t, s.IsScanning())
	assert.Equal(t, before, s.Entries)
	assert.Equal(t, "dirA", selectedName(t, s))
	assert.False(t, s.Tree().Contains(before[0].Index), "children are cleared when the scan starts")

	s.ProcessEvent(TickMsg(time.Now()))
	for _, e := range s.Entries {
		assert.True(t, s.Tree().Contains(e.Index), "%s is stale after a tick", e.Name)
	}
	runUntilTraversed(t, s)
	assert.Equal(t, []string{"dirA", "fileB"}, entryNames(s))
}

func TestTick_DuringScanKeepsLiveSelection(t *testing.T) {
	root := fixture(t)
	for i := 0; i < 500; i++ {
		writeFile(t, filepath.Join(root, "dirA", fmt.Sprintf("f%03d", i)), 1)
	}
	s := scanned(t, root)
	require.Equal(t, "dirA", selectedName(t, s))
	dirA := s.Navigation.Selected

	s.ProcessEvent(runes("r"))
	require.True(t, s.IsScanning())
	require.Eventually(t, func() bool {
		s.ProcessEvent(TickMsg(time.Now()))
		if !s.IsScanning() {
			return true
		}
		assert.Equal(t, dirA, s.Navigation.Selected, "selection moved while its entry still exists")
		return false
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, dirA, s.Navigation.Selected)
}
