package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"duview/internal/app"
	"duview/internal/tree"
	"duview/internal/view"
	"duview/pkg/utils"
)

var (
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))            // purple
	markStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))           // gray
	markSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true) // green
	dirStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true) // cyan
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle       = lipgloss.NewStyle().Bold(true)
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	messageStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("227")).Bold(true) // yellow
	spinnerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	paneStyle         = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())
)

const barWidth = 10

// Choose color for size relative to the view: red > orange > yellow > green > gray
func shareStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 50:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	case pct >= 25:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	case pct >= 10:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	case pct >= 1:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	}
}

func (m *Model) View() string {
	s := m.state
	var b strings.Builder
	b.WriteString(m.headerText())
	if s.Focused == app.PaneGlob {
		b.WriteString(s.GlobInput.View() + "\n")
	}
	if s.Focused == app.PaneHelp {
		b.WriteString(m.helpText())
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(m.renderList())
	if s.Focused == app.PaneMark || len(s.Marked) > 0 {
		b.WriteString(m.renderMarks())
	}
	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) headerText() string {
	s := m.state
	nav := s.ActiveNavigation()
	title := m.tree.Path(nav.ViewRoot)
	if title == "" {
		title = "(roots)"
	}
	var total int64
	if e, ok := m.tree.Entry(nav.ViewRoot); ok {
		total = e.Aggregate
	}
	line := fmt.Sprintf("%s  %s  sort: %s  total: %s  entries: %d",
		headerStyle.Render("duview"), title, s.Sorting, s.Format.Format(total), len(s.Entries))
	if m.cfg.DryRun {
		line += "  [dry-run]"
	}
	if s.IsScanning() {
		st := s.Stats
		line += fmt.Sprintf("\n%s Scanning… %s entries  %s  errors: %d  %s",
			m.sp.View(), utils.HumanizeCount(st.EntriesTraversed), s.Format.Format(st.TotalBytes),
			st.IOErrors, st.Elapsed.Round(time.Millisecond))
	} else if s.Stats.IOErrors > 0 {
		line += "  " + errorStyle.Render(fmt.Sprintf("errors: %d", s.Stats.IOErrors))
	}
	return line + "\n\n"
}

func (m *Model) visibleHeight() int {
	s := m.state
	used := strings.Count(m.headerText(), "\n") + 1
	if s.Focused == app.PaneGlob {
		used++
	}
	if s.Focused == app.PaneMark || len(s.Marked) > 0 {
		used += m.markRows() + 3
	}
	h := s.Height - used
	if h < 3 {
		h = 3
	}
	return h
}

// Custom list rendering - no bubbles/list component
func (m *Model) renderList() string {
	s := m.state
	if len(s.Entries) == 0 {
		if s.IsScanning() {
			return dimStyle.Render("Nothing here yet…") + "\n"
		}
		return dimStyle.Render("Empty directory.") + "\n"
	}

	var b strings.Builder
	cursor := s.Cursor()
	start := m.scrollOffset
	end := start + m.visibleHeight()
	if end > len(s.Entries) {
		end = len(s.Entries)
	}
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(s.Entries[i], i == cursor && s.Focused != app.PaneMark))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderRow(e view.EntryDataBundle, selected bool) string {
	s := m.state
	prefix := "  "
	if selected {
		prefix = cursorStyle.Render(">") + " "
	}
	mark := markStyle.Render("[ ]")
	if _, ok := s.Marked[e.Index]; ok {
		mark = markSelectedStyle.Render("[x]")
	}
	size := shareStyle(e.Percentage).Render(fmt.Sprintf("%10s", s.Format.Format(e.Size)))
	bar := percentBar(e.Percentage)

	cols := []string{prefix + mark, size, fmt.Sprintf("%5.1f%%", e.Percentage), bar}
	if s.ShowColumns[app.ColumnCount] {
		cols = append(cols, fmt.Sprintf("%8s", utils.HumanizeCount(e.Count)))
	}
	if s.ShowColumns[app.ColumnMTime] {
		mt := "-"
		if !e.ModTime.IsZero() {
			mt = e.ModTime.Local().Format("2006-01-02 15:04")
		}
		cols = append(cols, fmt.Sprintf("%16s", mt))
	}

	name := e.Name
	switch {
	case e.Kind == tree.KindError:
		name = errorStyle.Render(name + " (unreadable)")
	case e.IsDir():
		name = dirStyle.Render(name + "/")
		if e.IOError {
			name += errorStyle.Render(" !")
		}
	}
	cols = append(cols, name)
	return strings.Join(cols, " ")
}

func percentBar(pct float64) string {
	n := int(pct/100*barWidth + 0.5)
	if n > barWidth {
		n = barWidth
	}
	if n < 0 {
		n = 0
	}
	return dimStyle.Render("[") + strings.Repeat("█", n) + strings.Repeat(" ", barWidth-n) + dimStyle.Render("]")
}

func (m *Model) adjustScroll() {
	cursor := m.state.Cursor()
	if cursor < 0 {
		m.scrollOffset = 0
		return
	}
	h := m.visibleHeight()

	// Scroll down if cursor is below visible area
	if cursor >= m.scrollOffset+h {
		m.scrollOffset = cursor - h + 1
	}
	// Scroll up if cursor is above visible area
	if cursor < m.scrollOffset {
		m.scrollOffset = cursor
	}
	if last := len(m.state.Entries) - h; last >= 0 && m.scrollOffset > last {
		m.scrollOffset = last
	}
}

func (m *Model) markRows() int {
	n := len(m.state.Marked)
	if n > 8 {
		n = 8
	}
	return n
}

func (m *Model) renderMarks() string {
	s := m.state
	list := s.MarkedList()
	var total int64
	for _, e := range list {
		total += e.Size
	}
	rows := m.markRows()
	start := 0
	if s.MarkCursor >= rows {
		start = s.MarkCursor - rows + 1
	}

	var lines []string
	lines = append(lines, headerStyle.Render(fmt.Sprintf("Marked %d (%s)", len(list), s.Format.Format(total))))
	for i := start; i < len(list) && i < start+rows; i++ {
		prefix := "  "
		if s.Focused == app.PaneMark && i == s.MarkCursor {
			prefix = cursorStyle.Render(">") + " "
		}
		lines = append(lines, fmt.Sprintf("%s%10s  %s", prefix, s.Format.Format(list[i].Size), list[i].Path))
	}
	if s.Focused != app.PaneMark {
		lines = append(lines, dimStyle.Render("tab to review, x to delete"))
	}
	return paneStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *Model) statusLine() string {
	s := m.state
	if s.Message != "" {
		return messageStyle.Render(s.Message) + "\n"
	}
	var keys []key.Binding
	switch s.Focused {
	case app.PaneGlob:
		keys = s.Keys.Glob.ShortHelp()
	case app.PaneMark:
		keys = s.Keys.Mark.ShortHelp()
	default:
		keys = s.Keys.Main.ShortHelp()
	}
	return m.help.ShortHelpView(keys) + "\n"
}

func (m *Model) helpText() string {
	k := m.state.Keys
	sections := []string{
		headerStyle.Render("Help") + dimStyle.Render("  (? or esc to close)"),
		m.help.FullHelpView(k.Main.FullHelp()),
		headerStyle.Render("Glob search"),
		m.help.FullHelpView(k.Glob.FullHelp()),
		headerStyle.Render("Marked entries"),
		m.help.FullHelpView(k.Mark.FullHelp()),
	}
	return paneStyle.Render(strings.Join(sections, "\n\n"))
}
