package app

import "github.com/charmbracelet/bubbles/key"

// MainKeys are active while the entry list has focus.
type MainKeys struct {
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Home        key.Binding
	End         key.Binding
	Enter       key.Binding
	Leave       key.Binding
	SortSize    key.Binding
	SortName    key.Binding
	SortCount   key.Binding
	SortMTime   key.Binding
	ToggleCount key.Binding
	ToggleMTime key.Binding
	Mark        key.Binding
	FocusMarks  key.Binding
	Glob        key.Binding
	Help        key.Binding
	Refresh     key.Binding
	RefreshView key.Binding
	Quit        key.Binding
}

// GlobKeys are active while the glob pattern is edited; everything else goes
// to the text input.
type GlobKeys struct {
	Up      key.Binding
	Down    key.Binding
	Confirm key.Binding
	Back    key.Binding
	Cancel  key.Binding
}

// MarkKeys are active while the marked list has focus.
type MarkKeys struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Confirm key.Binding
	Back    key.Binding
	Cancel  key.Binding
}

type HelpKeys struct {
	Close key.Binding
}

// KeyMap groups the bindings of every pane.
type KeyMap struct {
	Main      MainKeys
	Glob      GlobKeys
	Mark      MarkKeys
	Help      HelpKeys
	ForceQuit key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Main: MainKeys{
			Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			PageUp:      key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
			PageDown:    key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
			Home:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first")),
			End:         key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last")),
			Enter:       key.NewBinding(key.WithKeys("enter", "right", "l", "o"), key.WithHelp("→/l", "open dir")),
			Leave:       key.NewBinding(key.WithKeys("backspace", "left", "h", "u"), key.WithHelp("←/h", "parent")),
			SortSize:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort size")),
			SortName:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "sort name")),
			SortCount:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "sort count")),
			SortMTime:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "sort mtime")),
			ToggleCount: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "count column")),
			ToggleMTime: key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "mtime column")),
			Mark:        key.NewBinding(key.WithKeys(" ", "space", "d"), key.WithHelp("space/d", "mark")),
			FocusMarks:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "marked")),
			Glob:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "glob search")),
			Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
			Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan selected")),
			RefreshView: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rescan view")),
			Quit:        key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		},
		Glob: GlobKeys{
			Up:      key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
			Down:    key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open / jump")),
			Back:    key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "parent")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		},
		Mark: MarkKeys{
			Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Toggle:  key.NewBinding(key.WithKeys(" ", "space", "d"), key.WithHelp("space/d", "unmark")),
			Confirm: key.NewBinding(key.WithKeys("x", "ctrl+r"), key.WithHelp("x", "delete marked")),
			Back:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "back")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear marks")),
		},
		Help: HelpKeys{
			Close: key.NewBinding(key.WithKeys("?", "esc", "q"), key.WithHelp("?/esc", "close help")),
		},
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k MainKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Leave, k.Mark, k.Glob, k.SortSize, k.Help, k.Quit}
}

func (k MainKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End, k.Enter, k.Leave},
		{k.SortSize, k.SortName, k.SortCount, k.SortMTime, k.ToggleCount, k.ToggleMTime},
		{k.Mark, k.FocusMarks, k.Glob, k.Refresh, k.RefreshView, k.Help, k.Quit},
	}
}

func (k GlobKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Confirm, k.Back, k.Cancel}
}

func (k GlobKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

func (k MarkKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Confirm, k.Back, k.Cancel}
}

func (k MarkKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Toggle, k.Confirm, k.Back, k.Cancel}}
}
