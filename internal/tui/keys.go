package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	Help       key.Binding
	TabNext    key.Binding
	TabPrev    key.Binding
	Enter      key.Binding
	Back       key.Binding
	Connect    key.Binding
	Disconnect key.Binding
	Refresh    key.Binding
	Search     key.Binding

	// Groups tab.
	Toggle      key.Binding
	New         key.Binding
	Rename      key.Binding
	DeleteGroup key.Binding

	// Configs tab.
	MoveUp   key.Binding
	MoveDown key.Binding
	Swipe    key.Binding
	Undo     key.Binding
	Save     key.Binding
	Edit     key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	TabNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next tab"),
	),
	TabPrev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev tab"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Connect: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "connect"),
	),
	Disconnect: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "disconnect"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload settings"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "a"),
		key.WithHelp("space", "toggle active"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new"),
	),
	Rename: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "rename"),
	),
	DeleteGroup: key.NewBinding(
		key.WithKeys("D"),
		key.WithHelp("D", "delete group"),
	),
	MoveUp: key.NewBinding(
		key.WithKeys("K", "shift+up"),
		key.WithHelp("K", "move up"),
	),
	MoveDown: key.NewBinding(
		key.WithKeys("J", "shift+down"),
		key.WithHelp("J", "move down"),
	),
	Swipe: key.NewBinding(
		key.WithKeys("x", "delete"),
		key.WithHelp("x", "remove"),
	),
	Undo: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "undo"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save order"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e", "enter"),
		key.WithHelp("e", "edit"),
	),
}

// TabHelp returns the bindings the help bar shows on tab.
func (k keyMap) TabHelp(tab int) []key.Binding {
	switch tab {
	case tabGroups:
		return []key.Binding{k.Enter, k.Toggle, k.New, k.Rename, k.DeleteGroup, k.Search, k.TabNext, k.Help, k.Quit}
	case tabConfigs:
		return []key.Binding{k.MoveUp, k.MoveDown, k.Swipe, k.Undo, k.Save, k.New, k.Edit, k.DeleteGroup, k.Back}
	case tabStatus:
		return []key.Binding{k.Connect, k.Disconnect, k.TabNext, k.Help, k.Quit}
	}
	return []key.Binding{k.Enter, k.Refresh, k.TabNext, k.Help, k.Quit}
}

// FullHelp returns grouped bindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TabNext, k.TabPrev, k.Enter, k.Back},
		{k.Toggle, k.New, k.Rename, k.DeleteGroup},
		{k.MoveUp, k.MoveDown, k.Swipe, k.Undo, k.Save},
		{k.Connect, k.Disconnect, k.Refresh, k.Help, k.Quit},
	}
}
