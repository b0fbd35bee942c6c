package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the overview bindings. It implements help.KeyMap.
type keyMap struct {
	NextTab  key.Binding
	PrevTab  key.Binding
	Up       key.Binding
	Down     key.Binding
	Activate key.Binding
	Proceed  key.Binding
	Back     key.Binding
	Abort    key.Binding
	Reset    key.Binding
	Export   key.Binding
	Skip     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextTab:  key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next tab")),
		PrevTab:  key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous tab")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous link")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next link")),
		Activate: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "change")),
		Proceed:  key.NewBinding(key.WithKeys("n", "ctrl+n"), key.WithHelp("n", "install")),
		Back:     key.NewBinding(key.WithKeys("b", "esc"), key.WithHelp("b", "back")),
		Abort:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "abort")),
		Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset to defaults")),
		Export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Skip:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip this screen")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Activate, k.NextTab, k.Proceed, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Activate},
		{k.NextTab, k.PrevTab},
		{k.Proceed, k.Back, k.Abort},
		{k.Reset, k.Export, k.Skip},
		{k.Help, k.Quit},
	}
}
