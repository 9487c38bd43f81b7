package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the console.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Notification dropdown
	Notifications key.Binding
	Open          key.Binding
	AckAll        key.Binding
	Dismiss       key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Session
	Logout key.Binding
	Verify key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open notification"),
		),
		AckAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
		Verify: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "re-check session"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Notifications, k.Refresh, k.Logout,
		k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Back, k.Quit},
		{k.Notifications, k.Open, k.AckAll, k.Dismiss},
		{k.Refresh, k.Verify, k.Logout, k.Help},
	}
}
