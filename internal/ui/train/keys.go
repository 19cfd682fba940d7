// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package train

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the training tab bindings.
type KeyMap struct {
	Train    key.Binding
	Stop     key.Binding
	Service  key.Binding
	Refresh  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Dismiss  key.Binding
}

// DefaultKeyMap returns the default training bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Train: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "train"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		Service: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "service"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "refresh"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "logs up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "logs down"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss"),
		),
	}
}

// ShortHelp lists the bindings shown in the help bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Train, k.Stop, k.Service, k.Refresh, k.PageUp, k.PageDown}
}
