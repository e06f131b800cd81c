package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the practice screen bindings.
type KeyMap struct {
	Record     key.Binding
	Listen     key.Binding
	Replay     key.Binding
	Next       key.Binding
	Retry      key.Binding
	Mode       key.Binding
	Topic      key.Binding
	Difficulty key.Binding
	Save       key.Binding
	Reset      key.Binding
	Dashboard  key.Binding
	Logout     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var DefaultKeyMap = KeyMap{
	Record: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("espaço", "gravar/parar"),
	),
	Listen: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "ouvir"),
	),
	Replay: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "minha voz"),
	),
	Next: key.NewBinding(
		key.WithKeys("n", "right"),
		key.WithHelp("→/n", "próxima"),
	),
	Retry: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "tentar de novo"),
	),
	Mode: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "modo"),
	),
	Topic: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "tema"),
	),
	Difficulty: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "nível"),
	),
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "salvar perfil"),
	),
	Reset: key.NewBinding(
		key.WithKeys("X"),
		key.WithHelp("X", "zerar progresso"),
	),
	Dashboard: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "painel admin"),
	),
	Logout: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "sair do perfil"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "ajuda"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "fechar"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.Listen, k.Next, k.Mode, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Record, k.Listen, k.Replay, k.Next, k.Retry},
		{k.Mode, k.Topic, k.Difficulty},
		{k.Save, k.Reset, k.Dashboard, k.Logout, k.Quit},
	}
}
