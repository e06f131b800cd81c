package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
)

// LoginMode is the current login screen mode
type LoginMode int

const (
	LoginModePick LoginMode = iota
	LoginModeCreate
	LoginModeAdmin
)

// extra entries after the saved profiles
const (
	entryNew = iota
	entryGuest
	entryAdmin
	entryCount
)

type loginScreen struct {
	mode     LoginMode
	profiles []profile.UserProfile
	cursor   int
	color    int
	name     textinput.Model
	user     textinput.Model
	password textinput.Model
	focused  int
	err      string
}

func newLoginScreen() loginScreen {
	name := textinput.New()
	name.Placeholder = "Seu nome"
	name.CharLimit = 40

	user := textinput.New()
	user.Placeholder = "Usuário"

	pw := textinput.New()
	pw.Placeholder = "Senha"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	return loginScreen{name: name, user: user, password: pw}
}

func (a App) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	m := &a.login
	switch msg := msg.(type) {
	case profilesMsg:
		if msg.err != nil {
			m.err = userMessage(msg.err)
			return a, nil
		}
		m.profiles = msg.profiles
		if m.cursor >= len(m.profiles)+entryCount {
			m.cursor = 0
		}
		return a, nil

	case errMsg:
		m.err = userMessage(msg.err)
		return a, nil

	case tea.KeyMsg:
		switch m.mode {
		case LoginModePick:
			return a.pickKey(msg)
		case LoginModeCreate:
			return a.createKey(msg)
		case LoginModeAdmin:
			return a.adminKey(msg)
		}
	}
	return a, nil
}

func (a App) pickKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m := &a.login
	total := len(m.profiles) + entryCount
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + total) % total
	case "down", "j":
		m.cursor = (m.cursor + 1) % total
	case "enter":
		m.err = ""
		if m.cursor < len(m.profiles) {
			return a, a.loginAs(m.profiles[m.cursor])
		}
		switch m.cursor - len(m.profiles) {
		case entryNew:
			m.mode = LoginModeCreate
			m.name.SetValue("")
			m.name.Focus()
			return a, textinput.Blink
		case entryGuest:
			return a, a.guest()
		case entryAdmin:
			m.mode = LoginModeAdmin
			m.focused = 0
			m.user.SetValue("")
			m.password.SetValue("")
			m.user.Focus()
			m.password.Blur()
			return a, textinput.Blink
		}
	}
	return a, nil
}

func (a App) createKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m := &a.login
	switch msg.String() {
	case "esc":
		m.mode = LoginModePick
		m.err = ""
		m.name.Blur()
		return a, nil
	case "tab":
		m.color = (m.color + 1) % len(profile.AvatarColors)
		return a, nil
	case "enter":
		name, color := m.name.Value(), profile.AvatarColors[m.color]
		profiles := a.profiles
		return a, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			p, err := profiles.Create(ctx, name, color)
			if err != nil {
				return errMsg{err}
			}
			return loggedInMsg{user: p, progress: game.NewState()}
		}
	}
	var cmd tea.Cmd
	m.name, cmd = m.name.Update(msg)
	return a, cmd
}

func (a App) adminKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m := &a.login
	switch msg.String() {
	case "esc":
		m.mode = LoginModePick
		m.err = ""
		return a, nil
	case "tab", "shift+tab":
		m.focused = (m.focused + 1) % 2
		if m.focused == 0 {
			m.user.Focus()
			m.password.Blur()
		} else {
			m.user.Blur()
			m.password.Focus()
		}
		return a, nil
	case "enter":
		if m.focused == 0 {
			m.focused = 1
			m.user.Blur()
			m.password.Focus()
			return a, nil
		}
		p, err := a.profiles.AdminLogin(strings.TrimSpace(m.user.Value()), m.password.Value())
		if err != nil {
			m.err = userMessage(err)
			m.password.SetValue("")
			return a, nil
		}
		return a, a.loginAs(p)
	}

	var cmd tea.Cmd
	if m.focused == 0 {
		m.user, cmd = m.user.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return a, cmd
}

func (a App) guest() tea.Cmd {
	profiles := a.profiles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		p, err := profiles.Guest(ctx)
		if err != nil {
			return errMsg{err}
		}
		return loggedInMsg{user: p, progress: game.NewState()}
	}
}

func (m loginScreen) View(width int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("FluentFlow"))
	b.WriteString(MutedStyle.Render("  pronúncia em inglês, uma frase por vez"))
	b.WriteString("\n\n")

	switch m.mode {
	case LoginModePick:
		b.WriteString(HeaderStyle.Render("Quem está praticando?"))
		b.WriteString("\n\n")
		for i, p := range m.profiles {
			line := fmt.Sprintf("%s %s", badge(p.AvatarColor, p.Initial()), p.Name)
			b.WriteString(m.item(i, line))
			b.WriteString("\n")
		}
		extras := []string{"+ Novo perfil", "Entrar como visitante", "Administrador"}
		for i, label := range extras {
			b.WriteString(m.item(len(m.profiles)+i, label))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render("↑/↓ escolher • enter entrar • q fechar"))

	case LoginModeCreate:
		b.WriteString(HeaderStyle.Render("Novo perfil"))
		b.WriteString("\n\n")
		b.WriteString(m.name.View())
		b.WriteString("\n\n")
		color := profile.AvatarColors[m.color]
		b.WriteString("Cor: " + badge(color, initialOf(m.name.Value())) + " " + color)
		b.WriteString("\n\n")
		b.WriteString(MutedStyle.Render("tab trocar cor • enter criar • esc voltar"))

	case LoginModeAdmin:
		b.WriteString(HeaderStyle.Render("Acesso administrativo"))
		b.WriteString("\n\n")
		b.WriteString(m.user.View())
		b.WriteString("\n")
		b.WriteString(m.password.View())
		b.WriteString("\n\n")
		b.WriteString(MutedStyle.Render("tab alternar • enter entrar • esc voltar"))
	}

	if m.err != "" {
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render(m.err))
	}

	box := CardActive.Render(b.String())
	if width > 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
	}
	return box
}

func (m loginScreen) item(i int, label string) string {
	if i == m.cursor {
		return SelectedStyle.Render("› " + label)
	}
	return ItemStyle.Render("  " + label)
}

func initialOf(name string) string {
	return profile.UserProfile{Name: strings.TrimSpace(name)}.Initial()
}
