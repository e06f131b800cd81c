package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/patrickJVGH/FluentFlow/internal/profile"
)

// profileForm edits the name and color of the current profile. Saving a
// guest turns it into a listed user with the same progress.
type profileForm struct {
	id    string
	guest bool
	name  textinput.Model
	color int
	err   string
}

func newProfileForm(p profile.UserProfile) profileForm {
	name := textinput.New()
	name.Placeholder = "Seu nome"
	name.CharLimit = 40
	if !p.IsGuest() {
		name.SetValue(p.Name)
	}
	name.Focus()

	color := 0
	for i, c := range profile.AvatarColors {
		if c == p.AvatarColor {
			color = i
		}
	}
	return profileForm{id: p.ID, guest: p.IsGuest(), name: name, color: color}
}

func (f profileForm) Init() tea.Cmd {
	return textinput.Blink
}

func (a App) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	f := &a.form
	switch msg := msg.(type) {
	case profileSavedMsg:
		a.user = msg.user
		a.state = StatePractice
		a.notice = "Perfil salvo."
		return a, nil

	case errMsg:
		f.err = userMessage(msg.err)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			a.state = StatePractice
			return a, nil
		case "tab":
			f.color = (f.color + 1) % len(profile.AvatarColors)
			return a, nil
		case "enter":
			id, name, color := f.id, f.name.Value(), profile.AvatarColors[f.color]
			profiles := a.profiles
			return a, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
				defer cancel()
				p, err := profiles.Save(ctx, id, name, color)
				if err != nil {
					return errMsg{err}
				}
				return profileSavedMsg{user: p}
			}
		}
	}

	var cmd tea.Cmd
	f.name, cmd = f.name.Update(msg)
	return a, cmd
}

func (f profileForm) View() string {
	var b strings.Builder
	title := "Editar perfil"
	if f.guest {
		title = "Salvar progresso como novo perfil"
	}
	b.WriteString(HeaderStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(f.name.View())
	b.WriteString("\n\n")
	color := profile.AvatarColors[f.color]
	b.WriteString("Cor: " + badge(color, initialOf(f.name.Value())) + " " + color)
	b.WriteString("\n\n")
	b.WriteString(MutedStyle.Render("tab trocar cor • enter salvar • esc cancelar"))
	if f.err != "" {
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render(f.err))
	}
	return CardActive.Render(b.String())
}
