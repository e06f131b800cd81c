package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/patrickJVGH/FluentFlow/internal/profile"
)

type dashboardScreen struct {
	rows    []profile.DashboardRow
	cursor  int
	loading bool
	confirm bool
	err     string
}

func (a App) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := &a.dashboard
	switch msg := msg.(type) {
	case dashboardMsg:
		d.loading = false
		if msg.err != nil {
			d.err = userMessage(msg.err)
			return a, nil
		}
		d.err = ""
		d.rows = msg.rows
		if d.cursor >= len(d.rows) {
			d.cursor = max(0, len(d.rows)-1)
		}
		return a, nil

	case errMsg:
		d.err = userMessage(msg.err)
		return a, nil

	case tea.KeyMsg:
		if d.confirm {
			d.confirm = false
			if msg.String() == "y" && d.cursor < len(d.rows) {
				id := d.rows[d.cursor].Profile.ID
				return a, a.deleteUser(id)
			}
			return a, nil
		}

		switch msg.String() {
		case "esc", "q":
			a.state = StatePractice
			return a, nil
		case "up", "k":
			if d.cursor > 0 {
				d.cursor--
			}
		case "down", "j":
			if d.cursor < len(d.rows)-1 {
				d.cursor++
			}
		case "r":
			d.loading = true
			return a, a.loadDashboard()
		case "x", "delete":
			if len(d.rows) > 0 {
				d.confirm = true
			}
		}
	}
	return a, nil
}

func (a App) deleteUser(id string) tea.Cmd {
	profiles := a.profiles
	reload := a.loadDashboard()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := profiles.Delete(ctx, id); err != nil {
			return errMsg{err}
		}
		return reload()
	}
}

// DashboardTable renders the admin table. The CLI prints the same table.
func DashboardTable(rows []profile.DashboardRow, cursor int) string {
	headers := []string{"Aluno", "Pontos", "Sequência", "Frases", "Nível", "Patente", "Desde"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Profile.Name,
			fmt.Sprint(r.Progress.Score),
			fmt.Sprint(r.Progress.Streak),
			fmt.Sprint(r.Progress.PhrasesCompleted),
			fmt.Sprint(r.Progress.CurrentLevel),
			r.Rank.Title,
			r.Profile.JoinedAt.Format("02/01/2006"),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
		for _, row := range cells {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	render := func(style lipgloss.Style, row []string) string {
		out := make([]string, len(row))
		for i, c := range row {
			out[i] = style.Width(widths[i] + 2).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, out...)
	}

	lines := []string{render(TableHeader, headers)}
	for i, row := range cells {
		style := TableCell
		if i == cursor {
			style = TableCell.Bold(true).Foreground(Primary)
		}
		lines = append(lines, render(style, row))
	}
	return strings.Join(lines, "\n")
}

func (d dashboardScreen) View(width int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Painel do administrador"))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  %d alunos", len(d.rows))))
	b.WriteString("\n\n")

	switch {
	case d.loading:
		b.WriteString(MutedStyle.Render("Carregando..."))
	case len(d.rows) == 0:
		b.WriteString(MutedStyle.Render("Nenhum aluno cadastrado."))
	default:
		b.WriteString(DashboardTable(d.rows, d.cursor))
	}

	if d.confirm && d.cursor < len(d.rows) {
		b.WriteString("\n\n")
		b.WriteString(WarningStyle.Render(fmt.Sprintf("Excluir %s e todo o progresso? (y/n)", d.rows[d.cursor].Profile.Name)))
	}
	if d.err != "" {
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render(d.err))
	}
	b.WriteString("\n\n")
	b.WriteString(MutedStyle.Render("↑/↓ navegar • x excluir • r atualizar • esc voltar"))

	box := Card.Render(b.String())
	if width > 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, box)
	}
	return box
}
