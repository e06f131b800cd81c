package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/patrickJVGH/FluentFlow/internal/ai"
	"github.com/patrickJVGH/FluentFlow/internal/conversation"
	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
	"github.com/patrickJVGH/FluentFlow/internal/session"
)

const (
	historyDays = 7
	chartWidth  = 18
	chatWindow  = 8
)

// busy reports whether an attempt is in flight. The selection stays fixed
// until it finishes.
func busy(s session.State) bool {
	return s == session.StateRecording || s == session.StateProcessing
}

func (a App) updatePractice(msg tea.Msg) (tea.Model, tea.Cmd) {
	if e, ok := msg.(errMsg); ok {
		if !errors.Is(e.err, session.ErrSuperseded) {
			a.notice = userMessage(e.err)
		}
		return a, nil
	}

	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}

	if !key.Matches(k, a.keys.Reset) {
		a.resetArm = false
	}

	var cmd tea.Cmd
	switch {
	case key.Matches(k, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(k, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll

	case key.Matches(k, a.keys.Record):
		a.notice = ""
		if a.session.Snapshot().State == session.StateRecording {
			a.session.StopRecording()
			break
		}
		if err := a.session.StartRecording(); err != nil {
			a.notice = userMessage(err)
		}

	case key.Matches(k, a.keys.Listen):
		cmd = waitSpeech(a.session.SpeakCurrent())

	case key.Matches(k, a.keys.Replay):
		ch, err := a.session.ReplayRecording()
		if err != nil {
			a.notice = userMessage(err)
			break
		}
		cmd = waitSpeech(ch)

	case key.Matches(k, a.keys.Next):
		a.notice = ""
		cmd = waitErr(a.session.Next())

	case key.Matches(k, a.keys.Retry):
		a.notice = ""
		cmd = waitErr(a.session.Retry())

	case key.Matches(k, a.keys.Mode, a.keys.Topic, a.keys.Difficulty) && busy(a.session.Snapshot().State):
		a.notice = userMessage(session.ErrBusy)

	case key.Matches(k, a.keys.Mode):
		sel := a.session.Snapshot().Selection
		sel.Kind = cycle(session.Kinds, sel.Kind)
		cmd = waitErr(a.session.Select(sel))

	case key.Matches(k, a.keys.Topic):
		sel := a.session.Snapshot().Selection
		if sel.Kind != session.KindPractice && sel.Kind != session.KindWords {
			break
		}
		sel.Topic = cycle(topicChoices(), sel.Topic)
		cmd = waitErr(a.session.Select(sel))

	case key.Matches(k, a.keys.Difficulty):
		sel := a.session.Snapshot().Selection
		if sel.Kind != session.KindPractice {
			break
		}
		sel.Difficulty = cycle(phrase.Difficulties, sel.Difficulty)
		cmd = waitErr(a.session.Select(sel))

	case key.Matches(k, a.keys.Reset):
		if !a.resetArm {
			a.resetArm = true
			a.notice = "Pressione X novamente para zerar seu progresso."
			break
		}
		a.resetArm = false
		a.notice = "Progresso zerado."
		cmd = waitErr(a.session.ResetProgress())

	case key.Matches(k, a.keys.Save):
		if a.user.Role == profile.RoleAdmin {
			break
		}
		a.form = newProfileForm(a.user)
		a.state = StateSaveProfile
		return a, a.form.Init()

	case key.Matches(k, a.keys.Dashboard):
		if a.user.Role != profile.RoleAdmin {
			break
		}
		a.dashboard = dashboardScreen{loading: true}
		a.state = StateDashboard
		return a, a.loadDashboard()

	case key.Matches(k, a.keys.Logout):
		a.session.StopRecording()
		a.user = profile.UserProfile{}
		a.notice = ""
		a.state = StateLogin
		a.login = newLoginScreen()
		return a, a.loadProfiles()
	}

	a.snap = a.session.Snapshot()
	return a, cmd
}

func cycle[T comparable](list []T, cur T) T {
	i := slices.Index(list, cur)
	return list[(i+1)%len(list)]
}

func topicChoices() []string {
	return append(slices.Clone(phrase.Topics), phrase.MixTopic)
}

func (a App) practiceView() string {
	s := a.snap
	main := a.drillView(s)
	if s.Selection.Kind == session.KindConversation {
		main = a.conversationView(s)
	}

	width := 56
	if a.width > 0 {
		width = max(40, a.width-chartWidth-20)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		CardActive.Width(width).Render(main),
		Card.Render(statsView(s.Game)),
	)

	parts := []string{a.headerView(s), tabsView(s.Selection), body}
	if a.notice != "" {
		parts = append(parts, WarningStyle.Render(a.notice))
	}
	parts = append(parts, a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a App) headerView(s session.Snapshot) string {
	rank := game.RankFor(s.Game.Score)
	who := badge(a.user.AvatarColor, a.user.Initial()) + " " + a.user.Name
	if a.user.IsGuest() {
		who += MutedStyle.Render(" (visitante, s para salvar)")
	}
	stats := fmt.Sprintf("%s · %d pts · sequência %d", rank.Title, s.Game.Score, s.Game.Streak)
	return HeaderStyle.Render(TitleStyle.Render("FluentFlow") + "  " + who + "  " + MutedStyle.Render(stats))
}

func tabsView(sel session.Selection) string {
	tabs := make([]string, 0, len(session.Kinds))
	for _, k := range session.Kinds {
		if k == sel.Kind {
			tabs = append(tabs, SelectedStyle.Render(k.Label()))
		} else {
			tabs = append(tabs, ItemStyle.Render(k.Label()))
		}
	}
	line := strings.Join(tabs, " ")
	switch sel.Kind {
	case session.KindPractice:
		line += "\n" + MutedStyle.Render(fmt.Sprintf("Tema: %s · Nível: %s", sel.Topic, sel.Difficulty.Label()))
	case session.KindWords:
		line += "\n" + MutedStyle.Render("Tema: "+sel.Topic)
	}
	return line
}

func (a App) drillView(s session.Snapshot) string {
	switch s.State {
	case session.StateIdle:
		return MutedStyle.Render("Escolha um modo para começar.")
	case session.StateLoading:
		return a.spinner.View() + " Preparando suas frases..."
	case session.StateError:
		msg := "Não foi possível carregar o conteúdo."
		if s.Err != nil {
			msg = userMessage(s.Err)
		}
		return ErrorStyle.Render(msg) + "\n\n" + MutedStyle.Render("t para tentar de novo")
	}

	if !s.HasItem {
		return MutedStyle.Render("Nenhuma frase disponível.")
	}

	var b strings.Builder
	meta := fmt.Sprintf("%d/%d · %s", s.Index+1, s.Total, s.Item.Difficulty.Label())
	if s.Item.Category != "" {
		meta += " · " + s.Item.Category
	}
	b.WriteString(MutedStyle.Render(meta))
	b.WriteString("\n\n")
	b.WriteString(PhraseStyle.Render(s.Item.English))
	b.WriteString("\n")
	b.WriteString(TranslationStyle.Render(s.Item.Portuguese))
	b.WriteString("\n\n")

	switch s.State {
	case session.StateReady:
		b.WriteString(MutedStyle.Render("espaço para gravar · l para ouvir"))
	case session.StateRecording:
		b.WriteString(RecordingStyle.Render("● GRAVANDO") + MutedStyle.Render("  espaço para parar"))
	case session.StateProcessing:
		b.WriteString(a.spinner.View() + " Analisando sua pronúncia...")
	case session.StateFeedback:
		b.WriteString(resultView(s.Result))
	}
	return b.String()
}

func resultView(r *ai.PronunciationResult) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	verdict := ErrorStyle.Render("Tente novamente")
	if r.IsCorrect {
		verdict = SuccessStyle.Render("Correto!")
	}
	b.WriteString(verdict + "  " + scoreStyle(r.Score).Render(fmt.Sprintf("%d/100", r.Score)))
	b.WriteString("\n")
	if r.Feedback != "" {
		b.WriteString(r.Feedback)
		b.WriteString("\n")
	}
	if len(r.Words) > 0 {
		words := make([]string, 0, len(r.Words))
		for _, w := range r.Words {
			words = append(words, wordView(w))
		}
		b.WriteString("\n" + strings.Join(words, " "))
	}
	b.WriteString("\n\n" + MutedStyle.Render("n próxima · t repetir · v ouvir minha voz"))
	return b.String()
}

func wordView(w ai.WordAnalysis) string {
	switch w.Status {
	case ai.WordCorrect:
		return SuccessStyle.Render(w.Word)
	case ai.WordNeedsImprovement:
		out := WarningStyle.Underline(true).Render(w.Word)
		if w.PhoneticIssue != "" {
			out += MutedStyle.Render("(" + w.PhoneticIssue + ")")
		}
		return out
	default:
		return ErrorStyle.Strikethrough(true).Render(w.Word)
	}
}

func (a App) conversationView(s session.Snapshot) string {
	var b strings.Builder
	msgs := s.Messages
	if len(msgs) == 0 {
		b.WriteString(MutedStyle.Render("Diga algo em inglês para começar a conversa com a EVE."))
		b.WriteString("\n")
	}
	if len(msgs) > chatWindow {
		msgs = msgs[len(msgs)-chatWindow:]
	}
	for _, m := range msgs {
		b.WriteString(messageView(m))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch s.State {
	case session.StateRecording:
		b.WriteString(RecordingStyle.Render("● GRAVANDO") + MutedStyle.Render("  espaço para enviar"))
	case session.StateProcessing:
		b.WriteString(a.spinner.View() + " EVE está pensando...")
	default:
		b.WriteString(MutedStyle.Render("espaço para falar"))
	}
	return b.String()
}

func messageView(m conversation.Message) string {
	if m.Role == conversation.RoleUser {
		out := TitleStyle.Render("Você:") + " " + m.Text
		if m.Feedback != "" {
			out += "\n  " + WarningStyle.Render("Dica: "+m.Feedback)
		}
		if m.Improvement != "" {
			out += "\n  " + MutedStyle.Render("Melhor: "+m.Improvement)
		}
		return out
	}
	out := lipgloss.NewStyle().Foreground(Secondary).Bold(true).Render("EVE:") + " " + m.Text
	if m.Translation != "" {
		out += "\n  " + TranslationStyle.Render(m.Translation)
	}
	return out
}

func statsView(st game.State) string {
	var b strings.Builder
	rank := game.RankFor(st.Score)
	b.WriteString(TitleStyle.Render(rank.Title))
	b.WriteString("\n")
	if next, ok := game.NextRank(st.Score); ok {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%d pts para %s", next.MinScore-st.Score, next.Title)))
	} else {
		b.WriteString(MutedStyle.Render("nível máximo"))
	}
	b.WriteString(fmt.Sprintf("\n\nNível %d\nFrases %d\nSequência %d\n\n", st.CurrentLevel, st.PhrasesCompleted, st.Streak))
	b.WriteString(historyChart(st.Recent(historyDays)))
	return b.String()
}

// historyChart draws one horizontal bar per day, scaled to the best day.
func historyChart(h []game.HistoryEntry) string {
	top := 0
	for _, e := range h {
		top = max(top, e.Score)
	}
	lines := make([]string, 0, len(h))
	for _, e := range h {
		n := 0
		if top > 0 {
			n = e.Score * chartWidth / top
		}
		label := e.Date
		if len(label) == len(game.DateLayout) {
			label = label[5:]
		}
		bar := lipgloss.NewStyle().Foreground(Primary).Render(strings.Repeat("█", n))
		lines = append(lines, fmt.Sprintf("%-5s %s %d", label, bar, e.Score))
	}
	return strings.Join(lines, "\n")
}

func (a App) loadDashboard() tea.Cmd {
	profiles := a.profiles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		rows, err := profiles.Dashboard(ctx)
		return dashboardMsg{rows: rows, err: err}
	}
}
