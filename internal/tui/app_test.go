package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickJVGH/FluentFlow/internal/ai"
	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/conversation"
	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/playback"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
	"github.com/patrickJVGH/FluentFlow/internal/session"
)

type fakeSession struct {
	mu        sync.Mutex
	snap      session.Snapshot
	calls     []string
	users     []string
	selected  []session.Selection
	startErr  error
	panicNext bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{snap: session.Snapshot{
		State:     session.StateReady,
		Selection: session.Selection{Kind: session.KindCourse, Topic: phrase.Topics[0], Difficulty: phrase.Easy},
		Item:      phrase.Phrase{ID: "core-1k-0001", English: "Good morning", Portuguese: "Bom dia", Difficulty: phrase.Easy},
		HasItem:   true,
		Total:     5,
		Game:      game.NewState(),
	}}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSession) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func done(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

func (f *fakeSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) SetUser(userID string, st game.State) <-chan error {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.snap.UserID = userID
	f.snap.Game = st
	f.mu.Unlock()
	return done(nil)
}

func (f *fakeSession) Select(sel session.Selection) <-chan error {
	f.mu.Lock()
	f.selected = append(f.selected, sel)
	f.snap.Selection = sel
	f.mu.Unlock()
	return done(nil)
}

func (f *fakeSession) Next() <-chan error {
	if f.panicNext {
		panic("index out of range")
	}
	f.record("next")
	return done(nil)
}

func (f *fakeSession) Retry() <-chan error {
	f.record("retry")
	return done(nil)
}

func (f *fakeSession) StartRecording() error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.snap.State = session.StateRecording
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) StopRecording() bool {
	f.record("stop")
	return true
}

func (f *fakeSession) SpeakCurrent() <-chan playback.Outcome {
	f.record("speak")
	ch := make(chan playback.Outcome, 1)
	ch <- playback.Outcome{Status: playback.StatusFailed}
	close(ch)
	return ch
}

func (f *fakeSession) ReplayRecording() (<-chan playback.Outcome, error) {
	f.record("replay")
	return nil, session.ErrNoRecording
}

func (f *fakeSession) ResetProgress() <-chan error {
	f.record("reset")
	return done(nil)
}

type fakeProfiles struct {
	mu      sync.Mutex
	users   []profile.UserProfile
	deleted []string
}

func (f *fakeProfiles) List(context.Context) ([]profile.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]profile.UserProfile(nil), f.users...), nil
}

func (f *fakeProfiles) Create(_ context.Context, name, color string) (profile.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return profile.UserProfile{}, profile.ErrEmptyName
	}
	p := profile.UserProfile{ID: "user_" + name, Name: name, AvatarColor: color, Role: profile.RoleUser}
	f.mu.Lock()
	f.users = append(f.users, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeProfiles) Guest(context.Context) (profile.UserProfile, error) {
	return profile.UserProfile{ID: "guest_1", Name: profile.GuestName, AvatarColor: "indigo", Role: profile.RoleGuest}, nil
}

func (f *fakeProfiles) Save(_ context.Context, id, name, color string) (profile.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return profile.UserProfile{}, profile.ErrEmptyName
	}
	return profile.UserProfile{ID: id, Name: name, AvatarColor: color, Role: profile.RoleUser}, nil
}

func (f *fakeProfiles) AdminLogin(user, password string) (profile.UserProfile, error) {
	if user != "ADMIN" || password != "123456" {
		return profile.UserProfile{}, profile.ErrInvalidCredentials
	}
	return profile.AdminProfile(time.Now()), nil
}

func (f *fakeProfiles) Progress(context.Context, string) (game.State, error) {
	st := game.NewState()
	st.Score = 620
	return st, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeProfiles) Dashboard(context.Context) ([]profile.DashboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]profile.DashboardRow, 0, len(f.users))
	for _, u := range f.users {
		st := game.NewState()
		st.Score = 1600
		rows = append(rows, profile.DashboardRow{Profile: u, Progress: st, Rank: game.RankFor(st.Score)})
	}
	return rows, nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send applies msg and then feeds the app's own follow-up messages back
// in, the way the program loop would. Cursor blink and spinner ticks are
// not followed.
func send(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	m, cmd := m.Update(msg)
	for cmd != nil {
		next := cmd()
		if !ours(next) {
			return m
		}
		m, cmd = m.Update(next)
	}
	return m
}

func ours(msg tea.Msg) bool {
	switch msg.(type) {
	case snapshotMsg, profilesMsg, loggedInMsg, profileSavedMsg, dashboardMsg, noticeMsg, errMsg:
		return true
	}
	return false
}

func press(t *testing.T, m tea.Model, keys ...string) tea.Model {
	t.Helper()
	for _, k := range keys {
		m = send(t, m, keyMsg(k))
	}
	return m
}

func newTestApp(t *testing.T, users ...profile.UserProfile) (tea.Model, *fakeSession, *fakeProfiles) {
	t.Helper()
	fs := newFakeSession()
	fp := &fakeProfiles{users: users}
	var m tea.Model = NewApp(fs, fp, zerolog.Nop())
	list, _ := fp.List(context.Background())
	m, _ = m.Update(profilesMsg{profiles: list})
	return m, fs, fp
}

func appOf(t *testing.T, m tea.Model) App {
	t.Helper()
	a, ok := m.(App)
	require.True(t, ok)
	return a
}

func loggedIn(t *testing.T) (tea.Model, *fakeSession, *fakeProfiles) {
	t.Helper()
	ana := profile.UserProfile{ID: "user_ana", Name: "Ana", AvatarColor: "teal", Role: profile.RoleUser}
	m, fs, fp := newTestApp(t, ana)
	m = press(t, m, "enter")
	require.Equal(t, StatePractice, appOf(t, m).state)
	return m, fs, fp
}

func TestApp_LoginWithSavedProfile(t *testing.T) {
	ana := profile.UserProfile{ID: "user_ana", Name: "Ana", AvatarColor: "teal", Role: profile.RoleUser}
	m, fs, _ := newTestApp(t, ana)
	assert.Contains(t, m.View(), "Ana")
	assert.Contains(t, m.View(), "Entrar como visitante")

	m = press(t, m, "enter")
	a := appOf(t, m)
	assert.Equal(t, StatePractice, a.state)
	assert.Equal(t, []string{"user_ana"}, fs.users)
	assert.Equal(t, 620, fs.Snapshot().Game.Score)
	assert.Contains(t, m.View(), "Good morning")
	assert.Contains(t, m.View(), "Explorador")
}

func TestApp_CreateProfileValidatesName(t *testing.T) {
	m, fs, _ := newTestApp(t)
	m = press(t, m, "enter")
	assert.Equal(t, LoginModeCreate, appOf(t, m).login.mode)

	m = press(t, m, "enter")
	assert.Contains(t, m.View(), "Por favor, digite seu nome.")
	assert.Empty(t, fs.users)

	m = press(t, m, "Bia", "enter")
	a := appOf(t, m)
	assert.Equal(t, StatePractice, a.state)
	assert.Equal(t, "Bia", a.user.Name)
}

func TestApp_AdminLoginAndDashboard(t *testing.T) {
	ana := profile.UserProfile{ID: "user_ana", Name: "Ana", AvatarColor: "teal", Role: profile.RoleUser, JoinedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	m, _, fp := newTestApp(t, ana)

	m = press(t, m, "up", "enter", "ADMIN", "enter", "000000", "enter")
	assert.Contains(t, m.View(), "Credenciais inválidas.")

	m = press(t, m, "123456", "enter")
	a := appOf(t, m)
	require.Equal(t, StatePractice, a.state)
	assert.Equal(t, profile.RoleAdmin, a.user.Role)

	m = press(t, m, "a")
	require.Equal(t, StateDashboard, appOf(t, m).state)
	view := m.View()
	assert.Contains(t, view, "Painel do administrador")
	assert.Contains(t, view, "Ana")
	assert.Contains(t, view, "1600")
	assert.Contains(t, view, "Conversador")
	assert.Contains(t, view, "02/01/2026")

	m = press(t, m, "x", "y")
	assert.Equal(t, []string{"user_ana"}, fp.deleted)

	m = press(t, m, "esc")
	assert.Equal(t, StatePractice, appOf(t, m).state)
}

func TestApp_DashboardIsAdminOnly(t *testing.T) {
	m, _, _ := loggedIn(t)
	m = press(t, m, "a")
	assert.Equal(t, StatePractice, appOf(t, m).state)
}

func TestApp_RecordToggle(t *testing.T) {
	m, fs, _ := loggedIn(t)

	m = press(t, m, " ")
	assert.Equal(t, 1, fs.called("start"))
	assert.Contains(t, m.View(), "GRAVANDO")

	press(t, m, " ")
	assert.Equal(t, 1, fs.called("stop"))
	assert.Equal(t, 1, fs.called("start"))
}

func TestApp_PermissionDeniedNotice(t *testing.T) {
	m, fs, _ := loggedIn(t)
	fs.startErr = audio.ErrPermissionDenied

	m = press(t, m, " ")
	assert.Contains(t, m.View(), "Acesso ao microfone negado")
}

func TestApp_SpeechFailureNotice(t *testing.T) {
	m, fs, _ := loggedIn(t)
	m = press(t, m, "l")
	assert.Equal(t, 1, fs.called("speak"))
	assert.Contains(t, m.View(), playback.FailureNotice)

	m = press(t, m, "v")
	assert.Contains(t, m.View(), "Nenhuma gravação")
}

func TestApp_ModeTopicAndDifficulty(t *testing.T) {
	m, fs, _ := loggedIn(t)

	m = press(t, m, "d")
	assert.Empty(t, fs.selected, "difficulty only applies to practice")

	m = press(t, m, "m")
	require.Len(t, fs.selected, 1)
	assert.Equal(t, session.KindPractice, fs.selected[0].Kind)

	m = press(t, m, "o", "d")
	require.Len(t, fs.selected, 3)
	assert.Equal(t, phrase.Topics[1], fs.selected[1].Topic)
	assert.Equal(t, phrase.Medium, fs.selected[2].Difficulty)
	assert.Contains(t, m.View(), "Tema: "+phrase.Topics[1])

	press(t, m, "m", "m", "m")
	assert.Equal(t, session.KindCourse, fs.selected[len(fs.selected)-1].Kind)
}

func TestApp_SelectionKeysIgnoredWhileBusy(t *testing.T) {
	for _, state := range []session.State{session.StateRecording, session.StateProcessing} {
		t.Run(string(state), func(t *testing.T) {
			m, fs, _ := loggedIn(t)
			fs.mu.Lock()
			fs.snap.State = state
			fs.snap.Selection.Kind = session.KindPractice
			fs.mu.Unlock()

			m = press(t, m, "m", "o", "d")
			assert.Empty(t, fs.selected)
			assert.Contains(t, m.View(), "Aguarde a etapa atual terminar.")

			fs.mu.Lock()
			fs.snap.State = session.StateFeedback
			fs.mu.Unlock()
			press(t, m, "m")
			assert.Len(t, fs.selected, 1)
		})
	}
}

func TestApp_ResetNeedsConfirmation(t *testing.T) {
	m, fs, _ := loggedIn(t)

	m = press(t, m, "X")
	assert.Zero(t, fs.called("reset"))
	assert.Contains(t, m.View(), "novamente")

	m = press(t, m, "n", "X")
	assert.Zero(t, fs.called("reset"), "another key disarms the reset")

	press(t, m, "X")
	assert.Equal(t, 1, fs.called("reset"))
}

func TestApp_GuestPromotion(t *testing.T) {
	m, fs, _ := newTestApp(t)
	m = press(t, m, "down", "enter")
	a := appOf(t, m)
	require.True(t, a.user.IsGuest())
	assert.Equal(t, []string{"guest_1"}, fs.users)
	assert.Contains(t, m.View(), "visitante")

	m = press(t, m, "s")
	require.Equal(t, StateSaveProfile, appOf(t, m).state)
	m = press(t, m, "enter")
	assert.Contains(t, m.View(), "Por favor, digite seu nome.")

	m = press(t, m, "Caio", "enter")
	a = appOf(t, m)
	assert.Equal(t, StatePractice, a.state)
	assert.Equal(t, "guest_1", a.user.ID)
	assert.Equal(t, profile.RoleUser, a.user.Role)
	assert.Contains(t, m.View(), "Perfil salvo.")
}

func TestApp_FeedbackView(t *testing.T) {
	m, fs, _ := loggedIn(t)
	snap := fs.Snapshot()
	snap.State = session.StateFeedback
	snap.Result = &ai.PronunciationResult{
		IsCorrect: true,
		Score:     87,
		Feedback:  "Muito bem!",
		Words: []ai.WordAnalysis{
			{Word: "Good", Status: ai.WordCorrect},
			{Word: "morning", Status: ai.WordNeedsImprovement, PhoneticIssue: "r"},
		},
	}
	m, _ = m.Update(snapshotMsg{snap: snap})

	view := m.View()
	assert.Contains(t, view, "Correto!")
	assert.Contains(t, view, "87/100")
	assert.Contains(t, view, "Muito bem!")
	assert.Contains(t, view, "(r)")
}

func TestApp_ConversationView(t *testing.T) {
	m, fs, _ := loggedIn(t)
	snap := fs.Snapshot()
	snap.Selection.Kind = session.KindConversation
	snap.HasItem = false
	snap.Messages = []conversation.Message{
		{Role: conversation.RoleUser, Text: "I go to park yesterday", Feedback: "Use 'went'"},
		{Role: conversation.RoleModel, Text: "Nice! What did you do there?", Translation: "Legal! O que você fez lá?"},
	}
	m, _ = m.Update(snapshotMsg{snap: snap})

	view := m.View()
	assert.Contains(t, view, "Você: I go to park yesterday")
	assert.Contains(t, view, "Dica: Use 'went'")
	assert.Contains(t, view, "EVE: Nice!")
	assert.Contains(t, view, "Legal! O que você fez lá?")
}

func TestApp_ErrorStateOffersRetry(t *testing.T) {
	m, fs, _ := loggedIn(t)
	snap := fs.Snapshot()
	snap.State = session.StateError
	snap.Err = session.ErrLoadTimeout
	m, _ = m.Update(snapshotMsg{snap: snap})
	assert.Contains(t, m.View(), "demorou demais")

	press(t, m, "t")
	assert.Equal(t, 1, fs.called("retry"))
}

func TestApp_RecoversFromPanic(t *testing.T) {
	m, fs, _ := loggedIn(t)
	fs.panicNext = true

	require.NotPanics(t, func() { m = press(t, m, "n") })
	a := appOf(t, m)
	assert.Equal(t, StateRecovery, a.state)
	assert.Contains(t, m.View(), "Algo deu errado.")
	assert.Contains(t, m.View(), "index out of range")

	fs.panicNext = false
	m = press(t, m, "enter")
	assert.Equal(t, StatePractice, appOf(t, m).state)
	press(t, m, "n")
	assert.Equal(t, 1, fs.called("next"))
}

func TestApp_LogoutReturnsToLogin(t *testing.T) {
	m, _, _ := loggedIn(t)
	m = press(t, m, "esc")
	a := appOf(t, m)
	assert.Equal(t, StateLogin, a.state)
	assert.Empty(t, a.user.ID)
	assert.Contains(t, m.View(), "Ana")
}

func TestHistoryChart(t *testing.T) {
	out := historyChart([]game.HistoryEntry{
		{Date: "2026-03-01", Score: 50},
		{Date: "2026-03-02", Score: 100},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "03-01"))
	assert.Equal(t, chartWidth/2, strings.Count(lines[0], "█"))
	assert.Equal(t, chartWidth, strings.Count(lines[1], "█"))

	empty := historyChart(game.NewState().Recent(historyDays))
	assert.True(t, strings.HasPrefix(empty, "Hoje"))
}
