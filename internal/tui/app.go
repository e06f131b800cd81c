// Package tui is the terminal practice app: profile login, the practice
// screen for every mode, guest promotion and the admin dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/audio"
	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/playback"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
	"github.com/patrickJVGH/FluentFlow/internal/session"
)

const opTimeout = 5 * time.Second

// Session is the practice session the app drives.
type Session interface {
	Snapshot() session.Snapshot
	SetUser(userID string, st game.State) <-chan error
	Select(sel session.Selection) <-chan error
	Next() <-chan error
	Retry() <-chan error
	StartRecording() error
	StopRecording() bool
	SpeakCurrent() <-chan playback.Outcome
	ReplayRecording() (<-chan playback.Outcome, error)
	ResetProgress() <-chan error
}

// Profiles manages learners.
type Profiles interface {
	List(ctx context.Context) ([]profile.UserProfile, error)
	Create(ctx context.Context, name, color string) (profile.UserProfile, error)
	Guest(ctx context.Context) (profile.UserProfile, error)
	Save(ctx context.Context, id, name, color string) (profile.UserProfile, error)
	AdminLogin(user, password string) (profile.UserProfile, error)
	Progress(ctx context.Context, id string) (game.State, error)
	Delete(ctx context.Context, id string) error
	Dashboard(ctx context.Context) ([]profile.DashboardRow, error)
}

// AppState is the current screen
type AppState int

const (
	StateLogin AppState = iota
	StatePractice
	StateSaveProfile
	StateDashboard
	StateRecovery
)

type (
	snapshotMsg struct{ snap session.Snapshot }
	profilesMsg struct {
		profiles []profile.UserProfile
		err      error
	}
	loggedInMsg struct {
		user     profile.UserProfile
		progress game.State
	}
	profileSavedMsg struct{ user profile.UserProfile }
	dashboardMsg    struct {
		rows []profile.DashboardRow
		err  error
	}
	noticeMsg struct{ text string }
	errMsg    struct{ err error }
)

// App is the root model. It is a value type so a panicking update leaves
// the previous model intact for the recovery view.
type App struct {
	state  AppState
	width  int
	height int

	session  Session
	profiles Profiles
	logger   zerolog.Logger

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	user     profile.UserProfile
	snap     session.Snapshot
	notice   string
	resetArm bool

	login     loginScreen
	form      profileForm
	dashboard dashboardScreen

	crash string
}

// NewApp creates the app on the login screen.
func NewApp(sess Session, profiles Profiles, logger zerolog.Logger) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = TitleStyle

	return App{
		state:    StateLogin,
		session:  sess,
		profiles: profiles,
		logger:   logger.With().Str("component", "tui").Logger(),
		keys:     DefaultKeyMap,
		help:     help.New(),
		spinner:  sp,
		login:    newLoginScreen(),
		snap:     sess.Snapshot(),
	}
}

// Init loads the profile list.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.loadProfiles(), a.spinner.Tick)
}

// Update routes msg to the current screen. A panic anywhere below is
// turned into the recovery screen.
func (a App) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("recovered from panic in update")
			a.crash = fmt.Sprint(r)
			a.state = StateRecovery
			model, cmd = a, nil
		}
	}()
	return a.update(msg)
}

func (a App) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case snapshotMsg:
		a.snap = msg.snap
		return a, nil

	case noticeMsg:
		a.notice = msg.text
		return a, nil

	case loggedInMsg:
		a.user = msg.user
		a.state = StatePractice
		a.notice = ""
		a.login = newLoginScreen()
		a.logger.Info().Str("user", msg.user.ID).Str("role", string(msg.user.Role)).Msg("logged in")
		ch := a.session.SetUser(msg.user.ID, msg.progress)
		a.snap = a.session.Snapshot()
		return a, waitErr(ch)
	}

	switch a.state {
	case StateLogin:
		return a.updateLogin(msg)
	case StatePractice:
		return a.updatePractice(msg)
	case StateSaveProfile:
		return a.updateForm(msg)
	case StateDashboard:
		return a.updateDashboard(msg)
	case StateRecovery:
		return a.updateRecovery(msg)
	}
	return a, nil
}

// View renders the current screen.
func (a App) View() (out string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Str("panic", fmt.Sprint(r)).Msg("recovered from panic in view")
			a.crash = fmt.Sprint(r)
			out = a.recoveryView()
		}
	}()

	switch a.state {
	case StateLogin:
		return a.login.View(a.width)
	case StatePractice:
		return a.practiceView()
	case StateSaveProfile:
		return a.form.View()
	case StateDashboard:
		return a.dashboard.View(a.width)
	case StateRecovery:
		return a.recoveryView()
	}
	return ""
}

func (a App) updateRecovery(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	switch k.String() {
	case "q":
		return a, tea.Quit
	case "enter", "r":
		a.crash = ""
		a.notice = ""
		if a.user.ID != "" {
			a.state = StatePractice
			a.snap = a.session.Snapshot()
			return a, nil
		}
		a.state = StateLogin
		a.login = newLoginScreen()
		return a, a.loadProfiles()
	}
	return a, nil
}

func (a App) recoveryView() string {
	body := TitleStyle.Render("Algo deu errado.") + "\n\n" +
		MutedStyle.Render(a.crash) + "\n\n" +
		"O app continua funcionando. Pressione enter para voltar ou q para fechar."
	return Card.BorderForeground(Error).Render(body)
}

func (a App) loadProfiles() tea.Cmd {
	profiles := a.profiles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		list, err := profiles.List(ctx)
		return profilesMsg{profiles: list, err: err}
	}
}

func (a App) loginAs(p profile.UserProfile) tea.Cmd {
	profiles := a.profiles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		st, err := profiles.Progress(ctx, p.ID)
		if err != nil {
			return errMsg{err}
		}
		return loggedInMsg{user: p, progress: st}
	}
}

// waitErr reports the result of an asynchronous session call.
func waitErr(ch <-chan error) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if err := <-ch; err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// waitSpeech reports speech that could not be voiced.
func waitSpeech(ch <-chan playback.Outcome) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		out := <-ch
		if out.Status == playback.StatusFailed {
			return noticeMsg{text: playback.FailureNotice}
		}
		return nil
	}
}

// userMessage turns an error into the text shown to the learner.
func userMessage(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "Acesso ao microfone negado. Verifique as permissões do sistema."
	case errors.Is(err, session.ErrLoadTimeout):
		return "O carregamento demorou demais. Pressione t para tentar de novo."
	case errors.Is(err, session.ErrNoRecording):
		return "Nenhuma gravação para ouvir ainda."
	case errors.Is(err, session.ErrBusy):
		return "Aguarde a etapa atual terminar."
	case errors.Is(err, profile.ErrEmptyName):
		return profile.ErrEmptyName.Error()
	case errors.Is(err, profile.ErrNameTaken):
		return profile.ErrNameTaken.Error()
	case errors.Is(err, profile.ErrInvalidCredentials):
		return profile.ErrInvalidCredentials.Error()
	}
	return err.Error()
}

// Run starts the program and blocks until it exits. Session changes are
// forwarded to the model through subscribe.
func Run(ctx context.Context, app App, subscribe func(func(session.Snapshot))) error {
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if subscribe != nil {
		subscribe(func(s session.Snapshot) { p.Send(snapshotMsg{snap: s}) })
	}
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
