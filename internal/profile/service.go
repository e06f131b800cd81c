package profile

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/patrickJVGH/FluentFlow/internal/game"
)

// Service implements the profile operations on top of a Repository.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a profile service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "profile").Logger(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Create registers a new learner.
func (s *Service) Create(ctx context.Context, name, color string) (UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UserProfile{}, ErrEmptyName
	}
	if err := s.checkName(ctx, name, ""); err != nil {
		return UserProfile{}, err
	}

	p := UserProfile{
		ID:          "user_" + s.newID(),
		Name:        name,
		AvatarColor: pickColor(color),
		JoinedAt:    s.now(),
		Role:        RoleUser,
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return UserProfile{}, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info().Str("id", p.ID).Str("name", p.Name).Msg("profile created")
	return p, nil
}

// Guest starts an unlisted guest profile. Its progress is kept so it can
// be promoted later.
func (s *Service) Guest(ctx context.Context) (UserProfile, error) {
	p := UserProfile{
		ID:          "guest_" + s.newID(),
		Name:        GuestName,
		AvatarColor: DefaultColor,
		JoinedAt:    s.now(),
		Role:        RoleGuest,
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return UserProfile{}, fmt.Errorf("create guest: %w", err)
	}
	return p, nil
}

// Save updates the name and color of a profile. A guest becomes a regular
// user with the same id, so progress made as a guest carries over.
func (s *Service) Save(ctx context.Context, id, name, color string) (UserProfile, error) {
	if id == AdminID {
		return UserProfile{}, ErrAdminProfile
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return UserProfile{}, ErrEmptyName
	}
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return UserProfile{}, err
	}
	if p.IsGuest() || p.Name != name {
		if err := s.checkName(ctx, name, id); err != nil {
			return UserProfile{}, err
		}
	}

	promoted := p.IsGuest()
	p.Name = name
	p.AvatarColor = pickColor(color)
	if promoted {
		p.Role = RoleUser
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return UserProfile{}, fmt.Errorf("save profile: %w", err)
	}
	if promoted {
		s.logger.Info().Str("id", p.ID).Str("name", p.Name).Msg("guest promoted")
	}
	return p, nil
}

// AdminLogin checks the fixed admin credentials.
func (s *Service) AdminLogin(user, password string) (UserProfile, error) {
	if user != adminUser || password != adminPassword {
		s.logger.Warn().Str("user", user).Msg("admin login rejected")
		return UserProfile{}, ErrInvalidCredentials
	}
	return AdminProfile(s.now()), nil
}

// AdminProfile is the fixed administrator identity.
func AdminProfile(now time.Time) UserProfile {
	return UserProfile{ID: AdminID, Name: AdminName, AvatarColor: "slate", JoinedAt: now, Role: RoleAdmin}
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (UserProfile, error) {
	if id == AdminID {
		return AdminProfile(s.now()), nil
	}
	return s.repo.GetProfile(ctx, id)
}

// FindByName returns the listed profile with name.
func (s *Service) FindByName(ctx context.Context, name string) (UserProfile, error) {
	users, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return UserProfile{}, err
	}
	name = strings.TrimSpace(name)
	i := slices.IndexFunc(users, func(u UserProfile) bool { return u.Name == name })
	if i < 0 {
		return UserProfile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return users[i], nil
}

// List returns the saved profiles, oldest first. Guests are not listed.
func (s *Service) List(ctx context.Context) ([]UserProfile, error) {
	return s.repo.ListProfiles(ctx)
}

// Delete removes a profile and its progress.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == AdminID {
		return ErrAdminProfile
	}
	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	s.logger.Info().Str("id", id).Msg("profile deleted")
	return nil
}

// Progress loads the progress of id. Missing or unreadable records yield
// the defaults.
func (s *Service) Progress(ctx context.Context, id string) (game.State, error) {
	return s.repo.LoadProgress(ctx, id)
}

// SaveProgress persists st for id.
func (s *Service) SaveProgress(ctx context.Context, id string, st game.State) error {
	return s.repo.SaveProgress(ctx, id, st)
}

// ResetProgress restores and stores the default progress for id.
func (s *Service) ResetProgress(ctx context.Context, id string) (game.State, error) {
	st := game.NewState()
	if err := s.repo.SaveProgress(ctx, id, st); err != nil {
		return game.State{}, fmt.Errorf("reset progress: %w", err)
	}
	s.logger.Info().Str("id", id).Msg("progress reset")
	return st, nil
}

// Dashboard lists every saved profile with its progress, highest score
// first.
func (s *Service) Dashboard(ctx context.Context) ([]DashboardRow, error) {
	users, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]DashboardRow, 0, len(users))
	for _, u := range users {
		st, err := s.repo.LoadProgress(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, DashboardRow{Profile: u, Progress: st, Rank: game.RankFor(st.Score)})
	}
	slices.SortStableFunc(rows, func(a, b DashboardRow) int { return b.Progress.Score - a.Progress.Score })
	return rows, nil
}

func (s *Service) checkName(ctx context.Context, name, self string) error {
	users, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	for _, u := range users {
		if u.Name == name && u.ID != self {
			return ErrNameTaken
		}
	}
	return nil
}

func pickColor(color string) string {
	if slices.Contains(AvatarColors, color) {
		return color
	}
	return DefaultColor
}
