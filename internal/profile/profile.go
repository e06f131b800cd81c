// Package profile manages learner profiles, guest sessions and the admin
// login, and owns access to each profile's progress.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/patrickJVGH/FluentFlow/internal/game"
)

var (
	ErrEmptyName          = errors.New("Por favor, digite seu nome.")
	ErrNameTaken          = errors.New("Este nome já está em uso.")
	ErrInvalidCredentials = errors.New("Credenciais inválidas.")
	ErrNotFound           = errors.New("profile not found")
	ErrAdminProfile       = errors.New("the admin profile cannot be changed")
)

// Role of a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

const (
	GuestName = "Visitante"
	AdminID   = "admin"
	AdminName = "Administrador"

	adminUser     = "ADMIN"
	adminPassword = "123456"
)

// AvatarColors is the palette offered on profile creation.
var AvatarColors = []string{"indigo", "blue", "purple", "pink", "red", "orange", "green", "teal"}

// DefaultColor is used when no valid color is picked.
var DefaultColor = AvatarColors[0]

// UserProfile is one learner.
type UserProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AvatarColor string    `json:"avatarColor"`
	JoinedAt    time.Time `json:"joinedDate"`
	Role        Role      `json:"role"`
}

// Initial is the letter shown in the avatar badge.
func (p UserProfile) Initial() string {
	for _, r := range p.Name {
		return string([]rune{r})
	}
	return "V"
}

// IsGuest reports whether the profile is an unsaved guest.
func (p UserProfile) IsGuest() bool { return p.Role == RoleGuest }

// Repository persists profiles and progress.
type Repository interface {
	SaveProfile(ctx context.Context, p UserProfile) error
	GetProfile(ctx context.Context, id string) (UserProfile, error)
	ListProfiles(ctx context.Context) ([]UserProfile, error)
	DeleteProfile(ctx context.Context, id string) error
	LoadProgress(ctx context.Context, userID string) (game.State, error)
	SaveProgress(ctx context.Context, userID string, st game.State) error
}

// DashboardRow is one line of the admin dashboard.
type DashboardRow struct {
	Profile  UserProfile
	Progress game.State
	Rank     game.Rank
}
