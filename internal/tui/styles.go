package tui

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#06B6D4")
	Accent    = lipgloss.Color("#F59E0B")

	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#171717", Dark: "#FAFAFA"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#525252", Dark: "#A3A3A3"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#737373", Dark: "#737373"}
	Border        = lipgloss.AdaptiveColor{Light: "#D4D4D4", Dark: "#333333"}
)

// avatarPalette maps profile colors to terminal colors.
var avatarPalette = map[string]lipgloss.Color{
	"indigo": "#6366F1",
	"blue":   "#3B82F6",
	"purple": "#A855F7",
	"pink":   "#EC4899",
	"red":    "#EF4444",
	"orange": "#F97316",
	"green":  "#22C55E",
	"teal":   "#14B8A6",
	"slate":  "#1E293B",
}

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(TextPrimary).
			Bold(true).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)

	CardActive = Card.BorderForeground(Primary)

	PhraseStyle = lipgloss.NewStyle().
			Foreground(TextPrimary).
			Bold(true)

	TranslationStyle = lipgloss.NewStyle().
				Foreground(TextSecondary).
				Italic(true)

	MutedStyle   = lipgloss.NewStyle().Foreground(TextMuted)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(TextPrimary).
			Background(lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#262626"}).
			Bold(true).
			Padding(0, 1)

	ItemStyle = lipgloss.NewStyle().
			Foreground(TextSecondary).
			Padding(0, 1)

	RecordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(Error).
			Bold(true).
			Padding(0, 1)

	TableHeader = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().Padding(0, 1)
)

func badge(color, initial string) string {
	c, ok := avatarPalette[color]
	if !ok {
		c = Primary
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(c).
		Bold(true).
		Padding(0, 1).
		Render(initial)
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 90:
		return SuccessStyle
	case score >= 70:
		return WarningStyle
	default:
		return ErrorStyle
	}
}
