// Package main provides the CLI entry point for FluentFlow.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/patrickJVGH/FluentFlow/internal/app"
)

var (
	// Version information (set at build time)
	version = "dev"

	dataDir  string
	logLevel string

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#6366F1"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Erro: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fluentflow",
		Short: "FluentFlow - English pronunciation practice for Portuguese speakers",
		Long: titleStyle.Render("FluentFlow") + `

Practice English pronunciation from the terminal:
• Guided course, topic practice and hard-word drills
• Free conversation with a tutor
• Scores, streaks and ranks saved per profile

` + dimStyle.Render("Use 'fluentflow [command] --help' for more information."),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.fluentflow)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		newPracticeCmd(),
		newSpeakCmd(),
		newServeCmd(),
		newUsersCmd(),
		newAdminCmd(),
		newProgressCmd(),
		newResetCmd(),
		newPhrasesCmd(),
		newKeyCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// openApp builds the application for one command. media selects the
// speech and microphone stack.
func openApp(media, headless bool) (*app.App, error) {
	return app.New(app.Options{
		Dir:      dataDir,
		LogLevel: logLevel,
		Media:    media,
		Headless: headless,
	})
}
