package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickJVGH/FluentFlow/internal/tui"
)

func newPracticeCmd() *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Start the interactive practice app",
		Long:  "Log in or pick a profile, then practice phrases, words or free conversation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true, false)
			if err != nil {
				return err
			}
			defer a.Close()
			a.WatchConfig()

			ctx := cmd.Context()
			if serve {
				go func() {
					if err := a.Serve(ctx); err != nil {
						a.Logger.Error().Err(err).Msg("avatar feed stopped")
					}
				}()
			}

			model := tui.NewApp(a.Session, a.Profiles, a.Logger)
			return tui.Run(ctx, model, a.Session.OnChange)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "also run the avatar feed and metrics endpoint")
	return cmd
}

func newSpeakCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Say a text with the tutor voice",
		Long:  "Synthesize a text through the same fallback chain the practice app uses.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true, headless)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Speak(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ " + string(out.Status)))
			fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("source: %s %s | %s", out.Source, out.Provider, out.Elapsed.Round(time.Millisecond))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&headless, "silent", false, "synthesize without a sound device")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the avatar feed, metrics endpoint and cleanup jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(true, true)
			if err != nil {
				return err
			}
			defer a.Close()
			a.WatchConfig()

			cfg := a.Config().Server
			fmt.Println(titleStyle.Render("FluentFlow server"))
			fmt.Printf("  Avatar:  %s\n", dimStyle.Render("ws://"+cfg.Addr+cfg.AvatarPath))
			fmt.Printf("  Metrics: %s\n", dimStyle.Render("http://"+cfg.Addr+cfg.MetricsPath))
			return a.Serve(cmd.Context())
		},
	}
}
