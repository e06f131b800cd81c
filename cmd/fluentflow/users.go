package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patrickJVGH/FluentFlow/internal/game"
	"github.com/patrickJVGH/FluentFlow/internal/phrase"
	"github.com/patrickJVGH/FluentFlow/internal/profile"
	"github.com/patrickJVGH/FluentFlow/internal/tui"
)

func newUsersCmd() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage learner profiles",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Profiles.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list profiles: %w", err)
			}
			if len(users) == 0 {
				fmt.Println(dimStyle.Render("No profiles yet. Create one with 'fluentflow users create [name]'"))
				return nil
			}

			fmt.Println(titleStyle.Render("Profiles"))
			fmt.Println()
			for _, u := range users {
				fmt.Printf("%s %s\n", successStyle.Render("●"), u.Name)
				fmt.Printf("  %s\n", dimStyle.Render(u.ID+" | "+u.AvatarColor+" | "+u.JoinedAt.Format("02/01/2006")))
			}
			return nil
		},
	}

	var color string
	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Profiles.Create(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ Profile created: " + p.Name))
			fmt.Printf("  ID: %s\n", dimStyle.Render(p.ID))
			return nil
		},
	}
	createCmd.Flags().StringVar(&color, "color", profile.DefaultColor, "avatar color")

	deleteCmd := &cobra.Command{
		Use:   "delete [name-or-id]",
		Short: "Delete a profile and its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := findUser(cmd.Context(), a.Profiles, args[0])
			if err != nil {
				return err
			}
			if err := a.Profiles.Delete(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ Deleted " + p.Name))
			return nil
		},
	}

	var promoteColor string
	promoteCmd := &cobra.Command{
		Use:   "promote [guest-id] [name]",
		Short: "Turn a guest session into a saved profile",
		Long:  "Give a guest a name. Progress made as a guest is kept.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Profiles.Save(cmd.Context(), args[0], args[1], promoteColor)
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ Saved profile " + p.Name))
			return nil
		},
	}
	promoteCmd.Flags().StringVar(&promoteColor, "color", profile.DefaultColor, "avatar color")

	usersCmd.AddCommand(listCmd, createCmd, deleteCmd, promoteCmd)
	return usersCmd
}

func newAdminCmd() *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Show every learner's progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Profiles.AdminLogin(user, password); err != nil {
				return err
			}
			rows, err := a.Profiles.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Painel do administrador"))
			fmt.Println()
			fmt.Println(tui.DashboardTable(rows, -1))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "ADMIN", "admin user")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

func newProgressCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a learner's rank, stats and recent history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := findUser(cmd.Context(), a.Profiles, user)
			if err != nil {
				return err
			}
			st, err := a.Profiles.Progress(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			printProgress(p, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "profile name or id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newResetCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a learner's progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := findUser(cmd.Context(), a.Profiles, user)
			if err != nil {
				return err
			}
			if _, err := a.Profiles.ResetProgress(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ Progress reset for " + p.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "profile name or id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newPhrasesCmd() *cobra.Command {
	var from, count int
	cmd := &cobra.Command{
		Use:   "phrases",
		Short: "Print a batch of the curated course",
		RunE: func(cmd *cobra.Command, args []string) error {
			printPhrases(phrase.Curated().Batch(from, count))
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "course index to start at")
	cmd.Flags().IntVar(&count, "count", 5, "number of phrases")
	return cmd
}

// findUser resolves a profile by id first, then by name. A miss suggests
// the closest saved name.
func findUser(ctx context.Context, profiles *profile.Service, ref string) (profile.UserProfile, error) {
	if p, err := profiles.Get(ctx, ref); err == nil {
		return p, nil
	}
	p, err := profiles.FindByName(ctx, ref)
	if err == nil || !errors.Is(err, profile.ErrNotFound) {
		return p, err
	}
	if similar, _ := profiles.Search(ctx, ref); len(similar) > 0 {
		return p, fmt.Errorf("%w (did you mean %q?)", err, similar[0].Name)
	}
	return p, err
}

func printProgress(p profile.UserProfile, st game.State) {
	rank := game.RankFor(st.Score)
	fmt.Println(titleStyle.Render(p.Name) + " " + dimStyle.Render(rank.Title))
	fmt.Println()
	fmt.Printf("  Pontos:    %d\n", st.Score)
	fmt.Printf("  Sequência: %d\n", st.Streak)
	fmt.Printf("  Nível:     %d\n", st.CurrentLevel)
	fmt.Printf("  Frases:    %d\n", st.PhrasesCompleted)
	if next, ok := game.NextRank(st.Score); ok {
		fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("%d pontos para %s", next.MinScore-st.Score, next.Title)))
	}

	recent := st.Recent(7)
	if len(recent) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(titleStyle.Render("Últimos dias"))
	for _, h := range recent {
		fmt.Printf("  %s  %5d\n", dimStyle.Render(h.Date), h.Score)
	}
}

func printPhrases(items []phrase.Phrase) {
	for _, p := range items {
		fmt.Printf("%s %s\n", dimStyle.Render(fmt.Sprintf("[%-6s]", strings.ToUpper(string(p.Difficulty)))), p.English)
		fmt.Printf("    %s\n", dimStyle.Render(p.Portuguese))
	}
}
