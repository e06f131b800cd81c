package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/patrickJVGH/FluentFlow/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change learner preferences",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := loadConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(l.Path())
			if err != nil {
				return err
			}
			fmt.Println(dimStyle.Render(l.Path()))
			fmt.Println(string(raw))
			return nil
		},
	}

	sfxCmd := &cobra.Command{
		Use:       "sfx [on|off]",
		Short:     "Turn sound effects on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "on" && args[0] != "off" {
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			return updateConfig(func(c *config.Config) { c.UI.SFXEnabled = args[0] == "on" })
		},
	}

	volumeCmd := &cobra.Command{
		Use:   "volume [0-100]",
		Short: "Set the speech volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 || v > 100 {
				return fmt.Errorf("volume must be between 0 and 100")
			}
			return updateConfig(func(c *config.Config) { c.Audio.OutputVolume = v })
		},
	}

	configCmd.AddCommand(showCmd, sfxCmd, volumeCmd)
	return configCmd
}

func loadConfig() (*config.Loader, *config.Config, error) {
	dir := dataDir
	if dir == "" {
		dir = config.DefaultDir()
	}
	l, err := config.NewLoader(dir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := l.Load()
	if err != nil {
		return nil, nil, err
	}
	return l, cfg, nil
}

// updateConfig edits and saves config.yaml. A running practice session
// picks the change up through its file watcher.
func updateConfig(edit func(*config.Config)) error {
	l, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	edit(cfg)
	if err := l.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Println(successStyle.Render("✓ Saved " + l.Path()))
	return nil
}
