package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patrickJVGH/FluentFlow/internal/config"
)

func newKeyCmd() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the generative service API key in the OS keychain",
		Long: `The key is looked up in config.yaml, then FLUENTFLOW_AI_API_KEY,
GEMINI_API_KEY and API_KEY, and finally the OS keychain.`,
	}

	setCmd := &cobra.Command{
		Use:   "set [api-key]",
		Short: "Save the API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.StoreAPIKey(args[0]); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ API key saved to the keychain"))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteAPIKey(); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ API key removed"))
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a key is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Config().AI.APIKey == "" {
				fmt.Println(errorStyle.Render("✗ No API key. Generation, scoring and cloud speech are disabled."))
				return nil
			}
			fmt.Println(successStyle.Render("✓ API key configured"))
			return nil
		},
	}

	keyCmd.AddCommand(setCmd, clearCmd, statusCmd)
	return keyCmd
}
