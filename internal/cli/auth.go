package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "auth",
		Short:       "Manage the API key stored in the OS keyring",
		Annotations: map[string]string{annotationLocal: "true"},
	}

	cmd.AddCommand(newAuthSetKeyCmd(a))
	cmd.AddCommand(newAuthClearCmd(a))
	cmd.AddCommand(newAuthShowCmd(a))

	return cmd
}

func newAuthSetKeyCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the API key for the configured server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = a.promptSecret(cmd.ErrOrStderr(), "API key: ")
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("API key must not be empty")
			}

			if err := a.keys.SetAPIKey(a.cfg.ServerURL, key); err != nil {
				return fmt.Errorf("failed to store API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key stored for %s\n", a.cfg.ServerURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (prompted for when omitted)")
	return cmd
}

func newAuthClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key for the configured server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.keys.DeleteAPIKey(a.cfg.ServerURL); err != nil {
				return fmt.Errorf("failed to clear API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key removed for %s\n", a.cfg.ServerURL)
			return nil
		},
	}
}

func newAuthShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show where the API key for the configured server comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.cfg.APIKey != "" {
				fmt.Fprintf(out, "%s: API key set by flag, environment or config file\n", a.cfg.ServerURL)
				return nil
			}
			key, err := a.keys.APIKey(a.cfg.ServerURL)
			if err != nil {
				return fmt.Errorf("failed to read keyring: %w", err)
			}
			if key == "" {
				fmt.Fprintf(out, "%s: no API key\n", a.cfg.ServerURL)
				return nil
			}
			fmt.Fprintf(out, "%s: API key stored in keyring\n", a.cfg.ServerURL)
			return nil
		},
	}
}
