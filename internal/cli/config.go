package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/resourcectl/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage CLI configuration",
		Annotations: map[string]string{annotationLocal: "true"},
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigSetCmd(a))
	cmd.AddCommand(newConfigGetCmd(a))
	cmd.AddCommand(newConfigListCmd(a))

	return cmd
}

func (a *app) configPath() (string, error) {
	if a.cfgFile != "" {
		return a.cfgFile, nil
	}
	return config.DefaultPath()
}

func (a *app) writeConfig() error {
	path, err := a.configPath()
	if err != nil {
		return err
	}
	// Reject values that would make the next load fail
	if _, err := config.Load(a.v); err != nil {
		return err
	}
	return config.Write(a.v, path)
}

func newConfigInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			url := a.promptInput(out, fmt.Sprintf("Enter server URL [%s]: ", a.cfg.ServerURL))
			if url == "" {
				url = a.cfg.ServerURL
			}

			format := a.promptInput(out, fmt.Sprintf("Default output format (table/json/yaml) [%s]: ", a.cfg.Output))
			if format == "" {
				format = a.cfg.Output
			}

			a.v.Set("server_url", url)
			a.v.Set("output", format)

			if err := a.writeConfig(); err != nil {
				return err
			}
			path, _ := a.configPath()
			fmt.Fprintf(out, "Configuration saved to %s\n", path)
			fmt.Fprintln(out, "Run 'resourcectl auth set-key' to store an API key for this server")
			return nil
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !config.IsKnown(args[0]) {
				return fmt.Errorf("unknown config key %q", args[0])
			}
			a.v.Set(args[0], args[1])
			if err := a.writeConfig(); err != nil {
				return err
			}
			shown := args[1]
			if config.IsSensitive(args[0]) {
				shown = masked
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], shown)
			return nil
		},
	}
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			val := a.v.Get(args[0])
			switch {
			case val == nil || fmt.Sprint(val) == "":
				fmt.Fprintf(out, "%s: (not set)\n", args[0])
			case config.IsSensitive(args[0]):
				fmt.Fprintf(out, "%s: %s\n", args[0], masked)
			default:
				fmt.Fprintf(out, "%s: %v\n", args[0], val)
			}
			return nil
		},
	}
}

func newConfigListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, key := range config.Keys() {
				val := fmt.Sprint(a.v.Get(key))
				if config.IsSensitive(key) && val != "" {
					val = masked
				}
				fmt.Fprintf(out, "%s: %s\n", key, val)
			}
			return nil
		},
	}
}
