package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and a resource summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			summary := map[string]interface{}{"server": a.cfg.ServerURL}

			health, err := a.client.Health(ctx)
			if err != nil {
				summary["health"] = fmt.Sprintf("error: %v", err)
			} else {
				summary["health"] = health.Status
				if health.Version != "" {
					summary["version"] = health.Version
				}
			}

			if sc, err := a.client.ServerConfig(ctx); err != nil {
				summary["storage"] = fmt.Sprintf("error: %v", err)
			} else {
				summary["storage"] = sc.StorageConfig.Type
			}

			counts := map[string]int{}
			total := 0
			entries, err := a.manager.Resources(ctx, false)
			if err != nil {
				summary["resources"] = fmt.Sprintf("error: %v", err)
			} else {
				for _, e := range entries {
					total++
					if e.Err != nil {
						counts["invalid"]++
						continue
					}
					counts[string(e.Resource.ExecState.Status)]++
				}
				summary["resources"] = total
				summary["by_status"] = counts
			}

			out := cmd.OutOrStdout()
			if format := a.output(); format != "table" {
				return printOutput(out, format, summary)
			}

			fmt.Fprintln(out, "resourcectl status")
			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "  Server:     %s\n", a.cfg.ServerURL)
			fmt.Fprintf(out, "  Health:     %v\n", summary["health"])
			if v, ok := summary["version"]; ok {
				fmt.Fprintf(out, "  Version:    %v\n", v)
			}
			fmt.Fprintf(out, "  Storage:    %v\n", summary["storage"])
			if err != nil {
				fmt.Fprintf(out, "  Resources:  (error: %v)\n", err)
				return nil
			}

			statuses := make([]string, 0, len(counts))
			for s := range counts {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			parts := make([]string, 0, len(statuses))
			for _, s := range statuses {
				parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
			}
			fmt.Fprintf(out, "  Resources:  %d", total)
			if len(parts) > 0 {
				fmt.Fprintf(out, " (%s)", strings.Join(parts, ", "))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
