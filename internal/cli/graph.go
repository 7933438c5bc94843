package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph counts and budget usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		st, usage, err := application.Graph.Budget().Usage(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, map[string]any{
				"docs":         st.Documents,
				"chunks":       st.Chunks,
				"concepts":     st.Concepts,
				"edges":        st.Edges,
				"total_bytes":  st.TotalBytes,
				"budget_mb":    usage.BudgetMB,
				"used_mb":      usage.UsedMB,
				"remaining_mb": usage.RemainingMB,
			})
		}

		fmt.Fprintf(out, "Documents: %d\n", st.Documents)
		fmt.Fprintf(out, "Chunks:    %d\n", st.Chunks)
		fmt.Fprintf(out, "Concepts:  %d\n", st.Concepts)
		fmt.Fprintf(out, "Edges:     %d\n", st.Edges)
		fmt.Fprintf(out, "Budget:    %.2f / %.0f MB used (%.2f MB left)\n", usage.UsedMB, usage.BudgetMB, usage.RemainingMB)
		return nil
	},
}

var communitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Recompute concept communities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		ok := application.Scheduler.RunNow(cmd.Context())
		info := application.Detector.LastRun()
		if jsonOutput {
			if err := printJSON(cmd, info); err != nil {
				return err
			}
		} else if ok {
			fmt.Fprintf(out, "%d communities over %d concepts (%s, %s)\n",
				info.Communities, info.Concepts, info.Method, info.Duration)
		}
		if !ok {
			return errors.New("community detection did not complete")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, communitiesCmd)
}
