package cli

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgraph/internal/util"

	"github.com/spf13/cobra"
)

var (
	queryK int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		answer, err := application.Composer.Answer(cmd.Context(), strings.Join(args, " "), queryK)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, answer)
		}

		fmt.Fprintln(out, answer.Answer)
		if len(answer.Sources) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Sources:")
			for i, s := range answer.Sources {
				name := s.DocName
				if name == "" {
					name = s.DocumentID
				}
				fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, name, s.Score)
			}
		}
		if len(answer.NodesUsed) > 0 {
			fmt.Fprintf(out, "\nConcepts: %s\n", strings.Join(answer.NodesUsed, ", "))
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search chunks with hybrid vector and keyword ranking",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		results, err := application.Composer.Search(cmd.Context(), strings.Join(args, " "), queryK)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, results)
		}

		if len(results) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "  [%d] %s#%d (%.2f)\n", i+1, r.Chunk.DocumentID, r.Chunk.Seq, r.Score)
			fmt.Fprintf(out, "      %s\n", util.Truncate(strings.TrimSpace(r.Chunk.Text), 160, "..."))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&queryK, "top", "k", 10, "chunks to retrieve")
	searchCmd.Flags().IntVarP(&queryK, "top", "k", 10, "chunks to retrieve")
	rootCmd.AddCommand(askCmd, searchCmd)
}
