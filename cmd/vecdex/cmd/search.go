package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vector index",
		Long: `Embed the query text and return the most similar indexed chunks
with their source files and similarity scores.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder, err := newEmbedder(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			index := newVectorIndex(cfg)
			defer func() { _ = index.Close() }()

			ctx := cmd.Context()
			if err := index.EnsureSchema(ctx, indexSchema(cfg)); err != nil {
				return err
			}

			vector, err := embedder.Embed(ctx, args[0])
			if err != nil {
				return err
			}

			results, err := index.Search(ctx, vector, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, res := range results {
				fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, res.Score, res.SourceFile)
				fmt.Fprintf(out, "   %s\n", truncate(res.ChunkText, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 5, "Number of results to return")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
