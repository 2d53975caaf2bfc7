package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// statsOutput is the JSON output format for index stats.
type statsOutput struct {
	Index     string `json:"index"`
	Backend   string `json:"backend"`
	Documents int    `json:"documents"`
	Model     string `json:"model"`
	Dims      int    `json:"dimensions"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Display the index name, backend, document count, and embedding configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			index := newVectorIndex(cfg)
			defer func() { _ = index.Close() }()

			ctx := cmd.Context()
			if err := index.EnsureSchema(ctx, indexSchema(cfg)); err != nil {
				return err
			}

			count, err := index.Count(ctx)
			if err != nil {
				return err
			}

			stats := statsOutput{
				Index:     cfg.Index.Name,
				Backend:   cfg.Index.Backend,
				Documents: count,
				Model:     cfg.Embedding.Model,
				Dims:      cfg.Embedding.Dimensions,
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "Index:      %s (%s)\n", stats.Index, stats.Backend)
			fmt.Fprintf(out, "Documents:  %d\n", stats.Documents)
			fmt.Fprintf(out, "Model:      %s (%d dims)\n", stats.Model, stats.Dims)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
