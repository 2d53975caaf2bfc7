package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vecdex/vecdex/internal/fetch"
)

func newFetchCmd() *cobra.Command {
	var maxResults int
	var outputDir string

	cmd := &cobra.Command{
		Use:   "fetch <query>",
		Short: "Download papers from arXiv into the corpus directory",
		Long: `Search the arXiv API for papers matching the query and download
their PDFs into the corpus directory. Papers already present are
skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := outputDir
			if dir == "" {
				dir = cfg.CorpusDir
			}

			fetcher := fetch.NewFetcher(fetch.Config{OutputDir: dir})
			results, err := fetcher.Fetch(cmd.Context(), args[0], maxResults)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			downloaded, skipped, failed := 0, 0, 0
			for _, res := range results {
				switch {
				case res.ErrorMsg != "":
					failed++
					fmt.Fprintf(out, "failed:  %s (%s)\n", res.Paper.Title, res.ErrorMsg)
				case res.Skipped:
					skipped++
				default:
					downloaded++
					fmt.Fprintf(out, "fetched: %s\n", res.Path)
				}
			}
			fmt.Fprintf(out, "Downloaded %d, skipped %d, failed %d\n",
				downloaded, skipped, failed)

			if failed > 0 {
				return fmt.Errorf("%d download(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 10, "Maximum papers to fetch")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (defaults to corpus_dir)")

	return cmd
}
