package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vecdex/vecdex/internal/config"
	"github.com/vecdex/vecdex/internal/extract"
	"github.com/vecdex/vecdex/internal/pipeline"
)

func newIngestCmd() *cobra.Command {
	var corpusDir string
	var workers int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the corpus directory",
		Long: `Process every supported document in the corpus directory: extract
text, chunk it, embed the chunks, and write them to the vector index.

Failures are isolated per document; the run continues and the final
summary reports what succeeded, failed, and was skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if corpusDir != "" {
				cfg.CorpusDir = corpusDir
			}
			if workers > 0 {
				cfg.Pipeline.Workers = workers
			}
			return runIngest(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&corpusDir, "corpus", "", "Corpus directory (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent document workers (overrides config)")

	return cmd
}

func runIngest(cmd *cobra.Command, cfg *config.Config) error {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	index := newVectorIndex(cfg)
	defer func() { _ = index.Close() }()

	runner := pipeline.NewRunner(pipeline.Config{
		CorpusDir:        cfg.CorpusDir,
		ChunkSize:        cfg.ChunkSize,
		Schema:           indexSchema(cfg),
		Workers:          cfg.Pipeline.Workers,
		DeterministicIDs: cfg.Index.DeterministicIDs,
		LockFile:         lockFile(cfg),
		Progress:         true,
	}, extract.NewFileExtractor(), embedder, index)

	summary, runErr := runner.Run(cmd.Context())
	if summary != nil {
		printSummary(cmd, summary)
	}
	if runErr != nil {
		return runErr
	}
	if summary != nil && summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed", summary.Failed)
	}
	return nil
}

func printSummary(cmd *cobra.Command, summary *pipeline.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d chunk(s) from %d document(s) in %s\n",
		summary.ChunksIndexed, summary.Succeeded, summary.Duration.Round(time.Millisecond))
	if summary.Partial > 0 {
		fmt.Fprintf(out, "Partial: %d\n", summary.Partial)
	}
	if summary.Failed > 0 {
		fmt.Fprintf(out, "Failed:  %d\n", summary.Failed)
		for _, res := range summary.Results {
			if res.Status == pipeline.StatusFailed {
				fmt.Fprintf(out, "  %s (%s): %v\n", res.SourceFile, res.FailedStage, res.Err)
			}
		}
	}
}
