package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vecdex/vecdex/internal/embed"
	"github.com/vecdex/vecdex/internal/embedserver"
)

func newServeCmd() *cobra.Command {
	var addr string
	var dims int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local /v1/embeddings endpoint",
		Long: `Run a local embedding server speaking the OpenAI embeddings wire
format, backed by the deterministic static embedder. Point the
pipeline's embedding endpoint at it to index without a hosted model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder := embed.NewStaticEmbedder(dims)
			defer func() { _ = embedder.Close() }()

			srv := embedserver.New(embedserver.Config{Addr: addr}, embedder)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().IntVar(&dims, "dims", embed.DefaultDimensions, "Embedding dimensions")

	return cmd
}
