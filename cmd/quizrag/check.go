package main

import (
	"github.com/spf13/cobra"

	"github.com/mathsolver/quizrag"
	"github.com/mathsolver/quizrag/infrastructure/provider"
)

// checkCmd verifies storage connectivity and embedding endpoint health.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check storage and embedding endpoint connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := quizrag.New(ctx, quizrag.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			if client.History.IsConnected(ctx) {
				cmd.Printf("storage: connected (%s)\n", cfg.Backend())
			} else {
				cmd.Printf("storage: NOT connected (%s)\n", cfg.Backend())
			}

			embedder := provider.NewOpenAIEmbedder(cfg.Embedding(), nil)
			if !cfg.Embedding().Enabled() {
				cmd.Println("embeddings: disabled by configuration")
				return nil
			}
			if dim, err := embedder.Dimension(ctx); err == nil {
				cmd.Printf("embeddings: available (model %s, dimension %d)\n",
					cfg.Embedding().ModelName(), dim)
			} else {
				cmd.Printf("embeddings: NOT available (%v)\n", err)
			}
			return nil
		},
	}
}
