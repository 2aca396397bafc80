package main

import (
	"github.com/spf13/cobra"

	"github.com/mathsolver/quizrag"
	"github.com/mathsolver/quizrag/application/service"
	"github.com/mathsolver/quizrag/domain/history"
)

// searchCmd retrieves the attempts most relevant to a question.
func searchCmd() *cobra.Command {
	var (
		topK     int
		category string
	)

	cmd := &cobra.Command{
		Use:   "search <user> <question>",
		Short: "Find prior attempts relevant to a question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			opts := []service.SearchOption{service.WithTopK(topK)}
			if category != "" {
				opts = append(opts, service.WithCategory(category))
			}

			results := client.History.SearchRelevantHistory(ctx, args[0], args[1], opts...)
			printResults(cmd, results)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", service.DefaultTopK, "number of results")
	cmd.Flags().StringVar(&category, "category", "", "restrict to a category")

	return cmd
}

func printResults(cmd *cobra.Command, results []history.ResultRecord) {
	if len(results) == 0 {
		cmd.Println("no matching attempts")
		return
	}
	for _, r := range results {
		status := "wrong"
		if r.IsCorrect() {
			status = "correct"
		}
		cmd.Printf("%s  [%s, %s]  %s = %g (expected %g, score %.3f)\n",
			r.Timestamp(), r.Category(), status,
			r.UserEquation(), r.UserAnswer(), r.CorrectAnswer(), r.Score())
		cmd.Printf("    %s\n", r.Question())
	}
}
