package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mathsolver/quizrag"
	"github.com/mathsolver/quizrag/domain/history"
)

// addCmd records one quiz attempt.
func addCmd() *cobra.Command {
	var (
		username      string
		question      string
		equation      string
		userAnswer    float64
		correctAnswer float64
		category      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a quiz attempt",
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

			record := history.NewRecord(username, question, equation,
				userAnswer, correctAnswer, userAnswer == correctAnswer, category)

			id, err := client.History.Add(ctx, record)

			var partial *history.PartialWriteError
			if errors.As(err, &partial) && !partial.Compensated() {
				cmd.PrintErrf("warning: %v\n", partial)
				err = nil
			}
			if err != nil {
				return err
			}

			cmd.Printf("stored %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "username (required)")
	cmd.Flags().StringVar(&question, "question", "", "question text (required)")
	cmd.Flags().StringVar(&equation, "equation", "", "user's expression (required)")
	cmd.Flags().Float64Var(&userAnswer, "answer", 0, "user's answer")
	cmd.Flags().Float64Var(&correctAnswer, "correct-answer", 0, "expected answer")
	cmd.Flags().StringVar(&category, "category", "", "category tag")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("equation")

	return cmd
}
