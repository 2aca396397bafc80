package main

import (
	"github.com/spf13/cobra"

	"github.com/mathsolver/quizrag"
	"github.com/mathsolver/quizrag/application/service"
	"github.com/mathsolver/quizrag/domain/history"
)

// historyCmd lists a user's attempts, newest first.
func historyCmd() *cobra.Command {
	var (
		limit    int
		category string
	)

	cmd := &cobra.Command{
		Use:   "history <user>",
		Short: "List a user's quiz attempts",
		Args:  cobra.ExactArgs(1),
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

			opts := []service.SearchOption{service.WithLimit(limit)}
			if category != "" {
				opts = append(opts, service.WithCategory(category))
			}

			printHistory(cmd, client.History.GetUserHistory(ctx, args[0], opts...))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", service.DefaultLimit, "maximum entries")
	cmd.Flags().StringVar(&category, "category", "", "restrict to a category")

	return cmd
}

func printHistory(cmd *cobra.Command, entries []history.Document) {
	if len(entries) == 0 {
		cmd.Println("no attempts recorded")
		return
	}
	for _, e := range entries {
		status := "wrong"
		if history.BoolField(e, history.FieldIsCorrect) {
			status = "correct"
		}
		cmd.Printf("%s  [%s, %s]  %s = %g (expected %g)\n",
			history.StringField(e, history.FieldTimestamp),
			history.StringField(e, history.FieldCategory), status,
			history.StringField(e, history.FieldUserEquation),
			history.FloatField(e, history.FieldUserAnswer),
			history.FloatField(e, history.FieldCorrectAnswer))
		cmd.Printf("    %s\n", history.StringField(e, history.FieldQuestion))
	}
}
