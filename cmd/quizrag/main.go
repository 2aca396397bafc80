// Package main is the entry point for the quizrag CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mathsolver/quizrag/internal/config"
	"github.com/mathsolver/quizrag/internal/log"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizrag",
		Short: "Quiz history storage and retrieval",
		Long:  `quizrag stores math-quiz attempts with embedding vectors and retrieves relevant prior attempts for prompt context.`,
	}

	cmd.AddCommand(checkCmd())
	cmd.AddCommand(addCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(historyCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig reads configuration from the .env file and environment.
func loadConfig() (config.AppConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	log.Configure(cfg)
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("quizrag %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
