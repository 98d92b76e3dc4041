package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "prepflow",
	Short:         "Mock interview practice engine",
	Long:          "prepflow runs timed mock interview sessions with graded feedback,\nagainst either the hosted interviewer or a built-in question bank.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(resumesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
