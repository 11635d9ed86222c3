// Package main provides the trait_scorer CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/jonathan/trait-scorer/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath   string
	verbose      bool
	traitsDir    string
	profilesFile string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "trait_scorer",
	Short: "Character trait scoring from photos",
	Long: `trait_scorer asks a vision model to score body or face regions against the five
character traits, then extracts and validates the reply before returning it.

Run "serve" for the HTTP API, "analyze" to score photos from the command line, or
"score" to validate a reply obtained elsewhere.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		l, err := observability.NewLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&traitsDir, "traits-dir", "", "Directory of <trait>.txt descriptions (defaults to the bundled ones)")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "", "YAML or JSON file with extra or overriding profiles")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
