package main

import (
	"context"
	"fmt"

	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/imaging"
	"github.com/jonathan/trait-scorer/internal/profiles"
	"github.com/spf13/cobra"
)

var (
	analyzeReport bool
	analyzeJSON   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <profile> <image>...",
	Short: "Score photos with the model",
	Long: `Send one or more JPEG or PNG photos to the model and validate the reply against a
profile. The "classification" profile returns the model's free-text classification instead.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeReport, "report", false, "Also generate a narrative report once the scores validate")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the outcome as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	sources := make([]imaging.Source, 0, len(args)-1)
	for _, path := range args[1:] {
		sources = append(sources, imaging.FileSource(path))
	}
	images, err := imagePolicy(cfg).ReadAll(ctx, sources)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	service, err := newService(cfg, client)
	if err != nil {
		return err
	}

	var out *analysis.Outcome
	if args[0] == profiles.Classification {
		out, err = service.Classify(ctx, images)
	} else {
		out, err = service.Score(ctx, analysis.Request{Profile: args[0], Images: images, Report: analyzeReport})
	}
	if out != nil {
		if printErr := printOutcome(cmd.OutOrStdout(), out, analyzeJSON); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return nil
}
