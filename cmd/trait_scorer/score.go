package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/observability"
	"github.com/spf13/cobra"
)

var scoreJSON bool

var scoreCmd = &cobra.Command{
	Use:   "score <profile> [reply-file]",
	Short: "Validate a model reply without calling the model",
	Long: `Extract the JSON object from a reply already obtained from the model and validate it
against a profile. The reply is read from reply-file, or from stdin when it is omitted or "-".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Print the outcome as JSON")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	service, err := newService(cfg, nil)
	if err != nil {
		return err
	}

	raw, err := readReply(cmd, args[1:])
	if err != nil {
		return err
	}

	out, err := service.Evaluate(args[0], raw)
	if out != nil {
		if printErr := printOutcome(cmd.OutOrStdout(), out, scoreJSON); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return fmt.Errorf("reply rejected: %w", err)
	}
	return nil
}

func readReply(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read reply from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read reply file: %w", err)
	}
	return string(data), nil
}

// printOutcome writes out as indented JSON or as the boxed summary.
func printOutcome(w io.Writer, out *analysis.Outcome, asJSON bool) error {
	if !asJSON {
		observability.NewPrinter(w).PrintOutcome(out)
		return nil
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
