package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var profilesJSON bool

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the scoring profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

var traitsCmd = &cobra.Command{
	Use:   "traits [trait]...",
	Short: "Print the trait descriptions used in prompts",
	RunE:  runTraits,
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesJSON, "json", false, "Print the profiles as JSON")
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(traitsCmd)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func runProfiles(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	service, err := newService(cfg, nil)
	if err != nil {
		return err
	}

	all := service.Profiles().All()
	w := cmd.OutOrStdout()
	if profilesJSON {
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal profiles: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	for _, p := range all {
		fmt.Fprintf(w, "%s\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(w, "  %s\n", p.Description)
		}
		fmt.Fprintf(w, "  traits: %s\n", strings.Join(p.Traits, ", "))
		if p.Scored() {
			fmt.Fprintf(w, "  regions: %s (total %d each, explanation %s)\n",
				strings.Join(p.Regions, ", "), p.RequiredTotal, p.Explanation)
		} else {
			fmt.Fprintln(w, "  free-text classification")
		}
	}
	return nil
}

func runTraits(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	service, err := newService(cfg, nil)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), service.Catalog().Text(args...))
	return err
}
