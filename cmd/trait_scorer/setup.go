package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/config"
	"github.com/jonathan/trait-scorer/internal/imaging"
	"github.com/jonathan/trait-scorer/internal/llm"
	"github.com/jonathan/trait-scorer/internal/profiles"
	"github.com/jonathan/trait-scorer/internal/traits"
	"github.com/spf13/cobra"
)

// loadSettings resolves the configuration: file first, then environment, then flags,
// then defaults for whatever is still unset.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
		logger.Debug("loaded config file")
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("traits-dir") {
		cfg.TraitsDir = traitsDir
	}
	if flags.Changed("profiles") {
		cfg.ProfilesFile = profilesFile
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newService builds the analysis service. client may be nil for commands that
// never call the model.
func newService(cfg config.Config, client llm.Client) (*analysis.Service, error) {
	catalog, err := traits.Load(cfg.TraitsDir)
	if err != nil {
		return nil, err
	}
	registry, err := profiles.Load(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}

	opts := analysis.DefaultOptions()
	opts.MaxAttempts = cfg.MaxAttempts
	opts.MaxConcurrent = int64(cfg.MaxConcurrent)
	opts.CallInterval = time.Duration(cfg.CallIntervalMS) * time.Millisecond

	return analysis.New(client, registry, catalog, opts, logger), nil
}

// newClient connects to the model provider with the configured model overrides.
func newClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable (or api_key in the config file) is required")
	}

	llmConfig := llm.DefaultConfig()
	if cfg.ScoringModel != "" {
		llmConfig = llmConfig.WithModel(llm.TierStandard, cfg.ScoringModel)
	}
	if cfg.ReportModel != "" {
		llmConfig = llmConfig.WithModel(llm.TierLite, cfg.ReportModel)
	}
	return llm.NewClient(ctx, llmConfig, cfg.APIKey)
}

// imagePolicy is the upload policy for cfg.
func imagePolicy(cfg config.Config) imaging.Policy {
	policy := imaging.DefaultPolicy()
	if cfg.MaxImageBytes > 0 {
		policy.MaxBytes = cfg.MaxImageBytes
	}
	return policy
}
