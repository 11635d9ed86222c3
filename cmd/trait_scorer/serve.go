package main

import (
	"context"
	"fmt"

	"github.com/jonathan/trait-scorer/internal/db"
	"github.com/jonathan/trait-scorer/internal/server"
	"github.com/jonathan/trait-scorer/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort  int
	serveDBURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing the scoring, classification and validation endpoints.
When a database URL is configured every analysis is recorded and the /analyses
endpoints are enabled.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().StringVar(&serveDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = serveDBURL
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

	srvCfg := server.Config{
		Port:      cfg.Port,
		Service:   service,
		Images:    imagePolicy(cfg),
		RateLimit: ratelimit.LoadConfig(),
		Logger:    logger,
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		service.SetRecorder(database)
		srvCfg.Store = database
		logger.Info("analysis history enabled")
	} else {
		logger.Info("no database configured, analysis history disabled")
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("serving",
		zap.Strings("profiles", service.Profiles().Names()),
		zap.String("traits", service.Catalog().Source()),
		zap.String("scoring_model", client.GetModel(service.Options().ScoringTier)),
	)
	return srv.Start()
}
