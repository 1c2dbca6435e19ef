// Package cli provides API client helper functions.
package cli

import (
	"context"
	"fmt"

	"github.com/incidentops/console/internal/api"
	"github.com/incidentops/console/internal/config"
)

// loadConfig loads configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if consoleURL != "" {
		cfg.URL = consoleURL
	}
	if apiToken != "" {
		cfg.APIToken = apiToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getAPIClient loads configuration and creates an API client. This is the
// standard way CLI commands obtain a client.
func getAPIClient() (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	client, err := api.NewClient(cfg, api.WithLogger(GetLogger().Zerolog()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return client, cfg, nil
}

// requestContext returns the signal-aware context, carrying the --reason
// flag when one was given.
func requestContext() context.Context {
	ctx := GetContext()
	if reason != "" {
		ctx = api.WithReason(ctx, reason)
	}
	return ctx
}
