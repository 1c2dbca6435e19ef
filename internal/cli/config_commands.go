// Package cli provides configuration commands.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/incidentops/console/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration operations (show, set)",
		Long:  `Commands for viewing and editing the irconsole configuration file.`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())

	return configCmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			fmt.Printf("url:                   %s\n", cfg.URL)
			fmt.Printf("api_token:             %s\n", maskToken(cfg.APIToken))
			fmt.Printf("page_size:             %d\n", cfg.Tables.PageSize)
			fmt.Printf("fetch_timeout_seconds: %d\n", cfg.Tables.FetchTimeoutSeconds)
			fmt.Printf("interval_seconds:      %d\n", cfg.Polling.IntervalSeconds)
			return nil
		},
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set one configuration key and write the file back.

Keys: url, api_token, page_size, fetch_timeout_seconds, interval_seconds`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			if err := applyConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}

			path := cfgFile
			if path == "" {
				path, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	return cmd
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "url":
		cfg.URL = value
	case "api_token":
		cfg.APIToken = value
	case "page_size", "fetch_timeout_seconds", "interval_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s requires an integer, got %q", key, value)
		}
		switch key {
		case "page_size":
			cfg.Tables.PageSize = n
		case "fetch_timeout_seconds":
			cfg.Tables.FetchTimeoutSeconds = n
		case "interval_seconds":
			cfg.Polling.IntervalSeconds = n
		}
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
