// Package cli provides the command-line interface for irconsole.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/incidentops/console/internal/logging"
	"github.com/incidentops/console/internal/version"
)

var (
	// Global flags
	cfgFile    string
	consoleURL string
	apiToken   string
	reason     string
	verbose    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "irconsole",
		Short: "Incident response console for remote hosts",
		Long: `irconsole ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line console for browsing items, waiting on response flows and
fetching files from a remote incident-response endpoint.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose {
				logging.SetGlobalLevel(-1) // zerolog.DebugLevel
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&consoleURL, "url", "", "Console endpoint URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&reason, "reason", "", "Audit reason attached to every request")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newItemsCmd())
	rootCmd.AddCommand(newFlowsCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// Execute runs the root command with signal-driven cancellation.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
		cancelFunc()
	}()

	return NewRootCmd().Execute()
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context. It is cancelled when the user
// presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
