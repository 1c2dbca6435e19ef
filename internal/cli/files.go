// Package cli provides file retrieval commands.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/incidentops/console/internal/api"
	"github.com/incidentops/console/internal/progress"
)

// newFilesCmd creates the 'files' command group.
func newFilesCmd() *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "File operations (fetch)",
		Long:  `Commands for retrieving files collected on the remote host.`,
	}

	filesCmd.AddCommand(newFilesFetchCmd())

	return filesCmd
}

// newFilesFetchCmd creates the 'files fetch' command.
func newFilesFetchCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <remote-path>",
		Short: "Download a collected file",
		Long: `Download a file from the console endpoint, verifying access before
transfer starts.

Example:
  irconsole files fetch evidence/report.pdf -o ./report.pdf --reason "ticket IR-204"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			apiClient, _, err := getAPIClient()
			if err != nil {
				return err
			}

			remote := args[0]
			local := output
			if local == "" {
				local = filepath.Base(remote)
			}

			f, err := os.Create(local)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", local, err)
			}
			defer f.Close()

			reporter := progress.NewCLIProgress()
			reporter.Start(-1, filepath.Base(remote))

			logger.Info().Str("path", remote).Msg("Fetching file")
			n, err := apiClient.DownloadFile(requestContext(), "files/"+remote, nil, progress.NewWriter(f, reporter))
			if err != nil {
				reporter.Error(err)
				_ = os.Remove(local)

				var denied *api.UnauthorizedError
				if errors.As(err, &denied) {
					return fmt.Errorf("access denied for %s: %s (%s)", denied.Subject, denied.Reason, remote)
				}
				return fmt.Errorf("failed to fetch %s: %w", remote, err)
			}
			reporter.Finish()

			fmt.Printf("wrote %s (%d bytes)\n", local, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Local path to write (default: base name)")

	return cmd
}
