// Package cli provides item browsing commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/incidentops/console/internal/loading"
	"github.com/incidentops/console/internal/provider"
	"github.com/incidentops/console/internal/table"
)

// newItemsCmd creates the 'items' command group.
func newItemsCmd() *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Item operations (list, watch)",
		Long:  `Commands for browsing collections exposed by the console endpoint.`,
	}

	itemsCmd.AddCommand(newItemsListCmd())
	itemsCmd.AddCommand(newItemsWatchCmd())

	return itemsCmd
}

// newItemsListCmd creates the 'items list' command.
func newItemsListCmd() *cobra.Command {
	var (
		collection string
		page       int
		pageSize   int
		filter     string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of a collection",
		Long: `List items from a collection on the console endpoint.

Example:
  # First page of items
  irconsole items list

  # Third page of the processes collection
  irconsole items list --collection processes --page 2

  # Everything matching a filter
  irconsole items list --filter chrome --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			apiClient, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if pageSize <= 0 {
				pageSize = cfg.Tables.PageSize
			}

			prov := provider.NewRemoteProvider(apiClient, collection)
			renderer := table.NewTextRenderer()
			tbl := table.NewPagedTable(renderer, table.Config{
				PageSize:     pageSize,
				FetchTimeout: cfg.FetchTimeout(),
				Logger:       logger,
			})

			logger.Info().Str("collection", collection).Msg("Fetching items")
			tbl.Initialize(prov)
			tbl.Wait()

			if filter != "" {
				tbl.ApplyFilter(filter)
				tbl.Wait()
				for all && !tbl.FilterExhausted() {
					tbl.FetchMore(1)
					tbl.Wait()
				}
			} else if page > 0 {
				tbl.ChangePage(page)
				tbl.Wait()
			}

			if _, err := renderer.WriteTo(os.Stdout); err != nil {
				return fmt.Errorf("failed to write items: %w", err)
			}
			if total, ok := tbl.TotalCount(); ok && filter == "" {
				fmt.Fprintf(os.Stderr, "page %d of %d items\n", tbl.CurrentPage(), total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "items", "Collection path on the endpoint")
	cmd.Flags().IntVar(&page, "page", 0, "Page index to show")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Items per page (0 = from config)")
	cmd.Flags().StringVar(&filter, "filter", "", "Server-side filter text")
	cmd.Flags().BoolVar(&all, "all", false, "With --filter, keep fetching until exhausted")

	return cmd
}

// newItemsWatchCmd creates the 'items watch' command.
func newItemsWatchCmd() *cobra.Command {
	var (
		collection string
		pageSize   int
		filter     string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously load and refresh a collection",
		Long: `Incrementally load a collection and keep the first page fresh,
re-printing the table whenever it changes. Runs until interrupted.

Example:
  irconsole items watch --collection flows --refresh 5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			apiClient, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if pageSize <= 0 {
				pageSize = cfg.Tables.PageSize
			}

			reg := loading.NewRegistry()
			prov := provider.NewRemoteProvider(apiClient, collection)
			renderer := table.NewTextRenderer()
			tbl := table.NewIncrementalTable(renderer, table.NewStdTimer(), table.IncrementalConfig{
				Config: table.Config{
					PageSize:     pageSize,
					FetchTimeout: cfg.FetchTimeout(),
					Logger:       logger,
					Loading:      reg,
					LoadingKey:   collection,
				},
				AutoRefresh:         true,
				AutoRefreshInterval: interval,
			})
			defer tbl.Stop()

			if filter != "" {
				tbl.SetFilter(filter)
			}
			tbl.Bind(prov)

			ctx := requestContext()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					fmt.Print("\033[H\033[2J")
					if _, err := renderer.WriteTo(os.Stdout); err != nil {
						return fmt.Errorf("failed to write items: %w", err)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "items", "Collection path on the endpoint")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Items per page (0 = from config)")
	cmd.Flags().StringVar(&filter, "filter", "", "Server-side filter text")
	cmd.Flags().DurationVar(&interval, "refresh", 5*time.Second, "Refresh and redraw interval")

	return cmd
}
