package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framefeed/internal/catalog"
)

type statusPayload struct {
	CatalogPath string `json:"catalog_path"`
	Healthy     bool   `json:"healthy"`
	Files       int    `json:"files"`
	Processed   int    `json:"processed"`
	Unprocessed int    `json:"unprocessed"`
	Failed      int    `json:"failed"`
	Playlists   int    `json:"playlists"`
	Error       string `json:"error,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog statistics and health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := catalog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read catalog stats: %w", err)
			}
			health := store.CheckHealth(cmd.Context())

			if asJSON {
				return writeJSON(cmd, statusPayload{
					CatalogPath: health.Path,
					Healthy:     health.Readable && health.IntegrityCheck,
					Files:       stats.Files,
					Processed:   stats.Processed,
					Unprocessed: stats.Unprocessed,
					Failed:      stats.Failed,
					Playlists:   stats.Playlists,
					Error:       health.Error,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog: %s\n", health.Path)
			fmt.Fprintf(out, "Healthy: %s\n", yesNo(health.Readable && health.IntegrityCheck))
			if health.Error != "" {
				fmt.Fprintf(out, "Health error: %s\n", health.Error)
			}
			rows := [][]string{
				{"Playlists", fmt.Sprintf("%d", stats.Playlists)},
				{"Files", fmt.Sprintf("%d", stats.Files)},
				{"Processed", fmt.Sprintf("%d", stats.Processed)},
				{"Unprocessed", fmt.Sprintf("%d", stats.Unprocessed)},
				{"Failed", fmt.Sprintf("%d", stats.Failed)},
			}
			fmt.Fprintln(out, renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
