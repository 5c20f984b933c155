package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framefeed/internal/catalog"
)

type playlistPayload struct {
	Source       string `json:"source"`
	PlaylistID   int64  `json:"playlist_id"`
	Name         string `json:"name"`
	PictureCount int    `json:"picture_count"`
	SrcVersion   int64  `json:"src_version"`
	LastImported string `json:"last_imported,omitempty"`
}

func newPlaylistsCommand(ctx *commandContext) *cobra.Command {
	var sourceName string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "playlists",
		Short: "List cataloged playlists and their import state",
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

			var all []catalog.Playlist
			for _, src := range cfg.Sources {
				if sourceName != "" && src.Name != sourceName {
					continue
				}
				playlists, err := store.Playlists(cmd.Context(), src.Name)
				if err != nil {
					return fmt.Errorf("list playlists for %s: %w", src.Name, err)
				}
				all = append(all, playlists...)
			}

			if asJSON {
				payload := make([]playlistPayload, 0, len(all))
				for _, pl := range all {
					payload = append(payload, playlistPayload{
						Source:       pl.Source,
						PlaylistID:   pl.PlaylistID,
						Name:         pl.Name,
						PictureCount: pl.PictureCount,
						SrcVersion:   pl.SrcVersion,
						LastImported: pl.LastImported,
					})
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No playlists in the catalog; run `framefeed import` first")
				return nil
			}

			rows := make([][]string, 0, len(all))
			for _, pl := range all {
				imported := pl.LastImported
				if imported == "" {
					imported = "never"
				}
				version := fmt.Sprintf("%d", pl.SrcVersion)
				if pl.SrcVersion < 0 {
					version = "-"
				}
				rows = append(rows, []string{
					pl.Source,
					fmt.Sprintf("%d", pl.PlaylistID),
					pl.Name,
					fmt.Sprintf("%d", pl.PictureCount),
					version,
					imported,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Source", "ID", "Name", "Pictures", "Version", "Last Imported"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "Limit output to one source")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
