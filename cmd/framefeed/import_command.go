package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"framefeed/internal/catalog"
	"framefeed/internal/config"
	"framefeed/internal/importer"
	"framefeed/internal/notifications"
	"framefeed/internal/processing"
	"framefeed/internal/source"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var sourceName string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import new media from configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			sources, err := selectSources(cfg, sourceName)
			if err != nil {
				return err
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			store, err := catalog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			factory := importer.NewWriterFactory(catalog.NewFactory(cfg))
			notifier := notifications.NewService(cfg)
			processor := processing.NewSniffer(logger)

			out := cmd.OutOrStdout()
			var failedSources int
			for _, srcCfg := range sources {
				src, err := source.NewNixplay(srcCfg, logger)
				if err != nil {
					return fmt.Errorf("source %s: %w", srcCfg.Name, err)
				}

				session, err := importer.NewSession(cfg, src, store, factory, processor, notifier, logger)
				if err != nil {
					return err
				}
				session.DryRun = dryRun

				report, err := session.Run(runCtx)
				if err != nil {
					if runCtx.Err() != nil {
						return runCtx.Err()
					}
					fmt.Fprintf(out, "Import from %s failed: %v\n", srcCfg.Name, err)
					failedSources++
					continue
				}
				printReport(cmd, report, dryRun)
			}

			if failedSources > 0 {
				return fmt.Errorf("%d of %d sources failed", failedSources, len(sources))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "Import only the named source")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the import without downloading anything")
	return cmd
}

func selectSources(cfg *config.Config, name string) ([]config.Source, error) {
	if name = strings.TrimSpace(name); name != "" {
		src, ok := cfg.SourceByName(name)
		if !ok {
			return nil, fmt.Errorf("no configured source named %q", name)
		}
		if !src.Enabled {
			return nil, fmt.Errorf("source %q is disabled", name)
		}
		return []config.Source{src}, nil
	}

	sources := cfg.EnabledSources()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no enabled sources configured; run `framefeed config init` and edit the sources section")
	}
	return sources, nil
}

func printReport(cmd *cobra.Command, report *importer.Report, dryRun bool) {
	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "%s: would import %d items (%d already cataloged) in %d batches\n",
			report.Source, report.Planned, report.Skipped, report.Batches)
		return
	}

	rows := [][]string{
		{"Planned", fmt.Sprintf("%d", report.Planned)},
		{"Imported", fmt.Sprintf("%d", report.Imported)},
		{"Skipped", fmt.Sprintf("%d", report.Skipped)},
		{"Failed", fmt.Sprintf("%d", report.Failed)},
		{"Batches", fmt.Sprintf("%d", report.Batches)},
		{"Duration", report.Duration.Round(time.Millisecond).String()},
	}
	if report.StaleRemoved > 0 {
		rows = append(rows, []string{"Stale playlists removed", fmt.Sprintf("%d", report.StaleRemoved)})
	}
	fmt.Fprintf(out, "Import from %s (session %s)\n", report.Source, report.SessionID)
	fmt.Fprintln(out, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
