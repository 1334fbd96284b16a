package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrsinham/niftiforge/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "watch <inbox>",
		Short: "Convert series directories as they land in an inbox",
		Long: `Watch an inbox directory and convert every series directory created in it
once its files stop changing for the configured settle interval.

Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" {
				a.cfg.OutputDir = out
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			inbox, err := watch.New(args[0], func(_ context.Context, dir string) error {
				files, err := a.convert(dir, "")
				// keep the textfile current while the watcher runs
				if ferr := a.flushMetrics(); ferr != nil {
					a.log.Warn("metrics not written", "error", ferr)
				}
				if err != nil {
					return err
				}
				printFiles(cmd.OutOrStdout(), files)
				return nil
			}, watch.Options{Logger: a.log, Settle: a.cfg.Watch.Settle})
			if err != nil {
				return err
			}
			return inbox.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (overrides output_dir)")
	return cmd
}
