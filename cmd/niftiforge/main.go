// Command niftiforge converts MR DICOM series to NIfTI-1 volumes with their sidecars.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mrsinham/niftiforge/internal/config"
	"github.com/mrsinham/niftiforge/internal/export"
	"github.com/mrsinham/niftiforge/internal/metrics"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	configPath  string
	logLevel    string
	metricsFile string
	voxelOrder  string
	manifest    bool

	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Recorder
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "niftiforge",
		Short: "Convert MR DICOM series to NIfTI",
		Long: `niftiforge converts MR DICOM series to gzipped NIfTI-1 volumes.

Each conversion writes one {exam}_{series}_{acq}.nii.gz per volume group, plus
.bval/.bvec for diffusion series and a .json sidecar with selected DICOM fields.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.flushMetrics()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	flags.StringVar(&a.voxelOrder, "voxel-order", "", "Reorder voxels to this orientation, e.g. LPS")
	flags.BoolVar(&a.manifest, "manifest", false, "Write a YAML manifest next to each conversion")

	cmd.AddCommand(
		newConvertCmd(a),
		newCopyCmd(a),
		newGenerateCmd(a),
		newWatchCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "niftiforge %s\n", version)
			},
		},
	)
	return cmd
}

// setup loads the config file and lets explicitly set flags override it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if a.configPath != "" {
		loaded, err := config.LoadFromFile(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.metricsFile
	}
	if flags.Changed("voxel-order") {
		cfg.VoxelOrder = a.voxelOrder
	}
	if flags.Changed("manifest") {
		cfg.Manifest = a.manifest
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.metrics = metrics.New()
	return nil
}

func (a *app) exporter() *export.Exporter {
	return export.New(export.Config{
		Logger:   a.log,
		Domain:   a.cfg.Export.Domain,
		Filetype: a.cfg.Export.Filetype,
		State:    a.cfg.Export.State,
		Metrics:  a.metrics,
	})
}

func (a *app) flushMetrics() error {
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.log.Debug("metrics written", "path", a.cfg.MetricsFile)
	return nil
}
