package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrsinham/niftiforge/internal/acquisition"
	"github.com/mrsinham/niftiforge/internal/dicom"
	"github.com/mrsinham/niftiforge/internal/export"
)

func newConvertCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "convert <series-dir>",
		Short: "Convert one DICOM series directory",
		Long: `Convert the DICOM files of one series to NIfTI.

Without --out the files go to {output_dir}/{exam}_{series}_{acq}.

A directory holding a DICOMDIR is read through it instead: every series it
lists is converted, and --out names the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				files []string
				err   error
			)
			if _, statErr := os.Stat(filepath.Join(args[0], "DICOMDIR")); statErr == nil {
				files, err = a.convertDICOMDIR(args[0], out)
			} else {
				files, err = a.convert(args[0], out)
			}
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output base path, file names are appended to it")
	return cmd
}

// convert reads the series in dir and exports it to outBase, or to the configured
// output directory when outBase is empty.
func (a *app) convert(dir, outBase string) ([]string, error) {
	return a.convertTo(dir, nil, outBase, a.cfg.OutputDir)
}

// convertDICOMDIR converts every series indexed by dir/DICOMDIR into outDir, or the
// configured output directory when outDir is empty.
func (a *app) convertDICOMDIR(dir, outDir string) ([]string, error) {
	refs, err := dicom.ReadDICOMDIR(filepath.Join(dir, "DICOMDIR"))
	if err != nil {
		a.metrics.ExportFailed("source")
		return nil, &export.VolumeExportError{Op: "read", Path: dir, Class: export.ErrSourceRead, Err: err}
	}
	if outDir == "" {
		outDir = a.cfg.OutputDir
	}
	a.log.Info("reading DICOMDIR", "dir", dir, "series", len(refs))

	var files []string
	for _, ref := range refs {
		if len(ref.Files) == 0 {
			continue
		}
		out, err := a.convertTo(dir, ref.Files, "", outDir)
		if err != nil {
			return files, fmt.Errorf("series %d: %w", ref.SeriesNumber, err)
		}
		files = append(files, out...)
	}
	return files, nil
}

// convertTo exports the series made of files, or of every file matching the configured
// pattern under dir when files is nil. An empty outBase becomes outDir/{prefix}.
func (a *app) convertTo(dir string, files []string, outBase, outDir string) ([]string, error) {
	reader, err := dicom.NewSeriesReader(dir, dicom.ReaderOptions{
		Logger:      a.log,
		Pattern:     a.cfg.Reader.Pattern,
		SidecarTags: a.cfg.Reader.SidecarTags,
		Workers:     a.cfg.Reader.Workers,
		Files:       files,
	})
	if err != nil {
		return nil, err
	}
	meta, err := reader.ReadMetadata()
	if err != nil {
		a.metrics.ExportFailed("source")
		return nil, &export.VolumeExportError{Op: "read", Path: dir, Class: export.ErrSourceRead, Err: err}
	}
	if outBase == "" {
		outBase = filepath.Join(outDir, meta.Prefix())
	}
	if err := os.MkdirAll(filepath.Dir(outBase), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	exp := a.exporter()
	written, err := exp.Convert(reader, outBase, a.cfg.VoxelOrder)
	if err != nil {
		return nil, err
	}
	return a.writeManifest(exp, meta, outBase, written)
}

func newCopyCmd(a *app) *cobra.Command {
	var (
		out  string
		meta acquisition.Metadata
	)

	cmd := &cobra.Command{
		Use:   "copy <nifti-dir>",
		Short: "Copy pre-rendered NIfTI volumes of one acquisition",
		Long: `Copy every {exam}_{series}_{acq}*.nii.gz found in a directory next to the
output base, as produced by an external reconstruction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = filepath.Join(a.cfg.OutputDir, meta.Prefix())
			}
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			exp := a.exporter()
			files, err := exp.ExportDir(&meta, args[0], out)
			if err != nil {
				return err
			}
			files, err = a.writeManifest(exp, &meta, out, files)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output base path")
	cmd.Flags().IntVar(&meta.ExamNo, "exam", 0, "Exam number")
	cmd.Flags().IntVar(&meta.SeriesNo, "series", 0, "Series number")
	cmd.Flags().IntVar(&meta.AcqNo, "acq", 1, "Acquisition number")
	_ = cmd.MarkFlagRequired("exam")
	_ = cmd.MarkFlagRequired("series")
	return cmd
}

// writeManifest adds {outBase}.manifest.yaml to files when manifests are enabled.
func (a *app) writeManifest(exp *export.Exporter, meta *acquisition.Metadata, outBase string, files []string) ([]string, error) {
	if !a.cfg.Manifest {
		return files, nil
	}
	path := outBase + ".manifest.yaml"
	if err := export.WriteManifest(path, exp.Manifest(meta, files)); err != nil {
		return nil, err
	}
	return append(files, path), nil
}

func printFiles(w io.Writer, files []string) {
	for _, f := range files {
		fmt.Fprintln(w, f)
	}
}
