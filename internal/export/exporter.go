// Package export writes MR acquisitions as NIfTI-1 volumes with their .bval, .bvec and
// .json sidecars.
//
// Exports are synchronous and not transactional: files written before a failure stay on
// disk, and concurrent exports to the same output base must be serialized by the caller.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mrsinham/niftiforge/internal/acquisition"
	"github.com/mrsinham/niftiforge/internal/metrics"
	"github.com/mrsinham/niftiforge/internal/nifti"
	"github.com/mrsinham/niftiforge/internal/volume"
)

// Source is anything that can produce an acquisition and its voxel data.
type Source interface {
	ReadMetadata() (*acquisition.Metadata, error)
	ReadVolumes() (map[string]volume.Volume, error)
}

// VolumeWriter persists one volume with its header.
type VolumeWriter interface {
	WriteVolume(path string, h *nifti.Header, v volume.Volume) error
}

// VolumeWriterFunc adapts a function to VolumeWriter.
type VolumeWriterFunc func(path string, h *nifti.Header, v volume.Volume) error

func (f VolumeWriterFunc) WriteVolume(path string, h *nifti.Header, v volume.Volume) error {
	return f(path, h, v)
}

// Config holds the exporter collaborators. Zero fields get defaults in New.
type Config struct {
	Logger   *slog.Logger
	Domain   string   // default "mr"
	Filetype string   // default "nifti"
	State    []string // default ["orig"]
	Writer   VolumeWriter
	Metrics  *metrics.Recorder
}

// Exporter converts acquisitions to NIfTI files.
type Exporter struct {
	cfg Config
	log *slog.Logger
}

// New returns an Exporter. Without a logger, nothing is logged; without a writer, volumes
// go through nifti.WriteFile.
func New(cfg Config) *Exporter {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Domain == "" {
		cfg.Domain = "mr"
	}
	if cfg.Filetype == "" {
		cfg.Filetype = "nifti"
	}
	if len(cfg.State) == 0 {
		cfg.State = []string{"orig"}
	}
	if cfg.Writer == nil {
		cfg.Writer = VolumeWriterFunc(nifti.WriteFile)
	}
	return &Exporter{
		cfg: cfg,
		log: cfg.Logger.With("domain", cfg.Domain, "filetype", cfg.Filetype),
	}
}

func (e *Exporter) fail(err *VolumeExportError) error {
	e.cfg.Metrics.ExportFailed(classOf(err))
	e.log.Error("export failed", "op", err.Op, "label", err.Label, "path", err.Path, "error", err.Err)
	return err
}

// Export writes every non-nil volume to {outBase}{label}.nii.gz, labels in sorted order.
// With a voxelOrder such as "LPS" the data are reordered first and the header carries the
// matching affine. Diffusion acquisitions also get {outBase}.bval and {outBase}.bvec, and
// metadata with MDJSON gets {outBase}.json. The returned paths are the volumes and the
// JSON sidecar, in the order written.
func (e *Exporter) Export(meta *acquisition.Metadata, volumes map[string]volume.Volume, outBase, voxelOrder string) ([]string, error) {
	start := time.Now()
	defer e.cfg.Metrics.ObserveSince(start)

	if meta == nil {
		return nil, e.fail(&VolumeExportError{Op: "export", Class: ErrInput, Err: errors.New("metadata is nil")})
	}
	if volumes == nil {
		return nil, e.fail(&VolumeExportError{Op: "export", Class: ErrInput, Err: errors.New("voxel data is nil")})
	}

	labels := make([]string, 0, len(volumes))
	for label := range volumes {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	var results []string
	gradientsWritten := false
	for _, label := range labels {
		data := volumes[label]
		if data == nil || data.Len() == 0 {
			continue
		}

		affine := meta.QtoXYZ
		if voxelOrder != "" {
			var err error
			data, affine, err = volume.Reorder(data, meta.QtoXYZ, voxelOrder)
			if err != nil {
				return results, e.fail(&VolumeExportError{Op: "export", Label: label, Class: ErrInput, Err: err})
			}
		}

		if meta.HasGradients() && !gradientsWritten {
			if err := e.writeGradients(meta, outBase); err != nil {
				return results, err
			}
			gradientsWritten = true
		}

		e.log.Debug("creating nifti", "label", label, "shape", data.Shape(), "kind", data.Kind())
		h, err := BuildHeader(meta, data, affine)
		if err != nil {
			return results, e.fail(&VolumeExportError{Op: "export", Label: label, Class: ErrInput, Err: err})
		}

		path := outBase + label + ".nii.gz"
		if err := e.cfg.Writer.WriteVolume(path, h, data); err != nil {
			return results, e.fail(&VolumeExportError{Op: "export", Label: label, Path: path, Class: ErrWrite, Err: err})
		}
		e.cfg.Metrics.VolumeWritten()
		e.log.Info("generated", "file", filepath.Base(path))
		results = append(results, path)
	}

	return e.writeJSON(meta, outBase, results)
}

func (e *Exporter) writeGradients(meta *acquisition.Metadata, outBase string) error {
	path := outBase + ".bval"
	if err := writeFile(path, encodeBvals(meta.Bvals)); err != nil {
		return e.fail(&VolumeExportError{Op: "bval", Path: path, Class: ErrWrite, Err: err})
	}
	e.cfg.Metrics.SidecarWritten("bval")
	e.log.Debug("generated", "file", filepath.Base(path))

	path = outBase + ".bvec"
	if err := writeFile(path, encodeBvecs(meta.Bvecs)); err != nil {
		return e.fail(&VolumeExportError{Op: "bvec", Path: path, Class: ErrWrite, Err: err})
	}
	e.cfg.Metrics.SidecarWritten("bvec")
	e.log.Debug("generated", "file", filepath.Base(path))
	return nil
}

func (e *Exporter) writeJSON(meta *acquisition.Metadata, outBase string, results []string) ([]string, error) {
	if meta.MDJSON == nil {
		return results, nil
	}
	path := outBase + ".json"
	data, err := encodeJSON(meta.MDJSON)
	if err != nil {
		return results, e.fail(&VolumeExportError{Op: "json", Path: path, Class: ErrInput, Err: err})
	}
	if err := writeFile(path, data); err != nil {
		return results, e.fail(&VolumeExportError{Op: "json", Path: path, Class: ErrWrite, Err: err})
	}
	e.cfg.Metrics.SidecarWritten("json")
	e.log.Info("generated", "file", filepath.Base(path))
	return append(results, path), nil
}

// ExportDir copies the pre-rendered volumes {exam}_{series}_{acq}*.nii.gz found in dir into
// the directory of outBase, byte for byte, then writes the JSON sidecar as Export does.
func (e *Exporter) ExportDir(meta *acquisition.Metadata, dir, outBase string) ([]string, error) {
	start := time.Now()
	defer e.cfg.Metrics.ObserveSince(start)

	if meta == nil {
		return nil, e.fail(&VolumeExportError{Op: "copy", Class: ErrInput, Err: errors.New("metadata is nil")})
	}
	if dir == "" {
		return nil, e.fail(&VolumeExportError{Op: "copy", Class: ErrInput, Err: errors.New("source directory is empty")})
	}

	e.log.Info("loading files", "dir", dir)
	matches, err := doublestar.Glob(os.DirFS(dir), meta.Prefix()+"*.nii.gz")
	if err != nil {
		return nil, e.fail(&VolumeExportError{Op: "copy", Path: dir, Class: ErrSourceRead, Err: err})
	}
	slices.Sort(matches)

	destDir := filepath.Dir(outBase)
	var results []string
	for _, m := range matches {
		src := filepath.Join(dir, filepath.FromSlash(m))
		dst := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return results, e.fail(&VolumeExportError{Op: "copy", Path: dst, Class: ErrWrite, Err: err})
		}
		e.cfg.Metrics.VolumeCopied()
		e.log.Debug("copied", "from", src, "to", dst)
		results = append(results, dst)
	}

	return e.writeJSON(meta, outBase, results)
}

func copyFile(src, dst string) (err error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if absSrc == absDst {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// ExportAny dispatches on the kind of voxel data: a directory path copies pre-rendered
// volumes, a label map is exported.
func (e *Exporter) ExportAny(meta *acquisition.Metadata, data any, outBase, voxelOrder string) ([]string, error) {
	switch v := data.(type) {
	case string:
		return e.ExportDir(meta, v, outBase)
	case map[string]volume.Volume:
		return e.Export(meta, v, outBase, voxelOrder)
	case nil:
		return e.Export(meta, nil, outBase, voxelOrder)
	default:
		return nil, e.fail(&VolumeExportError{Op: "export", Class: ErrInput, Err: fmt.Errorf("unsupported voxel data %T", data)})
	}
}

// Convert reads src and exports it.
func (e *Exporter) Convert(src Source, outBase, voxelOrder string) ([]string, error) {
	if src == nil {
		return nil, e.fail(&VolumeExportError{Op: "read", Class: ErrInput, Err: errors.New("source is nil")})
	}
	meta, err := src.ReadMetadata()
	if err != nil {
		return nil, e.fail(&VolumeExportError{Op: "read", Class: ErrSourceRead, Err: err})
	}
	volumes, err := src.ReadVolumes()
	if err != nil {
		return nil, e.fail(&VolumeExportError{Op: "read", Class: ErrSourceRead, Err: err})
	}
	return e.Export(meta, volumes, outBase, voxelOrder)
}
