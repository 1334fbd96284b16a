package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/niftiforge/internal/acquisition"
)

// Manifest records what an export produced, for downstream ingestion.
type Manifest struct {
	Session     string   `yaml:"session"`
	SessionName string   `yaml:"session_name"`
	Subject     string   `yaml:"subject,omitempty"`
	Prefix      string   `yaml:"prefix"`
	Domain      string   `yaml:"domain"`
	Filetype    string   `yaml:"filetype"`
	State       []string `yaml:"state"`
	Files       []string `yaml:"files"`
}

// Manifest describes files as the outputs of meta. Paths are reduced to base names.
func (e *Exporter) Manifest(meta *acquisition.Metadata, files []string) Manifest {
	m := Manifest{
		Domain:   e.cfg.Domain,
		Filetype: e.cfg.Filetype,
		State:    append([]string(nil), e.cfg.State...),
		Files:    make([]string, 0, len(files)),
	}
	if meta != nil {
		m.Session = meta.SessionID()
		m.SessionName = meta.SessionName()
		m.Subject = meta.SubjectCode
		m.Prefix = meta.Prefix()
	}
	for _, f := range files {
		m.Files = append(m.Files, filepath.Base(f))
	}
	return m
}

// WriteManifest marshals m as YAML to path.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &VolumeExportError{Op: "manifest", Path: path, Class: ErrWrite, Err: err}
	}
	return nil
}
