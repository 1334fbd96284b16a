package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.VolumeWritten()
	r.VolumeWritten()
	r.VolumeCopied()
	r.SidecarWritten("bval")
	r.SidecarWritten("json")
	r.SidecarWritten("json")
	r.ExportFailed("write")
	r.ObserveSince(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(r.volumes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.copies))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.sidecars.WithLabelValues("json")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("write")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.VolumeWritten()
	r.SidecarWritten("bvec")
	r.ExportFailed("input")
	r.ObserveSince(time.Now())
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.VolumeWritten()
	path := filepath.Join(t.TempDir(), "niftiforge.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "niftiforge_volumes_written_total 1")
}
