// Package metrics counts conversion outcomes for node-exporter textfile collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "niftiforge"

// Recorder holds the conversion counters. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	volumes  prometheus.Counter
	copies   prometheus.Counter
	sidecars *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// New registers the conversion metrics on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		volumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volumes_written_total",
			Help:      "NIfTI volumes written.",
		}),
		copies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "volumes_copied_total",
			Help:      "Pre-rendered NIfTI volumes copied from a directory.",
		}),
		sidecars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sidecars_written_total",
			Help:      "Sidecar files written, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_errors_total",
			Help:      "Failed exports, by error class.",
		}, []string{"class"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Wall time of a complete export call.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	r.registry.MustRegister(r.volumes, r.copies, r.sidecars, r.failures, r.duration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) VolumeWritten() {
	if r != nil {
		r.volumes.Inc()
	}
}

func (r *Recorder) VolumeCopied() {
	if r != nil {
		r.copies.Inc()
	}
}

// SidecarWritten counts one sidecar of the given kind (bval, bvec, json).
func (r *Recorder) SidecarWritten(kind string) {
	if r != nil {
		r.sidecars.WithLabelValues(kind).Inc()
	}
}

// ExportFailed counts one failed export of the given error class.
func (r *Recorder) ExportFailed(class string) {
	if r != nil {
		r.failures.WithLabelValues(class).Inc()
	}
}

// ObserveSince records the time elapsed since start.
func (r *Recorder) ObserveSince(start time.Time) {
	if r != nil {
		r.duration.Observe(time.Since(start).Seconds())
	}
}

// WriteTextfile atomically writes the metrics in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
