// Package metrics records the outcome of a download run in Prometheus form, for the node_exporter
// textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/toothbrush/canvas-dump/localdump"
)

type Recorder struct {
	registry *prometheus.Registry

	filesTotal             *prometheus.CounterVec
	bytesWrittenTotal      *prometheus.CounterVec
	postProcessFailures    *prometheus.CounterVec
	listingFailuresTotal   *prometheus.CounterVec
	lastRunTimestampSecond prometheus.Gauge
}

// New builds a Recorder on its own registry, so nothing from the Go runtime collectors ends up in
// the textfile.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_dump_files_total",
				Help: "Files seen per course, by final outcome",
			},
			[]string{"course", "outcome"},
		),
		bytesWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_dump_bytes_written_total",
				Help: "Bytes written to the local mirror",
			},
			[]string{"course"},
		),
		postProcessFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_dump_postprocess_failures_total",
				Help: "Written files whose post-processing failed",
			},
			[]string{"course"},
		),
		listingFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_dump_listing_failures_total",
				Help: "Folder or file listings that couldn't be retrieved",
			},
			[]string{"course"},
		),
		lastRunTimestampSecond: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "canvas_dump_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe adds a whole run's summary to the counters and stamps the run time.
func (r *Recorder) Observe(summary localdump.Summary, finished time.Time) {
	for _, course := range summary.Courses {
		r.RecordCourse(course)
	}
	r.lastRunTimestampSecond.Set(float64(finished.Unix()))
}

func (r *Recorder) RecordCourse(report localdump.CourseReport) {
	name := report.Dir
	if name == "" {
		name = report.Course.Name
	}

	for _, o := range report.Outcomes {
		r.filesTotal.WithLabelValues(name, outcomeLabel(o)).Inc()
		if o.PostProcessErr != nil {
			r.postProcessFailures.WithLabelValues(name).Inc()
		}
	}
	r.bytesWrittenTotal.WithLabelValues(name).Add(float64(report.Bytes()))
	r.listingFailuresTotal.WithLabelValues(name).Add(float64(len(report.ListingFailures)))
}

func outcomeLabel(o localdump.FileOutcome) string {
	switch o.State {
	case localdump.Failed:
		return "failed_" + string(o.Kind)
	case localdump.Skipped:
		return "skipped_" + string(o.SkipReason)
	default:
		return o.State.String()
	}
}

// WriteTextfile atomically writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: couldn't write %s: %w", path, err)
	}
	return nil
}
