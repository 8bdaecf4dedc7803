// Package metrics records per-run gauges and writes them for the node_exporter
// textfile collector. Scheduled jobs have no endpoint to scrape.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the run gauges on a private registry
type Recorder struct {
	registry *prometheus.Registry

	lastRun          prometheus.Gauge
	lastSuccess      prometheus.Gauge
	matched          prometheus.Gauge
	nonCompliant     prometheus.Gauge
	unknownMFA       prometheus.Gauge
	deliveryFailures *prometheus.GaugeVec
	duration         prometheus.Gauge
}

// RunStats summarises one pipeline pass
type RunStats struct {
	Started      time.Time
	Duration     time.Duration
	Success      bool
	Matched      int
	NonCompliant int
	UnknownMFA   int
	// DeliveryFailure is the delivery error kind, empty when delivery succeeded or never ran
	DeliveryFailure string
}

// NewRecorder creates a recorder with all gauges registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfareport_last_run_timestamp_seconds",
			Help: "Unix time the last report run started",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfareport_last_run_success",
			Help: "1 if the last run completed every stage, 0 otherwise",
		}),
		matched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfareport_users_matched",
			Help: "Users whose email matched a customer domain",
		}),
		nonCompliant: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfareport_users_noncompliant",
			Help: "Matched users reported as lacking MFA",
		}),
		unknownMFA: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfareport_users_unknown_mfa",
			Help: "Matched users with no MFA record, reported as non-compliant",
		}),
		deliveryFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mfareport_delivery_failures",
			Help: "1 if the last run failed to deliver the report, by failure kind",
		}, []string{"kind"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mfareport_last_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
	}
	r.registry.MustRegister(r.lastRun, r.lastSuccess, r.matched, r.nonCompliant,
		r.unknownMFA, r.deliveryFailures, r.duration)
	return r
}

// Observe records the outcome of a run
func (r *Recorder) Observe(s RunStats) {
	r.lastRun.Set(float64(s.Started.Unix()))
	if s.Success {
		r.lastSuccess.Set(1)
	} else {
		r.lastSuccess.Set(0)
	}
	r.matched.Set(float64(s.Matched))
	r.nonCompliant.Set(float64(s.NonCompliant))
	r.unknownMFA.Set(float64(s.UnknownMFA))
	r.duration.Set(s.Duration.Seconds())

	r.deliveryFailures.Reset()
	for _, kind := range []string{"network", "transport"} {
		v := 0.0
		if s.DeliveryFailure == kind {
			v = 1
		}
		r.deliveryFailures.WithLabelValues(kind).Set(v)
	}
}

// Gather exposes the registry for tests and custom sinks
func (r *Recorder) Gather() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics atomically to path. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("could not write metrics textfile: %w", err)
	}
	return nil
}
