// Package metrics exposes cycle results in the Prometheus text format,
// written to a file for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridops/meterbot/internal/model"
)

type Recorder struct {
	registry      *prometheus.Registry
	textfile      string
	runsTotal     *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
	failedLast    prometheus.Gauge
}

// NewRecorder returns a Recorder. An empty textfile disables Flush.
func NewRecorder(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		textfile: textfile,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meterbot_program_runs_total",
			Help: "Program runs by program and result (success, failed, not_launched).",
		}, []string{"program", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meterbot_program_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per program.",
		}, []string{"program"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meterbot_cycle_duration_seconds",
			Help:    "Duration of automation cycles.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400, 3600},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meterbot_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished.",
		}),
		failedLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meterbot_last_cycle_failed_programs",
			Help: "Number of programs that failed in the last cycle.",
		}),
	}
	r.registry.MustRegister(r.runsTotal, r.lastSuccess, r.cycleDuration, r.lastCycle, r.failedLast)
	return r
}

// Observe records one finished cycle.
func (r *Recorder) Observe(outcomes []model.Outcome, started, finished time.Time) {
	failed := 0
	for _, o := range outcomes {
		p := string(o.Program)
		switch {
		case o.Success:
			r.runsTotal.WithLabelValues(p, "success").Inc()
			r.lastSuccess.WithLabelValues(p).Set(float64(o.FinishedAt.Unix()))
		case !o.Launched:
			r.runsTotal.WithLabelValues(p, "not_launched").Inc()
			failed++
		default:
			r.runsTotal.WithLabelValues(p, "failed").Inc()
			failed++
		}
	}
	r.cycleDuration.Observe(finished.Sub(started).Seconds())
	r.lastCycle.Set(float64(finished.Unix()))
	r.failedLast.Set(float64(failed))
}

// Flush writes all metrics to the textfile atomically.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
