//go:build linux

// Package metrics exposes a Prometheus exporter fed from the runner's
// progress channel, so a long adaptive-resample run can be watched
// from outside the terminal it was started in.
package metrics

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ja7ad/microbench/pkg/runner"
)

// Exporter publishes per-benchmark gauges updated from a runner's
// progress channel.
type Exporter struct {
	registry     *prometheus.Registry
	sampleCount  *prometheus.GaugeVec
	rciwObserved *prometheus.GaugeVec
	meanNS       *prometheus.GaugeVec
	server       *http.Server
}

// New constructs an Exporter and registers its gauges, each labeled by
// benchmark name and the run ID it belongs to.
func New() *Exporter {
	registry := prometheus.NewRegistry()

	labels := []string{"bench", "run_id"}
	e := &Exporter{
		registry: registry,
		sampleCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "microbench_sample_count",
			Help: "Number of samples collected for a benchmark's current pass.",
		}, labels),
		rciwObserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "microbench_rciw_observed",
			Help: "Observed relative confidence interval width, percent.",
		}, labels),
		meanNS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "microbench_mean_ns",
			Help: "Running mean elapsed nanoseconds per iteration.",
		}, labels),
	}
	registry.MustRegister(e.sampleCount, e.rciwObserved, e.meanNS)
	return e
}

// Observe records one progress update. runID labels every gauge so
// two runs scraped by the same Prometheus target don't clobber each
// other's series.
func (e *Exporter) Observe(runID string, p runner.Progress) {
	labels := prometheus.Labels{"bench": p.DescribeName, "run_id": runID}
	e.sampleCount.With(labels).Set(float64(p.Report.SampleSize))
	e.rciwObserved.With(labels).Set(p.Report.RCIWObserved)
	// The interval is centred on the mean; before a CI exists its bounds
	// are NaN and the mean gauge is left as it was.
	if !math.IsNaN(p.Report.Lower) && !math.IsNaN(p.Report.Upper) {
		e.meanNS.With(labels).Set((p.Report.Lower + p.Report.Upper) / 2)
	}
}

// Watch drains updates, calling Observe for each, until the channel
// closes.
func (e *Exporter) Watch(runID string, updates <-chan runner.Progress) {
	for p := range updates {
		e.Observe(runID, p)
	}
}

// Serve starts the HTTP exporter on addr and blocks until ctx is
// cancelled, at which point it shuts down gracefully.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return e.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
