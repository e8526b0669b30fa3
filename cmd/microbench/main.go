//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ja7ad/microbench/pkg/alloc"
	"github.com/ja7ad/microbench/pkg/loader"
	"github.com/ja7ad/microbench/pkg/metrics"
	"github.com/ja7ad/microbench/pkg/progress"
	"github.com/ja7ad/microbench/pkg/report"
	"github.com/ja7ad/microbench/pkg/runner"
)

type opts struct {
	progressMode    string
	metricsAddr     string
	bundlePath      string
	envPath         string
	processRSS      int
	hardCap         int
	confidenceLevel float64
	rciw            float64
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:     "microbench <path>",
		Short:   "Micro-benchmark measurement engine",
		Version: "1.0.0",
		Long: `microbench loads compiled benchmark plugins (*_bench.so) from a
file or directory, drives each one through an adaptive sampling loop
until its confidence interval narrows below target (or a hard sample
cap is reached), and prints a Markdown report.

* GitHub: https://github.com/ja7ad/microbench

Examples:
  microbench ./bench
  microbench --progress=plain --bundle run.tar.gz ./bench/append_bench.so`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, args[0])
		},
	}

	root.Flags().StringVar(&o.progressMode, "progress", "auto", "progress display: auto|tty|plain|none")
	root.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	root.Flags().StringVar(&o.bundlePath, "bundle", "", "if set, write a .tar.gz report bundle to this path")
	root.Flags().StringVar(&o.envPath, "env", ".env", "dotenv file to load CLI default overrides from, if present")
	root.Flags().IntVar(&o.processRSS, "process-rss", 0, "use process-RSS heap accounting instead of the managed runtime (1 to enable)")
	root.Flags().IntVar(&o.hardCap, "hard-cap", 0, "hard cap on adaptive resample size (0 = unlimited)")
	root.Flags().Float64Var(&o.confidenceLevel, "confidence-level", 0, "default confidence level for describes that don't set their own (0 = engine default)")
	root.Flags().Float64Var(&o.rciw, "rciw", 0, "default target relative confidence interval width, percent (0 = engine default)")

	if err := root.Execute(); err != nil {
		slog.Error(fmt.Sprintf("ERROR: %s: %s", "cli", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts, path string) error {
	if _, err := os.Stat(o.envPath); err == nil {
		if err := godotenv.Load(o.envPath); err != nil {
			slog.Warn("ERROR: env: failed to load dotenv file", "path", o.envPath, "err", err)
		}
	}
	applyEnvDefaults(&o)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()

	loaded, err := loader.LoadAll(path)
	if err != nil {
		return fmt.Errorf("ERROR: load: %w", err)
	}

	var exporter *metrics.Exporter
	if o.metricsAddr != "" {
		exporter = metrics.New()
		go func() {
			if err := exporter.Serve(ctx, o.metricsAddr); err != nil {
				slog.Error("ERROR: metrics: server stopped", "err", err)
			}
		}()
	}

	bridgeKind := alloc.ManagedRuntime
	if o.processRSS == 1 {
		bridgeKind = alloc.ProcessRSS
	}
	bridge := alloc.New(bridgeKind)

	mode := progress.Resolve(progress.Mode(o.progressMode), os.Stdout)
	reporter := progress.New(mode, os.Stdout)

	info := report.ProbeSysInfo()
	fmt.Println(info.Fenced())
	fmt.Printf("run: %s\n\n", runID)

	var failed bool
	for _, l := range loaded {
		if l.Err != nil {
			slog.Error("ERROR: load: failed to load benchmark file", "path", l.Path, "err", l.Err)
			failed = true
			continue
		}

		r := runner.New(bridge, o.hardCap)
		r.SetDefaults(o.confidenceLevel, o.rciw)

		reporterUpdates := make(chan runner.Progress, 1)
		progressDone := make(chan struct{})
		go func() {
			defer close(progressDone)
			reporter.Run(reporterUpdates)
		}()

		var exporterUpdates chan runner.Progress
		var exporterDone chan struct{}
		if exporter != nil {
			exporterUpdates = make(chan runner.Progress, 1)
			exporterDone = make(chan struct{})
			go func() {
				defer close(exporterDone)
				exporter.Watch(runID, exporterUpdates)
			}()
		}
		specDone := make(chan runSpecResult, 1)
		go func() {
			results, runErr := r.RunSpec(ctx, l.Spec)
			specDone <- runSpecResult{results: results, err: runErr}
		}()

		spec := tee(r.Progress(), specDone, reporterUpdates, exporterUpdates)
		close(reporterUpdates)
		if exporterUpdates != nil {
			close(exporterUpdates)
		}
		<-progressDone
		if exporterDone != nil {
			<-exporterDone
		}
		results, runErr := spec.results, spec.err

		fmt.Println(report.Render(l.Path, info, results))

		if runErr != nil {
			slog.Error("ERROR: run: benchmark file reported an error", "path", l.Path, "err", runErr)
			failed = true
		}

		if o.bundlePath != "" {
			bundle := bundleName(o.bundlePath, runID, l.Path)
			if err := report.WriteBundle(bundle, l.Path, info, results); err != nil {
				slog.Error("ERROR: report: failed to write bundle", "path", bundle, "err", err)
				failed = true
			}
		}
	}

	if failed {
		return fmt.Errorf("ERROR: run: one or more benchmark files failed")
	}
	return nil
}

// applyEnvDefaults fills in any flag the caller left at its zero value
// from the matching environment variable, so a loaded .env file can
// supply CLI defaults without every invocation repeating them on the
// command line.
func applyEnvDefaults(o *opts) {
	if o.confidenceLevel == 0 {
		if v, ok := os.LookupEnv("MICROBENCH_CONFIDENCE_LEVEL"); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				o.confidenceLevel = f
			}
		}
	}
	if o.rciw == 0 {
		if v, ok := os.LookupEnv("MICROBENCH_RCIW"); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				o.rciw = f
			}
		}
	}
	if o.metricsAddr == "" {
		if v, ok := os.LookupEnv("MICROBENCH_METRICS_ADDR"); ok {
			o.metricsAddr = v
		}
	}
}

type runSpecResult struct {
	results []runner.Result
	err     error
}

// tee duplicates src's updates onto every non-nil destination until
// done fires, then returns the run's final result. Runner's progress
// channel is never closed (it is reused across describes within a run
// and updates are dropped, not queued, under backpressure), so
// completion is signaled by done rather than by src closing.
func tee(src <-chan runner.Progress, done <-chan runSpecResult, dsts ...chan runner.Progress) runSpecResult {
	for {
		select {
		case p := <-src:
			for _, dst := range dsts {
				if dst == nil {
					continue
				}
				select {
				case dst <- p:
				default:
				}
			}
		case res := <-done:
			return res
		}
	}
}

// bundleName derives a per-exec bundle filename from the user-supplied
// base path so multiple loaded files don't overwrite each other's
// bundle, tagging it with the run ID's first segment so repeated runs
// against the same output directory don't collide either.
func bundleName(base, runID, execPath string) string {
	name := filepath.Base(execPath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return fmt.Sprintf("%s-%s-%s%s", stem, runID[:8], name, ext)
}
