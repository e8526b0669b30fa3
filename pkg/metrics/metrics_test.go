//go:build linux

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/microbench/pkg/ci"
	"github.com/ja7ad/microbench/pkg/runner"
)

func TestExporter_ObserveUpdatesGauges(t *testing.T) {
	e := New()
	e.Observe("run-1", runner.Progress{
		DescribeName: "append",
		Report:       ci.Report{SampleSize: 150, RCIWObserved: 4.2},
	})

	count, err := testutil.GatherAndCount(e.registry, "microbench_sample_count")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExporter_WatchDrainsChannel(t *testing.T) {
	e := New()
	updates := make(chan runner.Progress, 1)
	updates <- runner.Progress{DescribeName: "append", Report: ci.Report{SampleSize: 100}}
	close(updates)

	done := make(chan struct{})
	go func() {
		e.Watch("run-1", updates)
		close(done)
	}()
	<-done
}
