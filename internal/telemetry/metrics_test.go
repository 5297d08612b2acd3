package telemetry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachbench/internal/benchmark"
	"breachbench/internal/record"
)

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()

	m.StateChanged(benchmark.Deploying, benchmark.Writing, 3)
	m.OperationCompleted(record.Outcome{Op: record.Operation{Kind: record.WriteEvent}, Cost: 45000, Latency: 20 * time.Millisecond})
	m.OperationCompleted(record.Outcome{Op: record.Operation{Kind: record.WriteEvent}, Cost: 30000, Latency: 10 * time.Millisecond})
	m.OperationCompleted(record.Outcome{Op: record.Operation{Kind: record.ReadState}, Latency: time.Millisecond})
	m.OperationFailed(record.Operation{Kind: record.ComputePenalty}, errors.New("reverted"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("penalty")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.iteration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("writing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("deploying")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.gas))
}

func TestServe(t *testing.T) {
	m := NewMetrics()
	m.OperationCompleted(record.Outcome{Op: record.Operation{Kind: record.WriteEvent}, Cost: 45000})

	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := m.Serve(ctx, "127.0.0.1:0", log)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `breachbench_runner_operations_total{kind="write"} 1`))
}
