package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		InitMetrics()
		InitMetrics()
	})
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(AIRequestsTotal.WithLabelValues("gemini", "m-a", "ok"))
	RecordAIRequest("gemini", "m-a", "ok", 0.2)
	assert.InDelta(t, before+1, testutil.ToFloat64(AIRequestsTotal.WithLabelValues("gemini", "m-a", "ok")), 1e-9)

	rot := testutil.ToFloat64(ModelRotationsTotal.WithLabelValues("gemini", "m-a"))
	RecordRotation("gemini", "m-a")
	assert.InDelta(t, rot+1, testutil.ToFloat64(ModelRotationsTotal.WithLabelValues("gemini", "m-a")), 1e-9)

	hits := testutil.ToFloat64(ResponseCacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(ResponseCacheLookupsTotal.WithLabelValues("miss"))
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)
	assert.InDelta(t, hits+1, testutil.ToFloat64(ResponseCacheLookupsTotal.WithLabelValues("hit")), 1e-9)
	assert.InDelta(t, misses+2, testutil.ToFloat64(ResponseCacheLookupsTotal.WithLabelValues("miss")), 1e-9)

	okOps := testutil.ToFloat64(OperationsTotal.WithLabelValues("unit", "ok"))
	errOps := testutil.ToFloat64(OperationsTotal.WithLabelValues("unit", "error"))
	RecordOperation("unit", nil, 3)
	RecordOperation("unit", errors.New("boom"), 0)
	assert.InDelta(t, okOps+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("unit", "ok")), 1e-9)
	assert.InDelta(t, errOps+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("unit", "error")), 1e-9)

	ObservePromptTokens("unit", 0)
	ObservePromptTokens("unit", 512)
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "unit_total", Help: "unit counter"})
	reg.MustRegister(c)
	c.Add(3)

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, reg))
	assert.Contains(t, buf.String(), "# TYPE unit_total counter")
	assert.Contains(t, buf.String(), "unit_total 3")
}
