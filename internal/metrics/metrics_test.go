package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordRun("answered", 1.5)
	m.RecordRun("cached", 0.01)
	m.RecordRun("answered", 0.7)
	m.RecordCacheLookup(CacheHit)
	m.RecordCacheLookup(CacheMiss)
	m.RecordCacheLookup(CacheMiss)
	m.RecordCacheWrite(false)
	m.RecordIngest(12, false)
	m.RecordIngest(0, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("cached")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.IngestedChunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestErrors))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRun("answered", 1)
		m.RecordStage("synthesis_agent", 1)
		m.RecordCacheLookup(CacheHit)
		m.RecordCacheWrite(true)
		m.RecordIngest(1, false)
	})
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordStage("synthesis_agent", 0.2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `agentrag_stage_duration_seconds_count{stage="synthesis_agent"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
