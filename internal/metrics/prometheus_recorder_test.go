package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveBuildDuration("full", 150*time.Millisecond)
	pr.IncPageResult(ResultGenerated)
	pr.IncPageResult(ResultGenerated)
	pr.IncPageResult(ResultSkipped)
	pr.IncBatchOutcome(BatchSuccess)
	pr.AddLinkWarnings(3)
	pr.AddLinkWarnings(-1)
	pr.SetInFlight(2)
	pr.SetPending(5)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.pageResults.WithLabelValues(string(ResultGenerated))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.pageResults.WithLabelValues(string(ResultSkipped))), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.linkWarnings), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.inFlight), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(pr.pending), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveBuildDuration("full", time.Second)
		pr.IncPageResult(ResultFailed)
		pr.IncBatchOutcome(BatchFailed)
		pr.AddLinkWarnings(1)
		pr.SetInFlight(1)
		pr.SetPending(1)
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBatchOutcome(BatchCanceled)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `sitebuilder_batch_outcomes_total{outcome="canceled"} 1`))
}
