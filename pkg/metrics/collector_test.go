package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector("test")

	c.RecordSubmission(OutcomeSuccess, 2*time.Second)
	c.RecordSubmission(OutcomeFailure, time.Second)
	c.RecordSubmission(OutcomeFailure, 0)
	c.RecordTransition("idle", "submitting")
	c.RecordTransition("ready", "ready")
	c.InFlight(1)
	c.RecordRelease()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissionsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.submissionsTotal.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stateTransitions.WithLabelValues("idle", "submitting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.stateTransitions.WithLabelValues("ready", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.releasedArtifacts))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordSubmission(OutcomeSuccess, time.Second)
		c.RecordArtifact(10)
		c.RecordTransition("a", "b")
		c.InFlight(1)
		c.RecordRelease()
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordSubmission(OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_submissions_total{outcome="success"} 1`)
}
