package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SeatOperations.WithLabelValues("book", Outcome(nil)).Inc()
	m.SeatOperations.WithLabelValues("book", Outcome(errors.New("taken"))).Inc()
	m.AggregationSkipped.Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeatOperations.WithLabelValues("book", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AggregationSkipped))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `shoreline_seat_operations_total{operation="book",outcome="error"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
