package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/playlake/dashboard/api/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/pie_context/{period}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/pie_context/{period}", "418")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/pie_context/last_24", "/pie_context/all_time"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecordWarehouseQuery(t *testing.T) {
	ok := metrics.WarehouseQueriesTotal.WithLabelValues("test-engine", "success")
	failed := metrics.WarehouseQueriesTotal.WithLabelValues("test-engine", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	metrics.RecordWarehouseQuery("test-engine", 20*time.Millisecond, nil)
	metrics.RecordWarehouseQuery("test-engine", 20*time.Millisecond, errors.New("boom"))
	metrics.RecordWarehouseQuery("test-engine", 20*time.Millisecond, errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+2, testutil.ToFloat64(failed))
}
