package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New(nil)

	r.ObserveCategorization("trabajo", "exact", 1, time.Millisecond, false)
	r.ObserveCategorization("trabajo", "exact", 1, time.Millisecond, false)
	r.ObserveCategorization("sin_categoria", "none", 0, time.Millisecond, true)
	r.SetCategories(3)
	r.ObserveAdminCommand("add", nil)
	r.ObserveAdminCommand("add", errors.New("dup"))
	r.ObserveEnqueue(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.categorized.WithLabelValues("trabajo", "exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recoveredPanics))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.categories))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.adminCommands.WithLabelValues("add", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tasksEnqueued.WithLabelValues("ok")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveCategorization("x", "none", 0, 0, false)
		r.SetCategories(1)
		r.ObserveAdminCommand("list", nil)
		r.ObserveEnqueue(nil)
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := New(nil)
	r.SetCategories(2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msgsort_categories 2")
}
