package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/screen"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

func TestMetricsServiceMutationLifecycle(t *testing.T) {
	m := NewMetricsService()
	kind := models.MutationKindMembershipToggle

	m.MutationSubmitted(kind)
	m.MutationSubmitted(kind)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.inFlight))

	timeout := appErrors.WrapAs(appErrors.ErrMutationFailed,
		appErrors.WrapAs(appErrors.ErrTimeout, errors.New("deadline"), ""), "")
	m.MutationSettled(kind, nil, 10*time.Millisecond)
	m.MutationSettled(kind, timeout, time.Second)
	m.MutationRejected(kind, appErrors.ErrAlreadyInFlight)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues(string(kind), "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues(string(kind), "TIMEOUT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues(string(kind), "ALREADY_IN_FLIGHT")))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Mutations)
	assert.Equal(t, uint64(1), snap.MutationFailures)
	assert.Equal(t, uint64(1), snap.MutationRejections)
}

func TestMetricsServiceScreenLoadsAndSessions(t *testing.T) {
	m := NewMetricsService()
	m.ScreenLoaded("courses", screen.PhaseLoaded, time.Millisecond)
	m.ScreenLoaded("notifications", screen.PhaseFailed, time.Millisecond)
	m.SessionsActive(3)
	m.ObserveStoreOp("fetch", "courses", time.Millisecond, appErrors.ErrStoreUnavailable)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/sessions/:id/screen", http.StatusOK, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.screenLoads.WithLabelValues("notifications", string(screen.PhaseFailed))))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sessions))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ScreenLoads)
	assert.Equal(t, uint64(1), snap.ScreenLoadFailures)
	assert.Equal(t, int64(3), snap.ActiveSessions)
	assert.Equal(t, uint64(1), snap.RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portal_sessions_active 3")
	assert.Contains(t, rec.Body.String(), `portal_store_operation_duration_seconds_count{collection="courses",op="fetch",result="STORE_UNAVAILABLE"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ScreenLoaded("courses", screen.PhaseLoaded, time.Millisecond)
	m.SessionsActive(1)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
